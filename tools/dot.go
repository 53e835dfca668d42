package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Comcast/calflow/crew"
	"github.com/Comcast/calflow/util"

	"gopkg.in/yaml.v2"
)

// Dot makes a Graphviz dot file for the given network.  Still a
// fairly ugly dot file.
//
// Each member is a node listing its actions, whose guards are
// rendered as YAML.  Initial tokens and unconnected outputs get
// their own small nodes.  If highlight is a member id, that member
// is drawn in red.
func Dot(n *crew.Network, w io.Writer, highlight string) error {

	util.Logf("dot: processing %d members", len(n.Members))

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=LR,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "10"]
`)

	for _, m := range n.Members {
		a := m.Actor
		label := m.Id
		if a.Name != "" && a.Name != m.Id {
			label += " <I>(" + html(a.Name) + ")</I>"
		}
		if a.Doc != "" {
			label += "<BR/><FONT POINT-SIZE='8'>" + html(firstSentence(a.Doc)) + "</FONT>"
		}
		for i, act := range a.Actions {
			label += `<BR/><FONT POINT-SIZE="8">` + html(act.Name(i)) + `</FONT>`
			if len(act.Guards) == 0 {
				continue
			}
			bs, err := yaml.Marshal(map[string][]string{"guards": act.Guards})
			if err != nil {
				return err
			}
			src := strings.TrimRight(string(bs), "\n")
			label += `<FONT POINT-SIZE="6"><BR ALIGN="LEFT"/>` +
				strings.Replace(html(src), "\n", `<BR ALIGN="LEFT"/>`, -1) +
				`<BR ALIGN="LEFT"/></FONT>`
		}

		color, fillcolor, style := "black", "#99ddc8", "filled"
		if len(a.State) > 0 {
			fillcolor = "#52aa5e"
		}
		if len(a.InitActions) > 0 {
			style += ",bold"
		}
		if m.Id == highlight {
			color = "red"
			fillcolor = "#f98b8b"
		}
		fmt.Fprintf(w, "  %s [shape=\"note\", style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			quote(m.Id), style, color, fillcolor, label)
	}

	for _, c := range n.Connections {
		from, out, err := crew.ParseEndpoint(c.From)
		if err != nil {
			return err
		}
		to, in, err := crew.ParseEndpoint(c.To)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s -> %s [ label = \"%s\" ]\n",
			quote(from), quote(to), escape(out+" → "+in))
	}

	for i, t := range n.Initial {
		to, in, err := crew.ParseEndpoint(t.To)
		if err != nil {
			return err
		}
		bs, err := yaml.Marshal(t.Tokens)
		if err != nil {
			return err
		}
		src := strings.TrimRight(string(bs), "\n")
		if 10 < len(t.Tokens) {
			src = fmt.Sprintf("%d tokens", len(t.Tokens))
		}
		name := fmt.Sprintf("initial%d", i)
		fmt.Fprintf(w, "  %s [shape=\"plaintext\", style=\"\", label=<<FONT POINT-SIZE=\"8\">%s</FONT>> ]\n",
			name, strings.Replace(html(src), "\n", `<BR ALIGN="LEFT"/>`, -1))
		fmt.Fprintf(w, "  %s -> %s [ style=\"dashed\" label = \"%s\" ]\n",
			name, quote(to), escape(in))
	}

	for i, s := range n.Unconnected() {
		from, out, err := crew.ParseEndpoint(s)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("sink%d", i)
		fmt.Fprintf(w, "  %s [shape=\"point\"]\n", name)
		fmt.Fprintf(w, "  %s -> %s [ style=\"dashed\" label = \"%s\" ]\n",
			quote(from), name, escape(out))
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

// PNG generates a PNG image based on output from Dot.
//
// This function with write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(n *crew.Network, basename string, highlight string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err = Dot(n, dotfile, highlight); err != nil {
		dotfile.Close()
		return pngname, err
	}
	if err = dotfile.Close(); err != nil {
		return pngname, err
	}
	if err = exec.Command("dot", "-Tpng", "-o", pngname, dotname).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

func firstSentence(doc string) string {
	if 40 < len(doc) {
		if period := strings.Index(doc, ". "); 0 < period {
			doc = doc[0 : period+1]
		}
	}
	return doc
}

func quote(s string) string {
	return `"` + escape(s) + `"`
}

func escape(s string) string {
	return strings.Replace(s, `"`, `\"`, -1)
}

func html(s string) string {
	s = strings.Replace(s, "&", `&amp;`, -1)
	s = strings.Replace(s, "<", `&lt;`, -1)
	s = strings.Replace(s, ">", `&gt;`, -1)
	return s
}
