package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/ioutil"
	"sort"
	"strings"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/crew"
	"github.com/Comcast/calflow/interpreters"
	. "github.com/Comcast/calflow/util/testutil"

	md "github.com/russross/blackfriday/v2"
)

// RenderActorHTML writes an HTML fragment documenting the actor.  The
// id is used for anchors and is usually the member id.
func RenderActorHTML(id string, a *core.Actor, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}
	esc := template.HTMLEscapeString

	f(`<div class="actor" id="%s">`, esc(id))
	title := esc(id)
	if a.Name != "" && a.Name != id {
		title += ` <span class="actorName">(` + esc(a.Name) + `)</span>`
	}
	f(`<h2>%s</h2>`, title)
	if a.Doc != "" {
		f(`<div class="actorDoc doc">%s</div>`, md.Run([]byte(a.Doc)))
	}

	ports := func(class string, ps []*core.PortDecl) {
		if len(ps) == 0 {
			return
		}
		f(`<div class="%s"><table>`, class)
		for _, p := range ps {
			f(`<tr><td><code>%s</code></td><td>%s</td></tr>`, esc(p.Name), md.Run([]byte(p.Doc)))
		}
		f(`</table></div>`)
	}
	ports("inputs", a.Inputs)
	ports("outputs", a.Outputs)

	if len(a.Params) > 0 {
		names := make([]string, 0, len(a.Params))
		for name := range a.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		f(`<div class="params"><table>`)
		for _, name := range names {
			p := a.Params[name]
			f(`<tr><td><code>%s</code></td><td>%s</td><td>%s</td></tr>`,
				esc(name), esc(p.PrimitiveType), md.Run([]byte(p.Doc)))
		}
		f(`</table></div>`)
	}

	if len(a.State) > 0 {
		f(`<div class="state"><table>`)
		for _, d := range a.State {
			f(`<tr><td><code>%s</code></td><td><code>%s</code></td></tr>`, esc(d.Name), esc(d.Value))
		}
		f(`</table></div>`)
	}

	actions := func(class string, acts []*core.Action) {
		if len(acts) == 0 {
			return
		}
		f(`<div class="%s"><table>`, class)
		for i, act := range acts {
			f(`<tr class="action"><td><div class="actionNum">%d</div></td><td>`, i)
			f(`<span class="actionName">%s</span>`, esc(act.Name(i)))
			if act.Doc != "" {
				f(`<div class="actionDoc doc">%s</div>`, md.Run([]byte(act.Doc)))
			}
			f(`<table>`)
			for _, p := range act.Inputs {
				vars := strings.Join(p.Vars, ", ")
				if p.Repeat != "" {
					vars += " repeat " + p.Repeat
				}
				f(`<tr><td>input</td><td><code>%s</code></td><td><code>%s</code></td></tr>`, esc(p.Port), esc(vars))
			}
			for _, g := range act.Guards {
				f(`<tr><td>guard</td><td></td><td><div class="code"><pre>%s</pre></div></td></tr>`, esc(g))
			}
			for _, d := range act.Decls {
				f(`<tr><td>var</td><td><code>%s</code></td><td><code>%s</code></td></tr>`, esc(d.Name), esc(d.Value))
			}
			if len(act.Body) > 0 {
				f(`<tr><td>do</td><td></td><td><div class="code"><pre>%s</pre></div></td></tr>`,
					esc(strings.Join(act.Body, "\n")))
			}
			for _, o := range act.Outputs {
				vals := strings.Join(o.Values, ", ")
				if o.Repeat != "" {
					vals += " repeat " + o.Repeat
				}
				f(`<tr><td>output</td><td><code>%s</code></td><td><code>%s</code></td></tr>`, esc(o.Port), esc(vals))
			}
			f(`</table>`)
			f(`</td></tr>`)
		}
		f(`</table></div>`)
	}
	actions("initActions", a.InitActions)
	actions("actions", a.Actions)

	f(`</div>`)

	return nil
}

// RenderNetworkPage writes a complete HTML page documenting the
// network and each of its members.
func RenderNetworkPage(n *crew.Network, out io.Writer, cssFiles []string) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/actor-html.css"}
	}

	esc := template.HTMLEscapeString

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, esc(n.Name))

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", esc(cssFile))
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, esc(n.Name))

	if n.Policy != "" {
		fmt.Fprintf(out, "<div>model of computation: <span class=\"moc\">%s</span></div>\n", esc(n.Policy))
	}
	if n.Doc != "" {
		fmt.Fprintf(out, "<div class=\"networkDoc doc\">%s</div>\n", md.Run([]byte(n.Doc)))
	}

	if len(n.Connections) > 0 || len(n.Initial) > 0 {
		fmt.Fprintf(out, "<div class=\"connections\"><table>\n")
		for _, c := range n.Connections {
			fmt.Fprintf(out, "<tr><td><code>%s</code></td><td>&rarr;</td><td><code>%s</code></td></tr>\n",
				esc(c.From), esc(c.To))
		}
		for _, t := range n.Initial {
			fmt.Fprintf(out, "<tr><td><code>%s</code></td><td>&rarr;</td><td><code>%s</code></td></tr>\n",
				esc(JS(t.Tokens)), esc(t.To))
		}
		fmt.Fprintf(out, "</table></div>\n")
	}

	for _, m := range n.Members {
		if err := RenderActorHTML(m.Id, m.Actor, out); err != nil {
			return err
		}
		if len(m.Params) > 0 {
			js, err := json.Marshal(m.Params)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "<div class=\"memberParams\">params: <code>%s</code></div>\n", esc(string(js)))
		}
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderNetworkPage parses and compiles the network file and
// then calls RenderNetworkPage.
func ReadAndRenderNetworkPage(filename string, cssFiles []string, out io.Writer) error {
	src, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	n, err := crew.ParseNetwork(src)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err = n.Compile(ctx, interpreters.Standard()); err != nil {
		return err
	}

	return RenderNetworkPage(n, out, cssFiles)
}
