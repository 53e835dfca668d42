/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/crew"
	"github.com/Comcast/calflow/util"
)

type MermaidOpts struct {
	// ShowPorts labels each edge with its output and input ports.
	ShowPorts bool `json:"showPorts"`

	// ShowRates adds the SDF production and consumption rates to
	// edge labels when both actors are legal under SDF.
	ShowRates bool `json:"showRates"`

	// StateFill is the fill color for actors with state
	// variables.
	StateFill string `json:"stateFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given network, which should be compiled.
func Mermaid(ctx context.Context, n *crew.Network, w io.Writer, opts *MermaidOpts) error {

	if opts == nil {
		opts = &MermaidOpts{
			ShowPorts: true,
			ShowRates: true,
			StateFill: "#bcf2db",
		}
	}

	util.Logf("mermaid: processing %d members", len(n.Members))

	fmt.Fprintf(w, "graph LR\n")

	nids := make(map[string]string, len(n.Members))
	rates := make(map[string]*core.RateSignature, len(n.Members))
	for i, m := range n.Members {
		nid := fmt.Sprintf("n%d", i+1)
		nids[m.Id] = nid
		fmt.Fprintf(w, "  %s[\"%s\"]\n", nid, mermaidEscape(m.Id))
		if opts.StateFill != "" && len(m.Actor.State) > 0 {
			fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.StateFill)
		}
		if opts.ShowRates {
			if r, err := sdfRates(ctx, m); err == nil {
				rates[m.Id] = r
			}
		}
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
		var parts []string
		if opts.ShowPorts {
			parts = append(parts, out+" → "+in)
		}
		if opts.ShowRates {
			p, q := rates[from], rates[to]
			if p != nil && q != nil {
				parts = append(parts, fmt.Sprintf("%d:%d", p.Outputs[out], q.Inputs[in]))
			}
		}
		label := ""
		if len(parts) > 0 {
			label = fmt.Sprintf(`-- "%s"`, mermaidEscape(strings.Join(parts, " ")))
		}
		fmt.Fprintf(w, "  %s %s --> %s\n", nids[from], label, nids[to])
	}

	for i, t := range n.Initial {
		to, in, err := crew.ParseEndpoint(t.To)
		if err != nil {
			return err
		}
		nid := fmt.Sprintf("i%d", i+1)
		fmt.Fprintf(w, "  %s((\"%d\"))\n", nid, len(t.Tokens))
		fmt.Fprintf(w, "  %s -. \"%s\" .-> %s\n", nid, mermaidEscape(in), nids[to])
	}

	fmt.Fprintf(w, "\n")
	util.Logf("mermaid gen done")

	return nil
}

// sdfRates returns the shared rate signature of a member that's
// legal under SDF.
func sdfRates(ctx context.Context, m *crew.Member) (*core.RateSignature, error) {
	f, err := core.NewFiring(m.Actor, core.SDF, &core.Options{
		Name:   m.Id,
		Params: m.Params,
	})
	if err != nil {
		return nil, err
	}
	if err = f.SetupActor(ctx); err != nil {
		return nil, err
	}
	return f.PublishedRates(), nil
}

func mermaidEscape(s string) string {
	return strings.Replace(s, `"`, `'`, -1)
}
