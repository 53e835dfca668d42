/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

package crew

import (
	"context"
	"fmt"
	"strings"

	"github.com/Comcast/calflow/core"

	"github.com/jsccast/yaml"
)

// Network is a set of actor instances and the connections between
// their ports.
type Network struct {
	Name string `json:"name,omitempty" yaml:",omitempty"`
	Doc  string `json:"doc,omitempty" yaml:",omitempty"`

	// Policy names the model of computation.  See
	// core.ParsePolicy.
	Policy string `json:"moc,omitempty" yaml:"moc,omitempty"`

	// Interpreter is the default for actors that don't name one.
	Interpreter string `json:"interpreter,omitempty" yaml:",omitempty"`

	// Capacity bounds each input queue for the sequential
	// policies.  Zero means ports.DefaultCapacity.
	Capacity int `json:"capacity,omitempty" yaml:",omitempty"`

	Members     []*Member     `json:"actors" yaml:"actors"`
	Connections []*Connection `json:"connections,omitempty" yaml:",omitempty"`

	// Initial tokens are available on inputs before anything
	// fires.
	Initial []*Initial `json:"initial,omitempty" yaml:",omitempty"`
}

// Member is one actor instance in a Network.
type Member struct {
	Id     string        `json:"id"`
	Actor  *core.Actor   `json:"actor"`
	Params core.Bindings `json:"params,omitempty" yaml:",omitempty"`
}

// Connection links an output to an input.  Both are written
// "member.port".
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Initial gives tokens for an input written "member.port".
type Initial struct {
	To     string        `json:"to"`
	Tokens []interface{} `json:"tokens"`
}

// ParseNetwork parses YAML (or JSON) and checks the result.
func ParseNetwork(bs []byte) (*Network, error) {
	var n Network
	if err := yaml.Unmarshal(bs, &n); err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

// ParseEndpoint splits "member.port".
func ParseEndpoint(s string) (string, string, error) {
	i := strings.Index(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf(`bad endpoint "%s" (want "member.port")`, s)
	}
	return s[:i], s[i+1:], nil
}

// Member returns the Member with the given id (or nil).
func (n *Network) Member(id string) *Member {
	for _, m := range n.Members {
		if m.Id == id {
			return m
		}
	}
	return nil
}

func (n *Network) input(s string) (*Member, string, error) {
	id, port, err := ParseEndpoint(s)
	if err != nil {
		return nil, "", err
	}
	m := n.Member(id)
	if m == nil {
		return nil, "", fmt.Errorf(`no member "%s" for "%s"`, id, s)
	}
	if m.Actor.InputPort(port) == nil {
		return nil, "", fmt.Errorf(`member "%s" has no input "%s"`, id, port)
	}
	return m, port, nil
}

func (n *Network) output(s string) (*Member, string, error) {
	id, port, err := ParseEndpoint(s)
	if err != nil {
		return nil, "", err
	}
	m := n.Member(id)
	if m == nil {
		return nil, "", fmt.Errorf(`no member "%s" for "%s"`, id, s)
	}
	if m.Actor.OutputPort(port) == nil {
		return nil, "", fmt.Errorf(`member "%s" has no output "%s"`, id, port)
	}
	return m, port, nil
}

// Validate checks member ids and endpoints.
func (n *Network) Validate() error {
	if _, err := core.ParsePolicy(n.Policy); err != nil {
		return err
	}
	seen := make(map[string]bool, len(n.Members))
	for i, m := range n.Members {
		if m == nil || m.Id == "" {
			return fmt.Errorf("member %d has no id", i)
		}
		if strings.Contains(m.Id, ".") {
			return fmt.Errorf(`member id "%s" contains a "."`, m.Id)
		}
		if seen[m.Id] {
			return fmt.Errorf(`duplicate member "%s"`, m.Id)
		}
		seen[m.Id] = true
		if m.Actor == nil {
			return fmt.Errorf(`member "%s" has no actor`, m.Id)
		}
	}
	for _, c := range n.Connections {
		if _, _, err := n.output(c.From); err != nil {
			return err
		}
		if _, _, err := n.input(c.To); err != nil {
			return err
		}
	}
	for _, t := range n.Initial {
		if _, _, err := n.input(t.To); err != nil {
			return err
		}
	}
	return nil
}

// Compile compiles every member's Actor.
func (n *Network) Compile(ctx context.Context, interpreters map[string]core.Interpreter) error {
	for _, m := range n.Members {
		if m.Actor.Interpreter == "" {
			m.Actor.Interpreter = n.Interpreter
		}
		if err := m.Actor.Compile(ctx, interpreters, true); err != nil {
			return fmt.Errorf(`member "%s": %w`, m.Id, err)
		}
	}
	return nil
}

// Unconnected returns the outputs, written "member.port", that no
// Connection reads.
func (n *Network) Unconnected() []string {
	used := make(map[string]bool, len(n.Connections))
	for _, c := range n.Connections {
		used[c.From] = true
	}
	var acc []string
	for _, m := range n.Members {
		for _, p := range m.Actor.Outputs {
			name := m.Id + "." + p.Name
			if !used[name] {
				acc = append(acc, name)
			}
		}
	}
	return acc
}
