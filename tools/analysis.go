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
	"sort"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/crew"
)

// ActorAnalysis summarizes the structure of a compiled Actor and
// reports its legality under each Policy.
type ActorAnalysis struct {
	actor *core.Actor

	Name        string   `json:"name"`
	Interpreter string   `json:"interpreter"`
	Actions     int      `json:"actions"`
	InitActions int      `json:"initActions,omitempty"`
	Guards      int      `json:"guards"`
	StateVars   []string `json:"state,omitempty"`
	Params      []string `json:"params,omitempty"`

	// Rates maps each action name to its rate signature.  Actions
	// whose rates can't be computed statically appear in
	// RateErrors instead.
	Rates      map[string]string `json:"rates,omitempty"`
	RateErrors map[string]string `json:"rateErrors,omitempty"`

	// InputDependentGuards lists "action: guard" for guards that
	// read input tokens.
	InputDependentGuards []string `json:"inputDependentGuards,omitempty"`

	// DeferredGuards lists actions with a guard that isn't
	// statically computable.
	DeferredGuards []string `json:"deferredGuards,omitempty"`

	// Legality maps each policy name to "" if the actor is legal
	// under that policy and to the reason otherwise.
	Legality map[string]string `json:"legality"`

	Errors []string `json:"errors,omitempty"`
}

// Analyze examines a compiled Actor.
//
// Repeat expressions are evaluated with the given parameters plus
// the Actor's defaults.
func Analyze(ctx context.Context, a *core.Actor, params core.Bindings) (*ActorAnalysis, error) {
	if !a.Compiled() {
		return nil, &core.ActorNotCompiled{Actor: a}
	}
	bs, err := a.ResolveParams(params)
	if err != nil {
		return nil, err
	}

	x := ActorAnalysis{
		actor:       a,
		Name:        a.Name,
		Interpreter: a.Interpreter,
		Actions:     len(a.Actions),
		InitActions: len(a.InitActions),
		Rates:       make(map[string]string, len(a.Actions)),
		Legality:    make(map[string]string, len(core.Policies)),
		Errors:      make([]string, 0, 4),
	}
	if x.Interpreter == "" {
		x.Interpreter = core.DefaultInterpreter
	}

	for _, d := range a.State {
		x.StateVars = append(x.StateVars, d.Name)
	}
	for name := range a.Params {
		x.Params = append(x.Params, name)
	}
	sort.Strings(x.Params)

	env := core.NewEnvironment(bs)
	for i, act := range a.Actions {
		name := act.Name(i)
		x.Guards += len(act.Guards)

		if g := core.InputDependentGuard(act); g != nil {
			x.InputDependentGuards = append(x.InputDependentGuards, name+": "+g.Source)
		}
		if !core.GuardsComputable(act, a) {
			x.DeferredGuards = append(x.DeferredGuards, name)
		}

		r, err := core.ComputeActionRates(ctx, a, i, act, env)
		if err != nil {
			if x.RateErrors == nil {
				x.RateErrors = make(map[string]string)
			}
			x.RateErrors[name] = err.Error()
			continue
		}
		x.Rates[name] = r.String()
	}

	for _, p := range core.Policies {
		f, err := core.NewFiring(a, p, &core.Options{
			Params: params,
		})
		if err != nil {
			x.Errors = append(x.Errors, fmt.Sprintf("%s: %v", p, err))
			continue
		}
		reason := ""
		if err = f.Legality(ctx); err != nil {
			reason = err.Error()
		}
		x.Legality[p.String()] = reason
	}

	if len(a.Actions) == 0 {
		x.Errors = append(x.Errors, "no actions")
	}

	return &x, nil
}

// Legal returns the names of the policies under which the actor is
// legal.
func (x *ActorAnalysis) Legal() []string {
	acc := make([]string, 0, len(x.Legality))
	for _, p := range core.Policies {
		if reason, have := x.Legality[p.String()]; have && reason == "" {
			acc = append(acc, p.String())
		}
	}
	return acc
}

// AnalyzeNetwork analyzes every member of a compiled Network using
// the member's parameters.
func AnalyzeNetwork(ctx context.Context, n *crew.Network) (map[string]*ActorAnalysis, error) {
	acc := make(map[string]*ActorAnalysis, len(n.Members))
	for _, m := range n.Members {
		x, err := Analyze(ctx, m.Actor, m.Params)
		if err != nil {
			return nil, fmt.Errorf(`member "%s": %w`, m.Id, err)
		}
		acc[m.Id] = x
	}
	return acc, nil
}
