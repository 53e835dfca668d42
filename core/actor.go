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

package core

import (
	"context"
	"fmt"
)

// Actor is a specification of a guarded dataflow actor.
//
// An Actor gives the structure only.  The values of its state
// variables live in the Environment of a Firing.
//
// An Actor should be Compiled before use.  After compilation, an
// Actor should not be modified.
type Actor struct {
	// Name is the generic name for this actor.
	Name string `json:"name,omitempty" yaml:",omitempty"`

	// Version is the version of this actor.
	Version string `json:"version,omitempty" yaml:",omitempty"`

	// Doc is general documentation (in Markdown) about this actor.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Interpreter names the interpreter for all of this actor's
	// expressions.  Defaults to DefaultInterpreter.
	Interpreter string `json:"interpreter,omitempty" yaml:",omitempty"`

	Inputs  []*PortDecl `json:"inputs,omitempty" yaml:",omitempty"`
	Outputs []*PortDecl `json:"outputs,omitempty" yaml:",omitempty"`

	// Params declares the parameters the actor expects.
	Params map[string]*ParamSpec `json:"params,omitempty" yaml:",omitempty"`

	// State gives the state variables and their initial value
	// expressions.
	State []*Decl `json:"state,omitempty" yaml:",omitempty"`

	// InitActions are fired (at most one) when a sequential
	// Firing is initialized.
	InitActions []*Action `json:"initActions,omitempty" yaml:"initActions,omitempty"`

	// Actions in priority order.
	Actions []*Action `json:"actions,omitempty" yaml:",omitempty"`

	interp   Interpreter
	compiled bool
}

// PortDecl declares an input or output port.
type PortDecl struct {
	Name string `json:"name"`
	Doc  string `json:"doc,omitempty" yaml:",omitempty"`
}

// Decl is a named value expression: a state variable or an action's
// local declaration.
type Decl struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty" yaml:",omitempty"`

	value *Expr
}

// Action is one alternative behavior of an Actor.
type Action struct {
	Tag string `json:"tag,omitempty" yaml:",omitempty"`
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	Inputs  []*InputPattern     `json:"inputs,omitempty" yaml:",omitempty"`
	Outputs []*OutputExpression `json:"outputs,omitempty" yaml:",omitempty"`

	// Guards must all evaluate to true for the action to fire.
	Guards []string `json:"guards,omitempty" yaml:",omitempty"`

	// Decls are evaluated in order after inputs are bound.
	Decls []*Decl `json:"decls,omitempty" yaml:",omitempty"`

	// Body statements execute in order.
	Body []string `json:"body,omitempty" yaml:",omitempty"`

	guards []*Expr
	body   []*Expr
}

// InputPattern binds tokens read from a port to variables.
//
// With a Repeat expression that evaluates to n, each variable is
// bound to a list of n tokens.
type InputPattern struct {
	Port   string   `json:"port"`
	Vars   []string `json:"vars"`
	Repeat string   `json:"repeat,omitempty" yaml:",omitempty"`

	repeat *Expr
}

// OutputExpression gives the tokens an action produces on a port.
//
// With a Repeat expression that evaluates to n, each value must
// evaluate to a list of at least n elements.
type OutputExpression struct {
	Port   string   `json:"port"`
	Values []string `json:"values"`
	Repeat string   `json:"repeat,omitempty" yaml:",omitempty"`

	values []*Expr
	repeat *Expr
}

// Compile compiles every expression in the Actor and checks its
// structure.
//
// With force, previously compiled expressions are recompiled.
func (a *Actor) Compile(ctx context.Context, interpreters map[string]Interpreter, force bool) error {
	if a.compiled && !force {
		return nil
	}

	if interpreters == nil {
		interpreters = DefaultInterpreters
	}

	name := a.Interpreter
	if name == "" {
		name = DefaultInterpreter
	}
	interp, have := interpreters[name]
	if !have {
		return fmt.Errorf("%w: %s", InterpreterNotFound, name)
	}
	a.interp = interp

	if err := a.checkPorts(); err != nil {
		return err
	}

	for name, p := range a.Params {
		if err := p.Valid(); err != nil {
			return &BadActor{a, "parameter " + name + ": " + err.Error()}
		}
	}

	for _, d := range a.State {
		if err := d.compile(ctx, interp); err != nil {
			return fmt.Errorf("actor %s state %s: %w", a.Name, d.Name, err)
		}
	}

	for i, act := range a.InitActions {
		if 0 < len(act.Inputs) {
			return &BadActor{a, fmt.Sprintf("initializer %d has input patterns", i)}
		}
		if err := a.compileAction(ctx, interp, act); err != nil {
			return fmt.Errorf("actor %s initializer %d: %w", a.Name, i, err)
		}
	}

	for i, act := range a.Actions {
		if err := a.compileAction(ctx, interp, act); err != nil {
			return fmt.Errorf("actor %s action %d: %w", a.Name, i, err)
		}
	}

	a.compiled = true

	return nil
}

// Compiled reports whether Compile has succeeded.
func (a *Actor) Compiled() bool {
	return a.compiled
}

// Evaluator returns the Interpreter chosen by Compile.
func (a *Actor) Evaluator() Interpreter {
	return a.interp
}

func (a *Actor) checkPorts() error {
	seen := make(map[string]bool)
	for _, ps := range [][]*PortDecl{a.Inputs, a.Outputs} {
		for _, p := range ps {
			if p == nil || p.Name == "" {
				return &BadActor{a, "port without a name"}
			}
			if seen[p.Name] {
				return &BadActor{a, "duplicate port " + p.Name}
			}
			seen[p.Name] = true
		}
	}
	return nil
}

func (a *Actor) compileAction(ctx context.Context, interp Interpreter, act *Action) error {
	used := make(map[string]bool)
	for _, p := range act.Inputs {
		if a.InputPort(p.Port) == nil {
			return &BadActor{a, "pattern on undeclared input " + p.Port}
		}
		if used[p.Port] {
			return &BadActor{a, "more than one pattern on input " + p.Port}
		}
		used[p.Port] = true
		if len(p.Vars) == 0 {
			return &BadActor{a, "pattern without variables on input " + p.Port}
		}
		var err error
		if p.repeat, err = compileExpr(ctx, interp, p.Repeat); err != nil {
			return err
		}
	}

	used = make(map[string]bool)
	for _, o := range act.Outputs {
		if a.OutputPort(o.Port) == nil {
			return &BadActor{a, "expression on undeclared output " + o.Port}
		}
		if used[o.Port] {
			return &BadActor{a, "more than one expression on output " + o.Port}
		}
		used[o.Port] = true
		var err error
		if o.repeat, err = compileExpr(ctx, interp, o.Repeat); err != nil {
			return err
		}
		o.values = make([]*Expr, len(o.Values))
		for i, src := range o.Values {
			if o.values[i], err = compileExpr(ctx, interp, src); err != nil {
				return err
			}
		}
	}

	act.guards = make([]*Expr, 0, len(act.Guards))
	for _, src := range act.Guards {
		g, err := compileExpr(ctx, interp, src)
		if err != nil {
			return err
		}
		if g != nil {
			act.guards = append(act.guards, g)
		}
	}

	for _, d := range act.Decls {
		if err := d.compile(ctx, interp); err != nil {
			return err
		}
	}

	act.body = make([]*Expr, 0, len(act.Body))
	for _, src := range act.Body {
		s, err := compileExpr(ctx, interp, src)
		if err != nil {
			return err
		}
		if s != nil {
			act.body = append(act.body, s)
		}
	}

	return nil
}

func (d *Decl) compile(ctx context.Context, interp Interpreter) error {
	if d.Name == "" {
		return fmt.Errorf("declaration without a name")
	}
	var err error
	d.value, err = compileExpr(ctx, interp, d.Value)
	return err
}

// InputPort returns the declaration for the named input (or nil).
func (a *Actor) InputPort(name string) *PortDecl {
	for _, p := range a.Inputs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// OutputPort returns the declaration for the named output (or nil).
func (a *Actor) OutputPort(name string) *PortDecl {
	for _, p := range a.Outputs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// HasState reports whether the name is a state variable.
func (a *Actor) HasState(name string) bool {
	for _, d := range a.State {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Copy makes a deep copy of the Actor's structure.  The copy must be
// compiled.
func (a *Actor) Copy() *Actor {
	b := &Actor{
		Name:        a.Name,
		Version:     a.Version,
		Doc:         a.Doc,
		Interpreter: a.Interpreter,
		Inputs:      copyPorts(a.Inputs),
		Outputs:     copyPorts(a.Outputs),
		Params:      a.Params,
		State:       copyDecls(a.State),
		InitActions: make([]*Action, len(a.InitActions)),
		Actions:     make([]*Action, len(a.Actions)),
	}
	for i, act := range a.InitActions {
		b.InitActions[i] = act.Copy()
	}
	for i, act := range a.Actions {
		b.Actions[i] = act.Copy()
	}
	return b
}

func copyPorts(ps []*PortDecl) []*PortDecl {
	acc := make([]*PortDecl, len(ps))
	for i, p := range ps {
		q := *p
		acc[i] = &q
	}
	return acc
}

func copyDecls(ds []*Decl) []*Decl {
	acc := make([]*Decl, len(ds))
	for i, d := range ds {
		acc[i] = &Decl{
			Name:  d.Name,
			Value: d.Value,
		}
	}
	return acc
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append([]string(nil), ss...)
}

// Copy makes a deep, uncompiled copy of the Action.
func (act *Action) Copy() *Action {
	b := &Action{
		Tag:     act.Tag,
		Doc:     act.Doc,
		Inputs:  make([]*InputPattern, len(act.Inputs)),
		Outputs: make([]*OutputExpression, len(act.Outputs)),
		Guards:  copyStrings(act.Guards),
		Decls:   copyDecls(act.Decls),
		Body:    copyStrings(act.Body),
	}
	for i, p := range act.Inputs {
		b.Inputs[i] = &InputPattern{
			Port:   p.Port,
			Vars:   copyStrings(p.Vars),
			Repeat: p.Repeat,
		}
	}
	for i, o := range act.Outputs {
		b.Outputs[i] = &OutputExpression{
			Port:   o.Port,
			Values: copyStrings(o.Values),
			Repeat: o.Repeat,
		}
	}
	return b
}

// Name returns the tag if there is one.
func (act *Action) Name(i int) string {
	if act.Tag != "" {
		return act.Tag
	}
	return fmt.Sprintf("action%d", i)
}

// GuardExprs returns the compiled guards.
func (act *Action) GuardExprs() []*Expr {
	return act.guards
}

// InputPattern returns the pattern for the port (or nil).
func (act *Action) InputPattern(port string) *InputPattern {
	for _, p := range act.Inputs {
		if p.Port == port {
			return p
		}
	}
	return nil
}

// BindsInput reports whether an input pattern binds the name.
func (act *Action) BindsInput(name string) bool {
	for _, p := range act.Inputs {
		for _, v := range p.Vars {
			if v == name {
				return true
			}
		}
	}
	return false
}

// Declares reports whether a local declaration binds the name.
func (act *Action) Declares(name string) bool {
	for _, d := range act.Decls {
		if d.Name == name {
			return true
		}
	}
	return false
}

// RepeatExpr returns the compiled repeat expression (or nil).
func (p *InputPattern) RepeatExpr() *Expr {
	return p.repeat
}

// RepeatExpr returns the compiled repeat expression (or nil).
func (o *OutputExpression) RepeatExpr() *Expr {
	return o.repeat
}
