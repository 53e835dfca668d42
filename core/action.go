package core

import (
	"context"
	"fmt"
)

// actionInterpreter carries one action through
// setup/precondition/step/outputs/clear.
type actionInterpreter struct {
	f      *Firing
	index  int
	action *Action
	env    Environment

	// rates is set by the sequential selectors.
	rates *RateSignature
}

// actionSetup binds input variables from acc (indexed by input
// handle) and then local declarations in a fresh frame over the
// actor environment.
func (f *Firing) actionSetup(ctx context.Context, i int, act *Action, acc Accumulator) (*actionInterpreter, error) {
	env := f.env.NewFrame()
	for _, p := range act.Inputs {
		h, _ := f.inputs.HandleOf(p.Port)
		n, err := repeatCount(ctx, f.Actor, i, act, p.Port, p.repeat, f.env)
		if err != nil {
			return nil, err
		}
		if err := bindPattern(env, p, n, acc[h]); err != nil {
			return nil, err
		}
	}
	for _, d := range act.Decls {
		var x interface{}
		if d.value != nil {
			var err error
			if x, err = eval(ctx, f.interp, env, d.value); err != nil {
				return nil, fmt.Errorf("declaration %s: %w", d.Name, err)
			}
		}
		env.Bind(d.Name, x)
	}
	return &actionInterpreter{
		f:      f,
		index:  i,
		action: act,
		env:    env,
	}, nil
}

// bindPattern binds the pattern's variables.  With a repeat count n,
// variable k gets the list of tokens data[j*len(vars)+k] for j < n.
func bindPattern(env Environment, p *InputPattern, n int, data []Token) error {
	k := len(p.Vars)
	if p.repeat == nil {
		if len(data) < k {
			return fmt.Errorf("port %s has %d tokens, pattern needs %d", p.Port, len(data), k)
		}
		for j, v := range p.Vars {
			env.Bind(v, data[j])
		}
		return nil
	}
	if short(data, n, k) {
		return fmt.Errorf("port %s has %d tokens, pattern needs %d repetitions of %d", p.Port, len(data), n, k)
	}
	for j, v := range p.Vars {
		xs := make([]interface{}, n)
		for m := range xs {
			xs[m] = data[m*k+j]
		}
		env.Bind(v, xs)
	}
	return nil
}

// short reports whether data has fewer than n*k tokens without
// computing n*k.
func short(data []Token, n, k int) bool {
	return k > 0 && n > len(data)/k
}

// bindAvailable binds what it can from a partial read and returns
// the names it could not bind.  A repeated pattern binds all of its
// variables or none.
func bindAvailable(env Environment, p *InputPattern, n int, data []Token) []string {
	if p.repeat != nil {
		if short(data, n, len(p.Vars)) {
			return p.Vars
		}
		bindPattern(env, p, n, data)
		return nil
	}
	var pending []string
	for j, v := range p.Vars {
		if j < len(data) {
			env.Bind(v, data[j])
		} else {
			pending = append(pending, v)
		}
	}
	return pending
}

// guardState evaluates the guards in order.  A guard that references
// a pending name is Unknown.  The first false guard ends evaluation.
func (f *Firing) guardState(ctx context.Context, i int, act *Action, env Environment, pending map[string]bool) (Tristate, error) {
	result := True
	for _, g := range act.guards {
		if dependsOn(g, pending) {
			result = Unknown
			continue
		}
		x, err := eval(ctx, f.interp, env, g)
		if err == nil {
			var ok bool
			if ok, err = IsTrue(x); err == nil && !ok {
				return False, nil
			}
		}
		if err != nil {
			return False, &GuardEvaluationError{
				Actor:  f.name,
				Action: i,
				Guard:  g.Source,
				Err:    err,
			}
		}
	}
	return result, nil
}

func dependsOn(e *Expr, names map[string]bool) bool {
	if len(names) == 0 {
		return false
	}
	for _, v := range e.FreeVars() {
		if names[v] {
			return true
		}
	}
	return false
}

func (ai *actionInterpreter) evaluatePrecondition(ctx context.Context) (bool, error) {
	st, err := ai.f.guardState(ctx, ai.index, ai.action, ai.env, nil)
	if err != nil {
		return false, err
	}
	return st == True, nil
}

// step executes the body.  Assignments to state variables land in
// the actor environment.
func (ai *actionInterpreter) step(ctx context.Context) error {
	for _, s := range ai.action.body {
		if err := ai.f.interp.Exec(ctx, ai.env, s.compiled); err != nil {
			return fmt.Errorf("action %s statement %q: %w", ai.action.Name(ai.index), s.Source, err)
		}
	}
	return nil
}

// computeOutputs evaluates the output expressions into tokens
// indexed by output handle.
func (ai *actionInterpreter) computeOutputs(ctx context.Context) (Accumulator, error) {
	f := ai.f
	outs := f.outputs.NewAccumulator()
	for _, o := range ai.action.Outputs {
		h, _ := f.outputs.HandleOf(o.Port)
		if o.repeat == nil {
			for _, e := range o.values {
				x, err := eval(ctx, f.interp, ai.env, e)
				if err != nil {
					return nil, fmt.Errorf("output %s: %w", o.Port, err)
				}
				outs.Append(h, x)
			}
			continue
		}

		n, err := repeatCount(ctx, f.Actor, ai.index, ai.action, o.Port, o.repeat, f.env)
		if err != nil {
			return nil, err
		}
		lists := make([][]Token, len(o.values))
		for k, e := range o.values {
			x, err := eval(ctx, f.interp, ai.env, e)
			if err != nil {
				return nil, fmt.Errorf("output %s: %w", o.Port, err)
			}
			if lists[k], err = ListValue(x); err != nil {
				return nil, fmt.Errorf("output %s: %w", o.Port, err)
			}
			if len(lists[k]) < n {
				return nil, fmt.Errorf("output %s: %s has %d elements, repeat is %d",
					o.Port, e.Source, len(lists[k]), n)
			}
		}
		for j := 0; j < n; j++ {
			for k := range lists {
				outs.Append(h, lists[k][j])
			}
		}
	}
	return outs, nil
}

func (ai *actionInterpreter) clear() {
	ai.env = nil
}
