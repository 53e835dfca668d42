package core

import (
	"context"
)

// ddfLegality rejects any guard that reads an input variable.
func (f *Firing) ddfLegality() error {
	if f.legal != nil {
		return f.legal.err
	}
	var err error
	for i, act := range f.Actor.Actions {
		if g := InputDependentGuard(act); g != nil {
			err = f.illegal("guard "+g.Source+" of "+act.Name(i)+" depends on input", nil)
			break
		}
	}
	f.legal = &legality{
		err: err,
	}
	return err
}

// ddfSelect picks the first action whose guards are definitely true
// without input tokens and publishes its rates.  With no such
// action, the zero signature is published.
func (f *Firing) ddfSelect(ctx context.Context) error {
	for i, act := range f.Actor.Actions {
		env := f.env.NewFrame()
		pending := make(map[string]bool)
		for _, p := range act.Inputs {
			for _, v := range p.Vars {
				pending[v] = true
			}
		}
		if err := f.bindDecls(ctx, act, env, pending); err != nil {
			return err
		}
		st, err := f.guardState(ctx, i, act, env, pending)
		if err != nil {
			return err
		}
		if st != True {
			continue
		}
		r, err := ComputeActionRates(ctx, f.Actor, i, act, f.env)
		if err != nil {
			return err
		}
		f.ddfSel = Selection{State: Resolved, Action: i}
		f.ddfRates = r
		f.publishRates(r)
		return nil
	}

	f.ddfSel = Selection{State: NoneFirable}
	f.ddfRates = ZeroRateSignature(f.Actor)
	f.publishRates(f.ddfRates)
	return nil
}

// bindDecls evaluates the local declarations that don't depend on
// pending names.  The others become pending.
func (f *Firing) bindDecls(ctx context.Context, act *Action, env Environment, pending map[string]bool) error {
	for _, d := range act.Decls {
		if d.value == nil {
			env.Bind(d.Name, nil)
			continue
		}
		if dependsOn(d.value, pending) {
			pending[d.Name] = true
			continue
		}
		x, err := eval(ctx, f.interp, env, d.value)
		if err != nil {
			return err
		}
		env.Bind(d.Name, x)
	}
	return nil
}

// ddfResolve only checks token availability for the action chosen
// at the last selection.
func (f *Firing) ddfResolve(ctx context.Context) (Selection, error) {
	if f.ddfSel.State != Resolved {
		return f.ddfSel, nil
	}
	i := f.ddfSel.Action
	ai, ok, err := f.tryAction(ctx, i, f.Actor.Actions[i], f.ddfRates)
	if err != nil {
		return Selection{}, err
	}
	if !ok {
		return Selection{State: Unresolved}, nil
	}
	f.current = ai
	return f.ddfSel, nil
}
