package core

import (
	"context"
	"fmt"
)

func (f *Firing) illegal(reason string, err error) *IllegalActorError {
	return &IllegalActorError{
		Actor:  f.name,
		Policy: f.Policy,
		Reason: reason,
		Err:    err,
	}
}

// sdfLegality requires an action without guards and one rate
// signature shared by all actions.
func (f *Firing) sdfLegality(ctx context.Context) error {
	if f.legal != nil {
		return f.legal.err
	}
	r, err := f.sdfCheck(ctx)
	f.legal = &legality{
		err:   err,
		rates: r,
	}
	return err
}

func (f *Firing) sdfCheck(ctx context.Context) (*RateSignature, error) {
	a := f.Actor

	unguarded := false
	for _, act := range a.Actions {
		if len(act.guards) == 0 {
			unguarded = true
			break
		}
	}
	if !unguarded {
		return nil, f.illegal("every action has a guard", nil)
	}

	env := f.rateEnv()
	var shared *RateSignature
	for i, act := range a.Actions {
		r, err := ComputeActionRates(ctx, a, i, act, env)
		if err != nil {
			return nil, f.illegal("rates of "+act.Name(i)+" are not computable", err)
		}
		if shared == nil {
			shared = r
			continue
		}
		if !shared.Equal(r) {
			return nil, f.illegal(fmt.Sprintf("%s has rates %s but %s has %s",
				act.Name(i), r, a.Actions[0].Name(0), shared), nil)
		}
	}
	return shared, nil
}

func (f *Firing) sdfSetup(ctx context.Context) error {
	if err := f.sdfLegality(ctx); err != nil {
		return err
	}
	f.publishRates(f.legal.rates)

	i, known := f.chosenInitializer(ctx)
	switch {
	case !known:
		// Wait for Initialize.
	case i < 0:
		if 0 < len(f.Actor.InitActions) {
			f.publishInitRates(ZeroRateSignature(f.Actor))
		}
	default:
		r, err := ComputeActionRates(ctx, f.Actor, i, f.Actor.InitActions[i], f.rateEnv())
		if err == nil {
			f.publishInitRates(r)
		}
	}

	return nil
}

// chosenInitializer returns the index of the initializer that
// Initialize fires, or -1 if none does.
//
// Before Initialize has run, that's the first initializer whose
// guards hold in the rate environment.  The answer is only known if
// the guards up to that one are statically computable.
func (f *Firing) chosenInitializer(ctx context.Context) (int, bool) {
	if f.initRan {
		return f.initFired, true
	}
	env := f.rateEnv()
	for i, act := range f.Actor.InitActions {
		if !GuardsComputable(act, f.Actor) {
			return -1, false
		}
		st, err := f.guardState(ctx, i, act, env.NewFrame(), nil)
		if err != nil {
			return -1, false
		}
		if st == True {
			return i, true
		}
	}
	return -1, true
}

// sdfResolve requires the shared rate on every input and then
// selects the first action whose guards hold.
func (f *Firing) sdfResolve(ctx context.Context) (Selection, error) {
	if err := f.sdfLegality(ctx); err != nil {
		return Selection{}, err
	}
	r := f.legal.rates
	for h := 0; h < f.inputs.Len(); h++ {
		if !f.available(h, r.Inputs[f.inputs.ID(h).Port]) {
			return Selection{State: Unresolved}, nil
		}
	}
	for i, act := range f.Actor.Actions {
		ai, ok, err := f.tryAction(ctx, i, act, r)
		if err != nil {
			return Selection{}, err
		}
		if ok {
			f.current = ai
			return Selection{State: Resolved, Action: i}, nil
		}
	}
	return Selection{State: NoneFirable}, nil
}
