package core

import (
	"context"
	"errors"
)

// NoIO occurs when a sequential Firing needs to move tokens but was
// given no IO.
var NoIO = errors.New("no IO")

// available reports whether n tokens can be had from the input
// without blocking, counting tokens already looked ahead.
func (f *Firing) available(h, n int) bool {
	have := len(f.buffer[h])
	if n <= have {
		return true
	}
	if f.inPorts == nil {
		return false
	}
	return f.inPorts[h].HasToken(0, n-have)
}

// lookahead takes tokens from the port into the buffer until it
// holds n.  Nothing is consumed until an action fires.
func (f *Firing) lookahead(h, n int) error {
	for len(f.buffer[h]) < n {
		if f.inPorts == nil {
			return NoIO
		}
		t, err := f.inPorts[h].Get(0)
		if err != nil {
			return err
		}
		f.buffer.Append(h, t)
	}
	return nil
}

func (f *Firing) consume(h, n int) {
	rest := f.buffer[h][n:]
	f.buffer[h] = append(make([]Token, 0, len(rest)), rest...)
}

func (f *Firing) send(outs Accumulator) error {
	for h, ts := range outs {
		if len(ts) == 0 {
			continue
		}
		if f.outPorts == nil {
			return NoIO
		}
		for _, t := range ts {
			if err := f.outPorts[h].Send(0, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// tryAction checks the rates against the inputs, looks ahead, and
// evaluates the guards.  On success the returned interpreter is
// ready to step.
func (f *Firing) tryAction(ctx context.Context, i int, act *Action, r *RateSignature) (*actionInterpreter, bool, error) {
	for _, p := range act.Inputs {
		h, _ := f.inputs.HandleOf(p.Port)
		if !f.available(h, r.Inputs[p.Port]) {
			return nil, false, nil
		}
	}
	for _, p := range act.Inputs {
		h, _ := f.inputs.HandleOf(p.Port)
		if err := f.lookahead(h, r.Inputs[p.Port]); err != nil {
			return nil, false, err
		}
	}

	ai, err := f.actionSetup(ctx, i, act, f.buffer)
	if err != nil {
		return nil, false, err
	}
	ok, err := ai.evaluatePrecondition(ctx)
	if err != nil || !ok {
		ai.clear()
		return nil, false, err
	}
	ai.rates = r
	return ai, true, nil
}

// dataflowResolve selects the first action whose rates are available
// and whose guards hold.
func (f *Firing) dataflowResolve(ctx context.Context) (Selection, error) {
	for i, act := range f.Actor.Actions {
		r, err := ComputeActionRates(ctx, f.Actor, i, act, f.env)
		if err != nil {
			return Selection{}, err
		}
		ai, ok, err := f.tryAction(ctx, i, act, r)
		if err != nil {
			return Selection{}, err
		}
		if ok {
			f.current = ai
			return Selection{State: Resolved, Action: i}, nil
		}
	}
	return Selection{State: Unresolved}, nil
}
