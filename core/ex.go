package core

import (
	"context"
)

// SelectActor makes an example Actor that routes each token from
// "in" to "yes" or "no" depending on whether it exceeds the
// parameter "threshold".
//
// The guards read input tokens, so SelectActor is legal for Dataflow
// and CSP but not for DDF.  It's legal for SDF only if every
// output rate is the same, which it isn't.
func SelectActor(ctx context.Context, interpreters map[string]Interpreter) (*Actor, error) {
	a := &Actor{
		Name:    "select",
		Doc:     "Routes tokens above `threshold` to `yes` and the rest to `no`.",
		Inputs:  []*PortDecl{{Name: "in"}},
		Outputs: []*PortDecl{{Name: "yes"}, {Name: "no"}},
		State:   []*Decl{{Name: "routed", Value: "0"}},
		Actions: []*Action{
			{
				Tag:     "above",
				Inputs:  []*InputPattern{{Port: "in", Vars: []string{"x"}}},
				Guards:  []string{"threshold < x"},
				Outputs: []*OutputExpression{{Port: "yes", Values: []string{"x"}}},
				Body:    []string{"routed = routed + 1"},
			},
			{
				Tag:     "below",
				Inputs:  []*InputPattern{{Port: "in", Vars: []string{"x"}}},
				Outputs: []*OutputExpression{{Port: "no", Values: []string{"x"}}},
				Body:    []string{"routed = routed + 1"},
			},
		},
	}

	if err := a.Compile(ctx, interpreters, true); err != nil {
		return nil, err
	}

	return a, nil
}

// CounterActor makes an example Actor that is legal for SDF: it
// emits a running count for every "n" tokens it reads.  Its
// initializer emits 0.
func CounterActor(ctx context.Context, interpreters map[string]Interpreter) (*Actor, error) {
	a := &Actor{
		Name:    "counter",
		Inputs:  []*PortDecl{{Name: "in"}},
		Outputs: []*PortDecl{{Name: "count"}},
		State:   []*Decl{{Name: "seen", Value: "0"}},
		InitActions: []*Action{
			{
				Tag:     "zero",
				Outputs: []*OutputExpression{{Port: "count", Values: []string{"0"}}},
			},
		},
		Actions: []*Action{
			{
				Tag:     "count",
				Inputs:  []*InputPattern{{Port: "in", Vars: []string{"xs"}, Repeat: "n"}},
				Body:    []string{"seen = seen + xs.length"},
				Outputs: []*OutputExpression{{Port: "count", Values: []string{"seen"}}},
			},
		},
	}

	if err := a.Compile(ctx, interpreters, true); err != nil {
		return nil, err
	}

	return a, nil
}
