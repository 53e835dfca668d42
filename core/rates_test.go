package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Comcast/calflow/core"
)

func TestRateSignatureString(t *testing.T) {
	r := &core.RateSignature{
		Inputs:  map[string]int{"b": 2, "a": 1},
		Outputs: map[string]int{"out": 0},
	}
	if s := r.String(); s != "in:{a:1,b:2} out:{out:0}" {
		t.Fatal(s)
	}
	s := r.Copy()
	if !r.Equal(s) {
		t.Fatal("copy not equal")
	}
	s.Inputs["a"] = 3
	if r.Equal(s) {
		t.Fatal("copy shares maps")
	}
	s.Inputs["a"] = 1
	s.Inputs["c"] = 0
	if r.Equal(s) {
		t.Fatal("extra port ignored")
	}
}

func TestComputeActionRates(t *testing.T) {
	a := compiled(t, &core.Actor{
		Name:    "pairs",
		Inputs:  portDecls("a", "b"),
		Outputs: portDecls("out"),
		Actions: []*core.Action{
			{
				Inputs:  []*core.InputPattern{inRepeat("a", "n", "x", "y")},
				Outputs: []*core.OutputExpression{{Port: "out", Values: []string{"x", "y"}, Repeat: "n"}},
			},
		},
	})

	env := core.NewEnvironment(core.Bindings{"n": 3})
	r, err := core.ComputeActionRates(context.Background(), a, 0, a.Actions[0], env)
	if err != nil {
		t.Fatal(err)
	}
	want := &core.RateSignature{
		Inputs:  map[string]int{"a": 6, "b": 0},
		Outputs: map[string]int{"out": 6},
	}
	if !r.Equal(want) {
		t.Fatalf("%s != %s", r, want)
	}
}

func TestComputeActionRatesErrors(t *testing.T) {
	tests := []struct {
		name   string
		repeat string
	}{
		{"input variable", "x"},
		{"local declaration", "d"},
		{"state variable", "s"},
		{"negative", "-1"},
		{"fractional", "1.5"},
		{"huge", "1e300"},
		{"not a number", `"two"`},
		{"unbound", "nowhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := compiled(t, &core.Actor{
				Name:    "bad",
				Inputs:  portDecls("in"),
				Outputs: portDecls("out"),
				State:   []*core.Decl{{Name: "s", Value: "2"}},
				Actions: []*core.Action{
					{
						Inputs: []*core.InputPattern{in("in", "x")},
						Decls:  []*core.Decl{{Name: "d", Value: "2"}},
						Outputs: []*core.OutputExpression{
							{Port: "out", Values: []string{"[x, x]"}, Repeat: tt.repeat},
						},
					},
				},
			})
			env := core.NewEnvironment(core.Bindings{"s": 2})
			_, err := core.ComputeActionRates(context.Background(), a, 0, a.Actions[0], env)
			var rce *core.RateComputationError
			if !errors.As(err, &rce) {
				t.Fatalf("got %v", err)
			}
			if rce.Port != "out" {
				t.Fatal(rce.Port)
			}
		})
	}
}

func TestComputeActionRatesOverflow(t *testing.T) {
	a := compiled(t, &core.Actor{
		Name:   "wide",
		Inputs: portDecls("in"),
		Actions: []*core.Action{
			{Inputs: []*core.InputPattern{inRepeat("in", "Math.pow(2, 62)", "a", "b", "c", "d")}},
		},
	})
	_, err := core.ComputeActionRates(context.Background(), a, 0, a.Actions[0], core.NewEnvironment(nil))
	var rce *core.RateComputationError
	if !errors.As(err, &rce) {
		t.Fatalf("got %v", err)
	}
	if rce.Port != "in" {
		t.Fatal(rce.Port)
	}
}

// Declarations in other actions don't change what's computable in
// this one.
func TestStaticComputabilityIsPerAction(t *testing.T) {
	a := &core.Actor{
		Name:    "local",
		Inputs:  portDecls("in"),
		Outputs: portDecls("out"),
		Actions: []*core.Action{
			{
				Tag:     "A",
				Inputs:  []*core.InputPattern{in("in", "x")},
				Guards:  []string{"k > 0"},
				Outputs: []*core.OutputExpression{{Port: "out", Values: []string{"[x]"}, Repeat: "k"}},
			},
			{
				Tag:    "B",
				Inputs: []*core.InputPattern{in("in", "y")},
			},
		},
	}
	ctx := context.Background()
	env := core.NewEnvironment(core.Bindings{"k": 1})

	compiled(t, a)
	before, err := core.ComputeActionRates(ctx, a, 0, a.Actions[0], env)
	if err != nil {
		t.Fatal(err)
	}
	if !core.IsStaticallyComputable(a.Actions[0].GuardExprs()[0], a.Actions[0], a) {
		t.Fatal("k is a parameter")
	}

	a.Actions[1].Decls = append(a.Actions[1].Decls, &core.Decl{Name: "k", Value: "y"})
	compiled(t, a)

	if !core.IsStaticallyComputable(a.Actions[0].GuardExprs()[0], a.Actions[0], a) {
		t.Fatal("declaration in B changed A's guard")
	}
	if !core.GuardsComputable(a.Actions[0], a) {
		t.Fatal("declaration in B changed A's guards")
	}
	after, err := core.ComputeActionRates(ctx, a, 0, a.Actions[0], env)
	if err != nil {
		t.Fatal(err)
	}
	if !after.Equal(before) {
		t.Fatalf("%s != %s", after, before)
	}
}

func TestStaticComputability(t *testing.T) {
	a := compiled(t, &core.Actor{
		Name:   "static",
		Inputs: portDecls("in"),
		State:  []*core.Decl{{Name: "s", Value: "0"}},
		Actions: []*core.Action{
			{
				Tag:    "reads p",
				Inputs: []*core.InputPattern{in("in", "p")},
				Guards: []string{"p > limit", "s == 0"},
			},
			{
				Tag:    "reads x",
				Inputs: []*core.InputPattern{in("in", "x")},
				Decls:  []*core.Decl{{Name: "d", Value: "x + 1"}},
				Guards: []string{"p > limit", "d > 0"},
			},
		},
	})

	first, second := a.Actions[0], a.Actions[1]
	pg, sg := first.GuardExprs()[0], first.GuardExprs()[1]
	dg := second.GuardExprs()[1]

	if core.IsStaticallyComputable(pg, first, a) {
		t.Fatal("p is an input of the first action")
	}
	// The same expression is computable where p is only a
	// parameter.
	if !core.IsStaticallyComputable(pg, second, a) {
		t.Fatal("p is a parameter for the second action")
	}
	if core.IsStaticallyComputable(sg, first, a) {
		t.Fatal("s is state")
	}
	if core.IsStaticallyComputable(dg, second, a) {
		t.Fatal("d is a local declaration")
	}
	if !core.IsStaticallyComputable(nil, first, a) {
		t.Fatal("nil should be computable")
	}

	if g := core.InputDependentGuard(first); g == nil || g.Source != "p > limit" {
		t.Fatalf("%v", g)
	}
	if g := core.InputDependentGuard(second); g != nil {
		t.Fatalf("%v", g)
	}
	if core.GuardsComputable(first, a) || core.GuardsComputable(second, a) {
		t.Fatal("guards computable")
	}
}
