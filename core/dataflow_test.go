package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Comcast/calflow/core"
)

func TestDataflowSelect(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := &core.Actor{
		Name:    "merge",
		Inputs:  portDecls("a", "b"),
		Outputs: portDecls("out"),
		Actions: []*core.Action{
			{
				Tag:     "positive",
				Inputs:  []*core.InputPattern{in("a", "x")},
				Guards:  []string{"x > 0"},
				Outputs: []*core.OutputExpression{out("out", "x")},
			},
			{
				Tag:     "scaled",
				Inputs:  []*core.InputPattern{in("b", "y")},
				Outputs: []*core.OutputExpression{out("out", "y * k")},
			},
		},
	}
	r := newRig(t, a, core.Dataflow, core.Bindings{"k": 10})
	if err := r.f.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	r.feed("a", -1)
	if ok, err := r.f.Prefire(ctx); err != nil || ok {
		t.Fatal(ok, err)
	}

	r.feed("b", 2)
	if !r.iterate(ctx) {
		t.Fatal("didn't fire")
	}
	if n := r.f.Count(); n != 1 {
		t.Fatal(n)
	}
	if got := r.output("out"); !sameInts(got, []int{20}) {
		t.Fatal(got)
	}
	// The rejected token was only looked at.
	if r.iterate(ctx) {
		t.Fatal("fired again")
	}
}

func TestDataflowRepeat(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := &core.Actor{
		Name:    "swapper",
		Inputs:  portDecls("in"),
		Outputs: portDecls("out"),
		State:   []*core.Decl{{Name: "total", Value: "0"}},
		Actions: []*core.Action{
			{
				Inputs: []*core.InputPattern{inRepeat("in", "n", "x", "y")},
				Decls:  []*core.Decl{{Name: "sum", Value: "x[0] + x[1] + y[0] + y[1]"}},
				Body:   []string{"total = total + sum"},
				Outputs: []*core.OutputExpression{
					{Port: "out", Values: []string{"y", "x"}, Repeat: "n"},
				},
			},
		},
	}
	r := newRig(t, a, core.Dataflow, core.Bindings{"n": 2})
	if err := r.f.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	r.feed("in", 1, 2, 3, 4, 5)

	for r.iterate(ctx) {
	}

	if got := r.output("out"); !sameInts(got, []int{2, 1, 4, 3}) {
		t.Fatal(got)
	}
	if x, _ := r.f.Env().Lookup("total"); x != int64(10) {
		t.Fatalf("%#v", x)
	}
}

func TestDataflowOnFire(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := &core.Actor{
		Name:    "echo",
		Inputs:  portDecls("in"),
		Outputs: portDecls("out"),
		Actions: []*core.Action{
			{
				Tag:     "echo",
				Inputs:  []*core.InputPattern{in("in", "x")},
				Outputs: []*core.OutputExpression{out("out", "x", "x")},
			},
		},
	}
	compiled(t, a)
	r := newRig(t, a, core.Dataflow, nil)

	var records []*core.FiringRecord
	f, err := core.NewFiring(a, core.Dataflow, &core.Options{
		Name: "echo1",
		IO:   r.io,
		OnFire: func(fr *core.FiringRecord) {
			records = append(records, fr)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	r.f = f
	if err = f.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	r.feed("in", "hi")
	if !r.iterate(ctx) {
		t.Fatal("didn't fire")
	}

	if len(records) != 1 {
		t.Fatal(len(records))
	}
	fr := records[0]
	if fr.Actor != "echo1" || fr.Policy != "Dataflow" || fr.Tag != "echo" {
		t.Fatalf("%#v", fr)
	}
	if fr.Consumed["in"] != 1 || fr.Produced["out"] != 2 {
		t.Fatalf("%#v", fr)
	}
}

func TestNotCompiled(t *testing.T) {
	_, err := core.NewFiring(&core.Actor{Name: "raw"}, core.Dataflow, nil)
	var anc *core.ActorNotCompiled
	if !errors.As(err, &anc) {
		t.Fatalf("got %v", err)
	}
}

func TestMissingPort(t *testing.T) {
	a := compiled(t, &core.Actor{
		Name:   "lonely",
		Inputs: portDecls("in"),
	})
	_, err := core.NewFiring(a, core.Dataflow, &core.Options{
		IO: core.IOMap{},
	})
	if err == nil {
		t.Fatal("didn't protest")
	}
}

func TestBadActors(t *testing.T) {
	tests := []struct {
		name  string
		actor *core.Actor
	}{
		{"undeclared input", &core.Actor{
			Actions: []*core.Action{{Inputs: []*core.InputPattern{in("nope", "x")}}},
		}},
		{"two patterns", &core.Actor{
			Inputs:  portDecls("in"),
			Actions: []*core.Action{{Inputs: []*core.InputPattern{in("in", "x"), in("in", "y")}}},
		}},
		{"no vars", &core.Actor{
			Inputs:  portDecls("in"),
			Actions: []*core.Action{{Inputs: []*core.InputPattern{in("in")}}},
		}},
		{"duplicate port", &core.Actor{
			Inputs:  portDecls("p"),
			Outputs: portDecls("p"),
		}},
		{"initializer with input", &core.Actor{
			Inputs:      portDecls("in"),
			InitActions: []*core.Action{{Inputs: []*core.InputPattern{in("in", "x")}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.actor.Compile(context.Background(), interpreters, true)
			var ba *core.BadActor
			if !errors.As(err, &ba) {
				t.Fatalf("got %v", err)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range core.Policies {
		q, err := core.ParsePolicy(p.String())
		if err != nil {
			t.Fatal(err)
		}
		if p != q {
			t.Fatal(q)
		}
	}
	if p, err := core.ParsePolicy("sdf"); err != nil || p != core.SDF {
		t.Fatal(p, err)
	}
	if p, err := core.ParsePolicy(""); err != nil || p != core.Dataflow {
		t.Fatal(p, err)
	}
	if _, err := core.ParsePolicy("SR"); !errors.Is(err, core.UnsupportedPolicy) {
		t.Fatalf("got %v", err)
	}
}

func TestDataflowRepeatTooLarge(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := &core.Actor{
		Name:   "wide",
		Inputs: portDecls("in"),
		Actions: []*core.Action{
			{Inputs: []*core.InputPattern{inRepeat("in", "Math.pow(2, 62)", "a", "b", "c", "d")}},
		},
	}
	r := newRig(t, a, core.Dataflow, nil)
	if err := r.f.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	r.feed("in", 1, 2, 3, 4)

	ok, err := r.f.Prefire(ctx)
	var rce *core.RateComputationError
	if ok || !errors.As(err, &rce) {
		t.Fatal(ok, err)
	}
	var fe *core.FiringError
	if !errors.As(err, &fe) || fe.Op != "prefire" {
		t.Fatalf("got %v", err)
	}
}

func TestDataflowWrapupKeepsLookahead(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := &core.Actor{
		Name:    "keeper",
		Inputs:  portDecls("a"),
		Outputs: portDecls("out"),
		Actions: []*core.Action{
			{
				Tag:     "positive",
				Inputs:  []*core.InputPattern{in("a", "x")},
				Guards:  []string{"x > 0"},
				Outputs: []*core.OutputExpression{out("out", "x")},
			},
			{
				Tag:     "pair",
				Inputs:  []*core.InputPattern{in("a", "x", "y")},
				Outputs: []*core.OutputExpression{out("out", "x + y")},
			},
		},
	}
	r := newRig(t, a, core.Dataflow, nil)
	if err := r.f.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	r.feed("a", -1)
	if r.iterate(ctx) {
		t.Fatal("fired")
	}
	if err := r.f.Wrapup(ctx); err != nil {
		t.Fatal(err)
	}

	r.feed("a", 5)
	if !r.iterate(ctx) {
		t.Fatal("didn't fire")
	}
	if got := r.output("out"); !sameInts(got, []int{4}) {
		t.Fatal(got)
	}
}
