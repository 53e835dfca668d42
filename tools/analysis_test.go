package tools

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/crew"
	"github.com/Comcast/calflow/interpreters"
)

func network(t *testing.T, name string) *crew.Network {
	n, err := ReadNetworkFile("../networks/" + name)
	if err != nil {
		t.Fatal(err)
	}
	if err = n.Compile(context.Background(), interpreters.Standard()); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestAnalysis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("pipeline", func(t *testing.T) {
		xs, err := AnalyzeNetwork(ctx, network(t, "pipeline.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		sum := xs["sum"]
		if sum == nil {
			t.Fatal(xs)
		}
		if r := sum.Rates["add"]; r != "in:{in:2} out:{out:1}" {
			t.Fatal(r)
		}
		if got := sum.Legal(); len(got) != len(core.Policies) {
			t.Fatal(got, sum.Legality)
		}
		if !reflect.DeepEqual(sum.StateVars, []string{"total"}) {
			t.Fatal(sum.StateVars)
		}
		if !reflect.DeepEqual(sum.Params, []string{"n"}) {
			t.Fatal(sum.Params)
		}
		if sum.Interpreter != core.DefaultInterpreter {
			t.Fatal(sum.Interpreter)
		}
	})

	t.Run("router", func(t *testing.T) {
		xs, err := AnalyzeNetwork(ctx, network(t, "router.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		x := xs["route"]
		if got := x.Legal(); !reflect.DeepEqual(got, []string{"Dataflow", "CSP"}) {
			t.Fatal(got, x.Legality)
		}
		if x.Legality["DDF"] == "" || x.Legality["SDF"] == "" {
			t.Fatal(x.Legality)
		}
		if !reflect.DeepEqual(x.InputDependentGuards, []string{"above: threshold < x"}) {
			t.Fatal(x.InputDependentGuards)
		}
		if !reflect.DeepEqual(x.DeferredGuards, []string{"above"}) {
			t.Fatal(x.DeferredGuards)
		}
		if x.Guards != 1 || x.Actions != 2 {
			t.Fatal(x.Guards, x.Actions)
		}
	})

	t.Run("rateErrors", func(t *testing.T) {
		a := &core.Actor{
			Name:    "stateful",
			Inputs:  []*core.PortDecl{{Name: "in"}},
			State:   []*core.Decl{{Name: "k", Value: "1"}},
			Actions: []*core.Action{{Inputs: []*core.InputPattern{{Port: "in", Vars: []string{"x"}, Repeat: "k"}}}},
		}
		if err := a.Compile(ctx, interpreters.Standard(), true); err != nil {
			t.Fatal(err)
		}
		x, err := Analyze(ctx, a, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, have := x.RateErrors["action0"]; !have {
			t.Fatal(x.RateErrors)
		}
		if x.Legality["SDF"] == "" {
			t.Fatal(x.Legality)
		}
	})

	t.Run("notCompiled", func(t *testing.T) {
		_, err := Analyze(ctx, &core.Actor{Name: "raw"}, nil)
		var anc *core.ActorNotCompiled
		if !errors.As(err, &anc) {
			t.Fatalf("got %v", err)
		}
	})
}
