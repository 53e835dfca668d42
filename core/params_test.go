package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Comcast/calflow/core"
)

func TestResolveParams(t *testing.T) {
	a := compiled(t, &core.Actor{
		Name: "scaled",
		Params: map[string]*core.ParamSpec{
			"k":     {PrimitiveType: "int", Default: 2},
			"label": {PrimitiveType: "string", Optional: true},
			"n":     {PrimitiveType: "int"},
		},
	})

	bs, err := a.ResolveParams(core.Bindings{"n": 3.0, "other": true})
	if err != nil {
		t.Fatal(err)
	}
	if bs["k"] != 2 || bs["n"] != 3.0 || bs["other"] != true {
		t.Fatal(bs)
	}
	if _, have := bs["label"]; have {
		t.Fatal(bs)
	}

	var pe *core.ParamError
	if _, err = a.ResolveParams(nil); !errors.As(err, &pe) || pe.Param != "n" {
		t.Fatalf("got %v", err)
	}
	if _, err = a.ResolveParams(core.Bindings{"n": 1.5}); !errors.As(err, &pe) {
		t.Fatalf("got %v", err)
	}
	if _, err = core.NewFiring(a, core.Dataflow, nil); !errors.As(err, &pe) {
		t.Fatalf("got %v", err)
	}
}

func TestBadParamSpec(t *testing.T) {
	a := &core.Actor{
		Params: map[string]*core.ParamSpec{
			"k": {PrimitiveType: "bool", Default: 2},
		},
	}
	var ba *core.BadActor
	if err := a.Compile(context.Background(), interpreters, true); !errors.As(err, &ba) {
		t.Fatalf("got %v", err)
	}
}
