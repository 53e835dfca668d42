package core_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/Comcast/calflow/core"
)

func TestEnvironmentFrames(t *testing.T) {
	params := core.Bindings{"k": 1}
	root := core.NewEnvironment(params)
	params["k"] = 2
	if x, _ := root.Lookup("k"); x != 1 {
		t.Fatal("root shares the given Bindings")
	}

	state := root.NewFrame()
	state.Bind("s", 0)
	local := state.NewFrame()
	local.Bind("x", 10)

	if err := local.Set("s", 5); err != nil {
		t.Fatal(err)
	}
	if x, _ := state.Lookup("s"); x != 5 {
		t.Fatalf("%#v", x)
	}
	if _, have := state.Lookup("x"); have {
		t.Fatal("local leaked")
	}

	var ub *core.UnboundVariable
	if err := local.Set("nope", 1); !errors.As(err, &ub) {
		t.Fatalf("got %v", err)
	}

	if got := local.Names(); !reflect.DeepEqual(got, []string{"k", "s", "x"}) {
		t.Fatal(got)
	}
}

func TestBindingsCopy(t *testing.T) {
	bs := core.Bindings{"a": 1, "b": 2}
	c := bs.Copy()
	delete(c, "a")
	if len(bs) != 2 {
		t.Fatal("Copy shares")
	}
}

func TestChannels(t *testing.T) {
	cs := core.NewChannels(portDecls("a", "b"))
	if cs.Len() != 2 {
		t.Fatal(cs.Len())
	}
	h, ok := cs.HandleOf("b")
	if !ok || h != 1 {
		t.Fatal(h, ok)
	}
	if id := cs.ID(h); id.Port != "b" || id.Channel != 0 {
		t.Fatalf("%#v", id)
	}

	p := cs.NewProfile()
	if !p.Empty() {
		t.Fatal(p)
	}
	p[1] = 3
	if p.Empty() || p.Total() != 3 {
		t.Fatal(p)
	}

	acc := cs.NewAccumulator()
	acc.Append(0, "x")
	acc.Append(0, "y")
	if n := acc.Count(0); n != 2 {
		t.Fatal(n)
	}
	if got := acc.Counts(cs); got["a"] != 2 || got["b"] != 0 {
		t.Fatal(got)
	}
}

func TestValues(t *testing.T) {
	for _, x := range []interface{}{3, int32(3), int64(3), 3.0} {
		n, err := core.IntValue(x)
		if err != nil || n != 3 {
			t.Fatal(x, n, err)
		}
	}
	for _, x := range []interface{}{3.5, 1e300, math.Pow(2, 63), -math.Pow(2, 64)} {
		if _, err := core.IntValue(x); err == nil {
			t.Fatal(x, "didn't protest")
		}
	}
	if n, err := core.IntValue(math.Pow(2, 62)); err != nil || n != int(math.Pow(2, 62)) {
		t.Fatal(n, err)
	}
	if ok, err := core.IsTrue(true); err != nil || !ok {
		t.Fatal(ok, err)
	}
	if _, err := core.IsTrue(1); err == nil {
		t.Fatal("didn't protest")
	}
	xs, err := core.ListValue([]int64{1, 2})
	if err != nil || len(xs) != 2 || xs[1] != int64(2) {
		t.Fatal(xs, err)
	}
}
