package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/rendezvous"
)

func recorder(records *[]*core.FiringRecord) func(*core.FiringRecord) {
	return func(fr *core.FiringRecord) {
		*records = append(*records, fr)
	}
}

func cspActor(actions ...*core.Action) *core.Actor {
	return &core.Actor{
		Name:    "chooser",
		Inputs:  portDecls("A", "B"),
		Outputs: portDecls("out"),
		Actions: actions,
	}
}

func TestCSPTwoActionRace(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{
			Tag:     "X",
			Inputs:  []*core.InputPattern{in("A", "a")},
			Outputs: []*core.OutputExpression{out("out", "a")},
		},
		&core.Action{
			Tag:     "Y",
			Inputs:  []*core.InputPattern{in("B", "b")},
			Outputs: []*core.OutputExpression{out("out", "b")},
		},
	)
	s := newScripted()
	s.inputs["A"] = []interface{}{1}
	s.inputs["B"] = []interface{}{2}

	f := cspFiring(t, a, s)
	if err := f.Fire(ctx); err != nil {
		t.Fatal(err)
	}
	if n := f.Count(); n != 1 {
		t.Fatal(n)
	}
	if len(s.reads) != 1 {
		t.Fatal(s.reads)
	}
	if len(s.sent["out"]) != 1 {
		t.Fatal(s.sent)
	}
}

func TestCSPSafeProfile(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{
			Tag:     "X",
			Inputs:  []*core.InputPattern{in("A", "p", "q"), in("B", "b")},
			Guards:  []string{"p > 0"},
			Outputs: []*core.OutputExpression{out("out", "p + q + b")},
		},
		&core.Action{
			Tag:     "Y",
			Inputs:  []*core.InputPattern{in("A", "r", "s", "u")},
			Guards:  []string{"r <= 0"},
			Outputs: []*core.OutputExpression{out("out", "r")},
		},
	)
	// Offer B first whenever it's enabled.
	s := newScripted("B", "A")
	s.inputs["A"] = []interface{}{5, 6, 7}
	s.inputs["B"] = []interface{}{1}

	var records []*core.FiringRecord
	compiled(t, a)
	f, err := core.NewFiring(a, core.CSP, &core.Options{
		Chooser: s,
		OnFire:  recorder(&records),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = f.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err = f.Fire(ctx); err != nil {
		t.Fatal(err)
	}

	// Only A is read until Y is eliminated.
	if got := strings.Join(s.reads, ","); got != "A,A,B" {
		t.Fatal(got)
	}
	if len(s.inputs["A"]) != 1 {
		t.Fatal(s.inputs["A"])
	}
	if len(records) != 1 || records[0].Tag != "X" {
		t.Fatalf("%#v", records)
	}
	if records[0].Consumed["A"] != 2 || records[0].Consumed["B"] != 1 {
		t.Fatalf("%#v", records[0].Consumed)
	}
	if xs := s.sent["out"]; len(xs) != 1 || xs[0] != int64(12) {
		t.Fatalf("%#v", xs)
	}
}

func TestCSPIllegalRemainder(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{Tag: "X", Inputs: []*core.InputPattern{in("B", "b")}},
		&core.Action{Tag: "Y", Inputs: []*core.InputPattern{in("A", "a")}},
		&core.Action{Tag: "Z", Inputs: []*core.InputPattern{in("A", "c")}},
	)
	s := newScripted()
	s.inputs["A"] = []interface{}{1}
	s.inputs["B"] = []interface{}{1}

	f := cspFiring(t, a, s)
	err := f.Fire(ctx)
	var iac *core.IllegalActorConfiguration
	if !errors.As(err, &iac) {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(err.Error(), "Illegal CSP actor encountered") {
		t.Fatal(err)
	}
	if len(s.reads) != 0 {
		t.Fatal(s.reads)
	}
}

func TestCSPDisjointChannels(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{Tag: "X", Inputs: []*core.InputPattern{in("A", "a")}},
		&core.Action{Tag: "Y", Inputs: []*core.InputPattern{in("B", "b")}},
	)
	for _, order := range [][]string{{"A", "B"}, {"B", "A"}} {
		s := newScripted(order...)
		s.inputs["A"] = []interface{}{1, 2}
		s.inputs["B"] = []interface{}{3, 4}

		var records []*core.FiringRecord
		compiled(t, a)
		f, err := core.NewFiring(a, core.CSP, &core.Options{
			Chooser: s,
			OnFire:  recorder(&records),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err = f.Initialize(ctx); err != nil {
			t.Fatal(err)
		}
		if err = f.Fire(ctx); err != nil {
			t.Fatal(err)
		}
		if len(s.reads) != 1 || s.reads[0] != order[0] {
			t.Fatal(order, s.reads)
		}
		want := map[string]string{"A": "X", "B": "Y"}[order[0]]
		if len(records) != 1 || records[0].Tag != want {
			t.Fatalf("%v: %#v", order, records)
		}
	}
}

func TestCSPGuardElimination(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{
			Tag:     "X",
			Inputs:  []*core.InputPattern{in("A", "a")},
			Guards:  []string{"a > 0"},
			Outputs: []*core.OutputExpression{out("out", "a")},
		},
		&core.Action{
			Tag:     "Y",
			Inputs:  []*core.InputPattern{in("B", "b")},
			Outputs: []*core.OutputExpression{out("out", "b")},
		},
	)
	s := newScripted("A", "B")
	s.inputs["A"] = []interface{}{-1}
	s.inputs["B"] = []interface{}{2}

	f := cspFiring(t, a, s)
	if err := f.Fire(ctx); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(s.reads, ","); got != "A,B" {
		t.Fatal(got)
	}
	if xs := s.sent["out"]; len(xs) != 1 || xs[0] != int64(2) {
		t.Fatalf("%#v", xs)
	}
}

func TestCSPStateGuard(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{
			Tag:    "X",
			Inputs: []*core.InputPattern{in("A", "a")},
			Guards: []string{"turn == 0"},
			Body:   []string{"turn = 1"},
		},
		&core.Action{
			Tag:    "Y",
			Inputs: []*core.InputPattern{in("B", "b")},
			Guards: []string{"turn == 1"},
			Body:   []string{"turn = 0"},
		},
	)
	a.State = []*core.Decl{{Name: "turn", Value: "0"}}

	// B is preferred, but only X is enabled at first.
	s := newScripted("B", "A")
	s.inputs["A"] = []interface{}{1, 2}
	s.inputs["B"] = []interface{}{3, 4}

	f := cspFiring(t, a, s)
	for i := 0; i < 4; i++ {
		if err := f.Fire(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := strings.Join(s.reads, ","); got != "A,B,A,B" {
		t.Fatal(got)
	}
}

func TestCSPRepeatedWrite(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{
			Inputs:  []*core.InputPattern{in("A", "a")},
			Outputs: []*core.OutputExpression{out("out", "a", "a * 2")},
		},
	)
	s := newScripted()
	s.inputs["A"] = []interface{}{3}

	f := cspFiring(t, a, s)
	if err := f.Fire(ctx); err != nil {
		t.Fatal(err)
	}
	if xs := s.sent["out"]; len(xs) != 2 || xs[0] != int64(3) || xs[1] != int64(6) {
		t.Fatalf("%#v", xs)
	}
}

func TestCSPClosed(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{Tag: "X", Inputs: []*core.InputPattern{in("A", "a")}},
	)
	f := cspFiring(t, a, newScripted())
	ok, err := f.Prefire(ctx)
	if err != nil || !ok {
		t.Fatal(ok, err)
	}
	if err = f.Fire(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, err = f.Postfire(ctx); err != nil || ok {
		t.Fatal(ok, err)
	}
	if n := f.Count(); n != 0 {
		t.Fatal(n)
	}
}

func TestCSPNoChooser(t *testing.T) {
	a := compiled(t, cspActor(&core.Action{Inputs: []*core.InputPattern{in("A", "a")}}))
	f, err := core.NewFiring(a, core.CSP, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = f.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err = f.Fire(context.Background()); !errors.Is(err, core.NoChooser) {
		t.Fatalf("got %v", err)
	}
}

func TestCSPStop(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	h := rendezvous.NewHub()
	err := h.Connect(
		rendezvous.Endpoint{Actor: "src", Port: "out"},
		rendezvous.Endpoint{Actor: "chooser", Port: "A"})
	if err != nil {
		t.Fatal(err)
	}

	a := compiled(t, cspActor(&core.Action{Inputs: []*core.InputPattern{in("A", "a")}}))
	f, err := core.NewFiring(a, core.CSP, &core.Options{
		Chooser: h.Chooser("chooser"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = f.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- f.Fire(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	f.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-ctx.Done():
		t.Fatal("Fire didn't return")
	}
	if ok, err := f.Postfire(ctx); err != nil || ok {
		t.Fatal(ok, err)
	}
	if ok, err := f.Prefire(ctx); err != nil || ok {
		t.Fatal(ok, err)
	}
}

func TestCSPNothingEnabled(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := cspActor(
		&core.Action{Inputs: []*core.InputPattern{in("A", "a")}, Guards: []string{"false"}},
	)
	s := newScripted()
	s.inputs["A"] = []interface{}{1}

	f := cspFiring(t, a, s)
	if err := f.Fire(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, err := f.Postfire(ctx); err != nil || ok {
		t.Fatal(ok, err)
	}
	if len(s.reads) != 0 {
		t.Fatal(s.reads)
	}
}

// deaf receives like scripted but never completes a send.
type deaf struct {
	*scripted
}

func (d deaf) ChooseBranch(ctx context.Context, bs []*core.Branch) (int, error) {
	for _, b := range bs {
		if b.Enabled && b.Send {
			return -1, nil
		}
	}
	return d.scripted.ChooseBranch(ctx, bs)
}

func TestCSPUnsentOutputsNotRecorded(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	a := compiled(t, cspActor(
		&core.Action{
			Tag:     "X",
			Inputs:  []*core.InputPattern{in("A", "a")},
			Outputs: []*core.OutputExpression{out("out", "a", "a + 1")},
		},
	))
	s := newScripted()
	s.inputs["A"] = []interface{}{1}

	var records []*core.FiringRecord
	f, err := core.NewFiring(a, core.CSP, &core.Options{
		Chooser: deaf{s},
		OnFire:  recorder(&records),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = f.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err = f.Fire(ctx); err != nil {
		t.Fatal(err)
	}
	if len(s.reads) != 1 {
		t.Fatal(s.reads)
	}
	if len(records) != 0 {
		t.Fatalf("recorded %#v", records[0])
	}
	if n := f.Count(); n != 0 {
		t.Fatal(n)
	}
	if ok, err := f.Postfire(ctx); err != nil || ok {
		t.Fatal(ok, err)
	}
}
