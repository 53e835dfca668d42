package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/interpreters/goja"
	"github.com/Comcast/calflow/ports"
	. "github.com/Comcast/calflow/util/testutil"
)

var interpreters = map[string]core.Interpreter{
	"goja": goja.NewInterpreter(),
}

func testContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func in(port string, vars ...string) *core.InputPattern {
	return &core.InputPattern{
		Port: port,
		Vars: vars,
	}
}

func inRepeat(port, repeat string, vars ...string) *core.InputPattern {
	p := in(port, vars...)
	p.Repeat = repeat
	return p
}

func out(port string, values ...string) *core.OutputExpression {
	return &core.OutputExpression{
		Port:   port,
		Values: values,
	}
}

func portDecls(names ...string) []*core.PortDecl {
	acc := make([]*core.PortDecl, len(names))
	for i, name := range names {
		acc[i] = &core.PortDecl{Name: name}
	}
	return acc
}

func compiled(t *testing.T, a *core.Actor) *core.Actor {
	if err := a.Compile(context.Background(), interpreters, true); err != nil {
		t.Fatal(err)
	}
	return a
}

// rig is an actor with queues on its inputs and sinks on its
// outputs.
type rig struct {
	t     *testing.T
	io    *ports.IO
	sinks map[string]*ports.Port
	f     *core.Firing
}

func newRig(t *testing.T, a *core.Actor, p core.Policy, params core.Bindings) *rig {
	compiled(t, a)
	r := &rig{
		t:     t,
		io:    ports.NewIO(a),
		sinks: make(map[string]*ports.Port),
	}
	for name, p := range r.io.Outputs {
		sink := ports.NewPort(name)
		ports.Connect(p, sink)
		r.sinks[name] = sink
	}
	f, err := core.NewFiring(a, p, &core.Options{
		IO:     r.io,
		Params: params,
	})
	if err != nil {
		t.Fatal(err)
	}
	r.f = f
	return r
}

func (r *rig) feed(port string, xs ...interface{}) {
	q := r.io.Inputs[port].Receiver(0)
	for _, x := range xs {
		if err := q.Put(x); err != nil {
			r.t.Fatal(err)
		}
	}
}

func (r *rig) output(port string) []int {
	xs, err := Ints(r.sinks[port].Receiver(0).Tokens())
	if err != nil {
		r.t.Fatal(err)
	}
	return xs
}

func (r *rig) rate(port, param string) int {
	p, have := r.io.Port(port)
	if !have {
		r.t.Fatalf("no port %s", port)
	}
	n, set := p.(*ports.Port).Rate(param)
	if !set {
		r.t.Fatalf("%s not set on %s", param, port)
	}
	return n
}

// iterate runs prefire/fire/postfire once.  Returns the prefire
// result.
func (r *rig) iterate(ctx context.Context) bool {
	ok, err := r.f.Prefire(ctx)
	if err != nil {
		r.t.Fatal(err)
	}
	if !ok {
		return false
	}
	if err = r.f.Fire(ctx); err != nil {
		r.t.Fatal(err)
	}
	if _, err = r.f.Postfire(ctx); err != nil {
		r.t.Fatal(err)
	}
	return true
}

func sameInts(xs, ys []int) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if xs[i] != ys[i] {
			return false
		}
	}
	return true
}

// scripted is a BranchChooser that never blocks.  Receives take
// from per-port token lists, preferring ports in the given order.
type scripted struct {
	inputs map[string][]interface{}
	order  []string
	reads  []string
	sent   map[string][]interface{}
}

func newScripted(order ...string) *scripted {
	return &scripted{
		inputs: make(map[string][]interface{}),
		order:  order,
		sent:   make(map[string][]interface{}),
	}
}

func (s *scripted) rank(port string) int {
	for i, p := range s.order {
		if p == port {
			return i
		}
	}
	return len(s.order)
}

func (s *scripted) ChooseBranch(ctx context.Context, bs []*core.Branch) (int, error) {
	for i, b := range bs {
		if b.Enabled && b.Send {
			s.sent[b.Port] = append(s.sent[b.Port], b.Token)
			return i, nil
		}
	}
	chosen := -1
	for i, b := range bs {
		if !b.Enabled || b.Send || len(s.inputs[b.Port]) == 0 {
			continue
		}
		if chosen < 0 || s.rank(b.Port) < s.rank(bs[chosen].Port) {
			chosen = i
		}
	}
	if chosen < 0 {
		return -1, nil
	}
	b := bs[chosen]
	b.Token = s.inputs[b.Port][0]
	s.inputs[b.Port] = s.inputs[b.Port][1:]
	s.reads = append(s.reads, b.Port)
	return chosen, nil
}

func cspFiring(t *testing.T, a *core.Actor, s *scripted) *core.Firing {
	compiled(t, a)
	f, err := core.NewFiring(a, core.CSP, &core.Options{
		Chooser: s,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = f.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return f
}
