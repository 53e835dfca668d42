package core

import (
	"sort"
)

// Bindings is a map from names to values.
type Bindings map[string]interface{}

func NewBindings() Bindings {
	return make(Bindings, 8)
}

// Copy makes a shallow copy of the Bindings.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs))
	for k, v := range bs {
		acc[k] = v
	}
	return acc
}

// Environment is what an Interpreter sees: a chain of frames.
//
// Bind always writes to the receiving frame.  Set writes to the
// nearest frame that already binds the name, which is how an action
// body updates actor state that lives in an outer frame.
type Environment interface {
	Lookup(name string) (interface{}, bool)
	Bind(name string, x interface{})
	Set(name string, x interface{}) error
	NewFrame() Environment
	Names() []string
}

// Frame is the standard Environment.
type Frame struct {
	parent *Frame
	Bs     Bindings
}

// NewEnvironment makes a root Frame with a copy of the given
// Bindings (which can be nil).
func NewEnvironment(bs Bindings) *Frame {
	if bs == nil {
		bs = NewBindings()
	} else {
		bs = bs.Copy()
	}
	return &Frame{
		Bs: bs,
	}
}

func (f *Frame) Lookup(name string) (interface{}, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if x, have := fr.Bs[name]; have {
			return x, true
		}
	}
	return nil, false
}

func (f *Frame) Bind(name string, x interface{}) {
	f.Bs[name] = x
}

func (f *Frame) Set(name string, x interface{}) error {
	for fr := f; fr != nil; fr = fr.parent {
		if _, have := fr.Bs[name]; have {
			fr.Bs[name] = x
			return nil
		}
	}
	return &UnboundVariable{name}
}

func (f *Frame) NewFrame() Environment {
	return &Frame{
		parent: f,
		Bs:     NewBindings(),
	}
}

// Names returns every visible name, sorted.
func (f *Frame) Names() []string {
	seen := make(map[string]bool)
	for fr := f; fr != nil; fr = fr.parent {
		for name := range fr.Bs {
			seen[name] = true
		}
	}
	acc := make([]string, 0, len(seen))
	for name := range seen {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Snapshot flattens the visible bindings into one map.  Inner frames
// shadow outer ones.
func (f *Frame) Snapshot() Bindings {
	acc := NewBindings()
	for _, name := range f.Names() {
		x, _ := f.Lookup(name)
		acc[name] = x
	}
	return acc
}
