package core

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
)

// RateSignature gives the number of tokens an action consumes and
// produces per port.
//
// Every declared port has an entry, so two signatures are equal iff
// their maps are.
type RateSignature struct {
	Inputs  map[string]int `json:"inputs"`
	Outputs map[string]int `json:"outputs"`
}

// ZeroRateSignature returns a signature with a zero entry for each
// of the actor's ports.
func ZeroRateSignature(a *Actor) *RateSignature {
	r := &RateSignature{
		Inputs:  make(map[string]int, len(a.Inputs)),
		Outputs: make(map[string]int, len(a.Outputs)),
	}
	for _, p := range a.Inputs {
		r.Inputs[p.Name] = 0
	}
	for _, p := range a.Outputs {
		r.Outputs[p.Name] = 0
	}
	return r
}

func (r *RateSignature) Equal(s *RateSignature) bool {
	if r == nil || s == nil {
		return r == s
	}
	return sameCounts(r.Inputs, s.Inputs) && sameCounts(r.Outputs, s.Outputs)
}

func sameCounts(m, n map[string]int) bool {
	if len(m) != len(n) {
		return false
	}
	for k, v := range m {
		if w, have := n[k]; !have || v != w {
			return false
		}
	}
	return true
}

func (r *RateSignature) Copy() *RateSignature {
	s := &RateSignature{
		Inputs:  make(map[string]int, len(r.Inputs)),
		Outputs: make(map[string]int, len(r.Outputs)),
	}
	for k, v := range r.Inputs {
		s.Inputs[k] = v
	}
	for k, v := range r.Outputs {
		s.Outputs[k] = v
	}
	return s
}

// String renders the signature with sorted keys.
func (r *RateSignature) String() string {
	return "in:" + countsString(r.Inputs) + " out:" + countsString(r.Outputs)
}

func countsString(m map[string]int) string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = k + ":" + strconv.Itoa(m[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ComputeActionRates computes the rate signature of the i-th action
// (i is only used in error reports).
//
// Repeat expressions are evaluated in env, which should be the
// actor's environment.  Any failure is a *RateComputationError.
func ComputeActionRates(ctx context.Context, a *Actor, i int, act *Action, env Environment) (*RateSignature, error) {
	r := ZeroRateSignature(a)

	for _, p := range act.Inputs {
		n, err := repeatCount(ctx, a, i, act, p.Port, p.repeat, env)
		if err != nil {
			return nil, err
		}
		if r.Inputs[p.Port], err = tokenCount(a, i, p.Port, n, len(p.Vars)); err != nil {
			return nil, err
		}
	}

	for _, o := range act.Outputs {
		n, err := repeatCount(ctx, a, i, act, o.Port, o.repeat, env)
		if err != nil {
			return nil, err
		}
		if r.Outputs[o.Port], err = tokenCount(a, i, o.Port, n, len(o.Values)); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// tokenCount is n repetitions of a pattern with k elements.
func tokenCount(a *Actor, i int, port string, n, k int) (int, error) {
	if k > 0 && n > math.MaxInt/k {
		return 0, &RateComputationError{
			Actor:  a.Name,
			Action: i,
			Port:   port,
			Reason: "repeat count " + strconv.Itoa(n) + " too large",
		}
	}
	return n * k, nil
}

func repeatCount(ctx context.Context, a *Actor, i int, act *Action, port string, e *Expr, env Environment) (int, error) {
	if e == nil {
		return 1, nil
	}
	if !IsStaticallyComputable(e, act, a) {
		return 0, &RateComputationError{
			Actor:  a.Name,
			Action: i,
			Port:   port,
			Reason: "repeat expression " + e.Source + " is not statically computable",
		}
	}
	x, err := eval(ctx, a.interp, env, e)
	if err != nil {
		return 0, &RateComputationError{
			Actor:  a.Name,
			Action: i,
			Port:   port,
			Reason: "repeat expression " + e.Source + " failed",
			Err:    err,
		}
	}
	n, err := IntValue(x)
	if err != nil {
		return 0, &RateComputationError{
			Actor:  a.Name,
			Action: i,
			Port:   port,
			Reason: "bad repeat count",
			Err:    err,
		}
	}
	if n < 0 {
		return 0, &RateComputationError{
			Actor:  a.Name,
			Action: i,
			Port:   port,
			Reason: "negative repeat count " + strconv.Itoa(n),
		}
	}
	return n, nil
}
