/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// InterpreterNotFound occurs when you try to Compile an Actor
	// and the required interpreter isn't in the given map of
	// interpreters.
	InterpreterNotFound = errors.New("interpreter not found")

	// DefaultInterpreters will be used in Actor.Compile if given
	// nil interpreters.
	DefaultInterpreters = make(map[string]Interpreter)

	// DefaultInterpreter names the interpreter used by an Actor
	// that doesn't name one.
	DefaultInterpreter = "goja"
)

// Interpreter compiles and evaluates the expressions and statements
// found in an Actor.
type Interpreter interface {
	// Compile can make something that helps when evaluating the
	// code later.
	Compile(ctx context.Context, src string) (interface{}, error)

	// FreeVars reports the names a compiled expression references
	// but does not bind itself.
	//
	// The result is a conservative over-approximation: names that
	// are free in some branch count as free.
	FreeVars(compiled interface{}) ([]string, error)

	// Eval evaluates an expression in the given Environment.
	Eval(ctx context.Context, env Environment, compiled interface{}) (interface{}, error)

	// Exec executes a statement.  Assignments go through
	// Environment.Set.
	Exec(ctx context.Context, env Environment, compiled interface{}) error
}

// Expr is a compiled expression or statement.
type Expr struct {
	Source string

	compiled interface{}
	free     []string
}

// FreeVars returns the names computed by the annotation pass at
// compile time.
func (e *Expr) FreeVars() []string {
	if e == nil {
		return nil
	}
	return e.free
}

// References reports whether the expression has the given free name.
func (e *Expr) References(name string) bool {
	for _, v := range e.FreeVars() {
		if v == name {
			return true
		}
	}
	return false
}

func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.Source
}

func compileExpr(ctx context.Context, interp Interpreter, src string) (*Expr, error) {
	if src == "" {
		return nil, nil
	}
	compiled, err := interp.Compile(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	free, err := interp.FreeVars(compiled)
	if err != nil {
		return nil, fmt.Errorf("free variables of %q: %w", src, err)
	}
	return &Expr{
		Source:   src,
		compiled: compiled,
		free:     free,
	}, nil
}

func eval(ctx context.Context, interp Interpreter, env Environment, e *Expr) (interface{}, error) {
	return interp.Eval(ctx, env, e.compiled)
}

// Tristate is the result of evaluating guards when some of the
// variables they need are not yet bound.
type Tristate int

const (
	False Tristate = iota
	True
	Unknown
)

func (t Tristate) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("tristate(%d)", int(t))
}

// IsTrue interprets an evaluation result as a guard value.
func IsTrue(x interface{}) (bool, error) {
	switch vv := x.(type) {
	case bool:
		return vv, nil
	case nil:
		return false, errors.New("guard evaluated to null")
	}
	return false, fmt.Errorf("guard evaluated to %T, not a boolean", x)
}

// IntValue converts an evaluation result to a count.
//
// Floats are accepted only when integral and within the range of
// int.
func IntValue(x interface{}) (int, error) {
	switch vv := x.(type) {
	case int:
		return vv, nil
	case int32:
		return int(vv), nil
	case int64:
		if vv > math.MaxInt || vv < math.MinInt {
			return 0, fmt.Errorf("%d is out of range", vv)
		}
		return int(vv), nil
	case float64:
		if vv != math.Trunc(vv) || math.IsInf(vv, 0) || math.IsNaN(vv) {
			return 0, fmt.Errorf("%v is not an integer", vv)
		}
		// float64(math.MaxInt) rounds up to a value int can't hold.
		if vv >= -float64(math.MinInt) || vv < float64(math.MinInt) {
			return 0, fmt.Errorf("%v is out of range", vv)
		}
		return int(vv), nil
	}
	return 0, fmt.Errorf("%v (%T) is not an integer", x, x)
}

// ListValue converts an evaluation result to a list of tokens.
func ListValue(x interface{}) ([]Token, error) {
	switch vv := x.(type) {
	case []Token:
		return vv, nil
	case []int64:
		acc := make([]Token, len(vv))
		for i, y := range vv {
			acc[i] = y
		}
		return acc, nil
	case []float64:
		acc := make([]Token, len(vv))
		for i, y := range vv {
			acc[i] = y
		}
		return acc, nil
	case []string:
		acc := make([]Token, len(vv))
		for i, y := range vv {
			acc[i] = y
		}
		return acc, nil
	}
	return nil, fmt.Errorf("%v (%T) is not a list", x, x)
}
