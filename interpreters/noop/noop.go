// Package noop provides an Interpreter for actors whose expressions
// are all constants.
//
// Every expression must be a JSON literal.  Statements are parsed
// the same way and then ignored, so an action body has no effect.
package noop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/util"
)

// Interpreter is a core.Interpreter that evaluates JSON literals.
type Interpreter struct {
	// Silent, if false, logs each ignored statement.
	Silent bool
}

func NewInterpreter() *Interpreter {
	return &Interpreter{
		Silent: true,
	}
}

type literal struct {
	x interface{}
}

func (i *Interpreter) Compile(ctx context.Context, src string) (interface{}, error) {
	var x interface{}
	if err := json.Unmarshal([]byte(src), &x); err != nil {
		return nil, fmt.Errorf("noop: %q is not a literal: %w", src, err)
	}
	return &literal{x}, nil
}

func (i *Interpreter) FreeVars(compiled interface{}) ([]string, error) {
	if _, is := compiled.(*literal); !is {
		return nil, fmt.Errorf("noop: can't use a %T", compiled)
	}
	return nil, nil
}

func (i *Interpreter) Eval(ctx context.Context, env core.Environment, compiled interface{}) (interface{}, error) {
	l, is := compiled.(*literal)
	if !is {
		return nil, fmt.Errorf("noop: can't use a %T", compiled)
	}
	return l.x, nil
}

func (i *Interpreter) Exec(ctx context.Context, env core.Environment, compiled interface{}) error {
	if _, is := compiled.(*literal); !is {
		return fmt.Errorf("noop: can't use a %T", compiled)
	}
	if !i.Silent {
		util.Log.Warn("noop interpreter ignored a statement")
	}
	return nil
}
