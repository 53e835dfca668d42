// Package interpreters collects the standard expression
// interpreters.
package interpreters

import (
	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/interpreters/goja"
	"github.com/Comcast/calflow/interpreters/noop"
)

// Standard returns a fresh map of the standard interpreters.
func Standard() map[string]core.Interpreter {
	js := goja.NewInterpreter()
	return map[string]core.Interpreter{
		"goja":       js,
		"ecmascript": js,
		"noop":       noop.NewInterpreter(),
	}
}
