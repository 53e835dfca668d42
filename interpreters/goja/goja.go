package goja

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/util"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"github.com/sirupsen/logrus"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Eval or Exec if the evaluation
	// is interrupted.
	Interrupted = errors.New(InterruptedMessage)
)

// init adds an Interpreter as one of the DefaultInterpreters.
func init() {
	core.DefaultInterpreters["goja"] = NewInterpreter()
}

// Interpreter implements core.Interpreter using Goja, which is a Go
// implementation of ECMAScript 5.1+.
//
// Each source is one expression or statement.  Every name visible in
// the Environment is a global during evaluation.
//
// See https://github.com/dop251/goja.
type Interpreter struct {
	// Testing is used to expose or hide some runtime
	// capabilities.
	Testing bool
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Program is what Compile returns.
type Program struct {
	Source string

	prog *goja.Program

	// free is the sorted set of free names.
	free []string

	// mutated holds the free names the code might change.
	mutated []string
}

// Compile parses and compiles the source.  The AST is also scanned
// for free variables.
func (i *Interpreter) Compile(ctx context.Context, src string) (interface{}, error) {
	parsed, err := goja.Parse("", src)
	if err != nil {
		return nil, err
	}
	free, mutated := scan(parsed)
	prog, err := goja.CompileAST(parsed, true)
	if err != nil {
		return nil, err
	}
	return &Program{
		Source:  src,
		prog:    prog,
		free:    free,
		mutated: mutated,
	}, nil
}

func program(compiled interface{}) (*Program, error) {
	p, is := compiled.(*Program)
	if !is {
		return nil, fmt.Errorf("Goja bad compilation: %T %#v", compiled, compiled)
	}
	return p, nil
}

// FreeVars implements the core.Interpreter method of the same name.
func (i *Interpreter) FreeVars(compiled interface{}) ([]string, error) {
	p, err := program(compiled)
	if err != nil {
		return nil, err
	}
	return p.free, nil
}

// Eval returns the exported completion value.
func (i *Interpreter) Eval(ctx context.Context, env core.Environment, compiled interface{}) (interface{}, error) {
	p, err := program(compiled)
	if err != nil {
		return nil, err
	}
	o, err := i.runtime(env, p)
	if err != nil {
		return nil, err
	}
	v, err := run(ctx, o, p)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.Export(), nil
}

// Exec runs the statement and then writes back each name the
// statement might have changed.
func (i *Interpreter) Exec(ctx context.Context, env core.Environment, compiled interface{}) error {
	p, err := program(compiled)
	if err != nil {
		return err
	}
	o, err := i.runtime(env, p)
	if err != nil {
		return err
	}
	if _, err = run(ctx, o, p); err != nil {
		return err
	}
	for _, name := range p.mutated {
		if _, have := env.Lookup(name); !have {
			continue
		}
		var x interface{}
		if v := o.Get(name); v != nil {
			x = v.Export()
		}
		if err := env.Set(name, x); err != nil {
			return err
		}
	}
	return nil
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

// runtime makes a runtime with the program's free names as globals.
//
// The following properties are available from the runtime at _:
//
//	gensym(): generate a random string.
//	esc(s): URL query-escape the given string.
//	cronNext(s): the next time for the cron expression.
//	log(x): log the given value.
//
// For testing only:
//
//	sleep(ms): sleep for the given number of milliseconds.
//
// The Testing flag must be set to see sleep().
func (i *Interpreter) runtime(env core.Environment, p *Program) (*goja.Runtime, error) {
	o := goja.New()

	for _, name := range p.free {
		x, have := env.Lookup(name)
		if !have {
			continue
		}
		if err := o.Set(name, x); err != nil {
			return nil, err
		}
	}

	helpers := map[string]interface{}{}

	helpers["gensym"] = func() interface{} {
		return util.Gensym(32)
	}

	helpers["cronNext"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		cronExpr, is := x.(string)
		if !is {
			protest(o, "not a string")
		}

		c, err := cronexpr.Parse(cronExpr)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	helpers["esc"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		s, is := x.(string)
		if !is {
			protest(o, "not a string")
		}
		return url.QueryEscape(s)
	}

	helpers["log"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		util.Log.WithFields(logrus.Fields{
			"source": p.Source,
		}).Info(x)
		return x
	}

	if i.Testing {
		helpers["sleep"] = func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
	}

	if err := o.Set("_", helpers); err != nil {
		return nil, err
	}

	return o, nil
}

func run(ctx context.Context, o *goja.Runtime, p *Program) (goja.Value, error) {
	// We want to make sure that the following goroutine is
	// terminated as soon as possible.
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		// If run calls cancel() after RunProgram returns,
		// then we'll never see this InterruptedMessage, which
		// is actually the behavior we want.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := o.RunProgram(p.prog)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}
	return v, nil
}
