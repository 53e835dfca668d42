package goja

import (
	"sort"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
)

// scanner finds the free names of a parsed program.
//
// Declarations are hoisted to the enclosing function, including let
// and const, so a name declared anywhere in a function body is bound
// in all of it.  The result can only err on the side of reporting a
// name as free.
type scanner struct {
	scopes  []map[string]bool
	free    map[string]bool
	mutated map[string]bool
}

// scan returns the sorted free names and the sorted subset of them
// that the program might change.  The helper object "_" is never
// free.
func scan(p *ast.Program) (free []string, mutated []string) {
	s := &scanner{
		free:    make(map[string]bool),
		mutated: make(map[string]bool),
	}
	s.push()
	s.hoist(p.Body)
	s.statements(p.Body)

	for name := range s.free {
		free = append(free, name)
		if s.mutated[name] {
			mutated = append(mutated, name)
		}
	}
	sort.Strings(free)
	sort.Strings(mutated)
	return free, mutated
}

func (s *scanner) push() {
	s.scopes = append(s.scopes, make(map[string]bool))
}

func (s *scanner) pop() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *scanner) declare(name string) {
	s.scopes[len(s.scopes)-1][name] = true
}

func (s *scanner) bound(name string) bool {
	for i := len(s.scopes) - 1; 0 <= i; i-- {
		if s.scopes[i][name] {
			return true
		}
	}
	return false
}

func (s *scanner) ref(name string) {
	if name == "_" || s.bound(name) {
		return
	}
	s.free[name] = true
}

// mutate notes that the named variable (or something inside it)
// might change.
func (s *scanner) mutate(x ast.Expression) {
	for {
		switch vv := x.(type) {
		case *ast.Identifier:
			if !s.bound(vv.Name.String()) {
				s.mutated[vv.Name.String()] = true
			}
			return
		case *ast.DotExpression:
			x = vv.Left
		case *ast.BracketExpression:
			x = vv.Left
		default:
			return
		}
	}
}

// hoist declares the names that statements declare, without
// descending into nested functions.
func (s *scanner) hoist(ss []ast.Statement) {
	for _, st := range ss {
		s.hoistStatement(st)
	}
}

func (s *scanner) hoistStatement(st ast.Statement) {
	switch vv := st.(type) {
	case *ast.VariableStatement:
		s.hoistBindings(vv.List)
	case *ast.LexicalDeclaration:
		s.hoistBindings(vv.List)
	case *ast.FunctionDeclaration:
		if vv.Function.Name != nil {
			s.declare(vv.Function.Name.Name.String())
		}
	case *ast.ClassDeclaration:
		if vv.Class.Name != nil {
			s.declare(vv.Class.Name.Name.String())
		}
	case *ast.BlockStatement:
		s.hoist(vv.List)
	case *ast.IfStatement:
		s.hoistStatement(vv.Consequent)
		if vv.Alternate != nil {
			s.hoistStatement(vv.Alternate)
		}
	case *ast.ForStatement:
		switch init := vv.Initializer.(type) {
		case *ast.ForLoopInitializerVarDeclList:
			s.hoistBindings(init.List)
		case *ast.ForLoopInitializerLexicalDecl:
			s.hoistBindings(init.LexicalDeclaration.List)
		}
		s.hoistStatement(vv.Body)
	case *ast.ForInStatement:
		s.hoistInto(vv.Into)
		s.hoistStatement(vv.Body)
	case *ast.ForOfStatement:
		s.hoistInto(vv.Into)
		s.hoistStatement(vv.Body)
	case *ast.WhileStatement:
		s.hoistStatement(vv.Body)
	case *ast.DoWhileStatement:
		s.hoistStatement(vv.Body)
	case *ast.LabelledStatement:
		s.hoistStatement(vv.Statement)
	case *ast.SwitchStatement:
		for _, c := range vv.Body {
			s.hoist(c.Consequent)
		}
	case *ast.TryStatement:
		s.hoistStatement(vv.Body)
		if vv.Catch != nil {
			s.hoistStatement(vv.Catch.Body)
		}
		if vv.Finally != nil {
			s.hoistStatement(vv.Finally)
		}
	}
}

func (s *scanner) hoistInto(into ast.ForInto) {
	switch vv := into.(type) {
	case *ast.ForIntoVar:
		s.hoistBindings([]*ast.Binding{vv.Binding})
	case *ast.ForDeclaration:
		s.bindTarget(vv.Target)
	}
}

func (s *scanner) hoistBindings(bs []*ast.Binding) {
	for _, b := range bs {
		s.bindTarget(b.Target)
	}
}

// bindTarget declares the names in a binding target.
func (s *scanner) bindTarget(x ast.Expression) {
	switch vv := x.(type) {
	case *ast.Identifier:
		s.declare(vv.Name.String())
	case *ast.ArrayPattern:
		for _, e := range vv.Elements {
			if e != nil {
				s.bindTarget(e)
			}
		}
		if vv.Rest != nil {
			s.bindTarget(vv.Rest)
		}
	case *ast.ObjectPattern:
		for _, p := range vv.Properties {
			switch pp := p.(type) {
			case *ast.PropertyShort:
				s.declare(pp.Name.Name.String())
			case *ast.PropertyKeyed:
				s.bindTarget(pp.Value)
			}
		}
		if vv.Rest != nil {
			s.bindTarget(vv.Rest)
		}
	case *ast.AssignExpression:
		// Target with a default value.
		s.bindTarget(vv.Left)
	}
}

// targetDefaults walks the default values and computed keys in a
// binding target.
func (s *scanner) targetDefaults(x ast.Expression) {
	switch vv := x.(type) {
	case *ast.ArrayPattern:
		for _, e := range vv.Elements {
			if e != nil {
				s.targetDefaults(e)
			}
		}
	case *ast.ObjectPattern:
		for _, p := range vv.Properties {
			switch pp := p.(type) {
			case *ast.PropertyShort:
				if pp.Initializer != nil {
					s.expression(pp.Initializer)
				}
			case *ast.PropertyKeyed:
				if pp.Computed {
					s.expression(pp.Key)
				}
				s.targetDefaults(pp.Value)
			}
		}
	case *ast.AssignExpression:
		s.expression(vv.Right)
		s.targetDefaults(vv.Left)
	}
}

func (s *scanner) bindings(bs []*ast.Binding) {
	for _, b := range bs {
		s.targetDefaults(b.Target)
		if b.Initializer != nil {
			s.expression(b.Initializer)
		}
	}
}

func (s *scanner) statements(ss []ast.Statement) {
	for _, st := range ss {
		s.statement(st)
	}
}

func (s *scanner) statement(st ast.Statement) {
	if st == nil {
		return
	}
	switch vv := st.(type) {
	case *ast.ExpressionStatement:
		s.expression(vv.Expression)
	case *ast.VariableStatement:
		s.bindings(vv.List)
	case *ast.LexicalDeclaration:
		s.bindings(vv.List)
	case *ast.BlockStatement:
		s.statements(vv.List)
	case *ast.IfStatement:
		s.expression(vv.Test)
		s.statement(vv.Consequent)
		s.statement(vv.Alternate)
	case *ast.ReturnStatement:
		s.expression(vv.Argument)
	case *ast.ThrowStatement:
		s.expression(vv.Argument)
	case *ast.WhileStatement:
		s.expression(vv.Test)
		s.statement(vv.Body)
	case *ast.DoWhileStatement:
		s.statement(vv.Body)
		s.expression(vv.Test)
	case *ast.ForStatement:
		switch init := vv.Initializer.(type) {
		case *ast.ForLoopInitializerExpression:
			s.expression(init.Expression)
		case *ast.ForLoopInitializerVarDeclList:
			s.bindings(init.List)
		case *ast.ForLoopInitializerLexicalDecl:
			s.bindings(init.LexicalDeclaration.List)
		}
		s.expression(vv.Test)
		s.expression(vv.Update)
		s.statement(vv.Body)
	case *ast.ForInStatement:
		s.into(vv.Into)
		s.expression(vv.Source)
		s.statement(vv.Body)
	case *ast.ForOfStatement:
		s.into(vv.Into)
		s.expression(vv.Source)
		s.statement(vv.Body)
	case *ast.LabelledStatement:
		s.statement(vv.Statement)
	case *ast.SwitchStatement:
		s.expression(vv.Discriminant)
		for _, c := range vv.Body {
			s.expression(c.Test)
			s.statements(c.Consequent)
		}
	case *ast.TryStatement:
		s.statement(vv.Body)
		if vv.Catch != nil {
			s.push()
			if vv.Catch.Parameter != nil {
				s.bindTarget(vv.Catch.Parameter)
			}
			s.statement(vv.Catch.Body)
			s.pop()
		}
		if vv.Finally != nil {
			s.statement(vv.Finally)
		}
	case *ast.WithStatement:
		s.expression(vv.Object)
		s.statement(vv.Body)
	case *ast.FunctionDeclaration:
		s.function(vv.Function.ParameterList, vv.Function.Body)
	case *ast.ClassDeclaration:
		s.class(vv.Class)
	}
}

func (s *scanner) into(into ast.ForInto) {
	switch vv := into.(type) {
	case *ast.ForIntoVar:
		s.bindings([]*ast.Binding{vv.Binding})
	case *ast.ForDeclaration:
		s.targetDefaults(vv.Target)
	case *ast.ForIntoExpression:
		s.assignTarget(vv.Expression)
	}
}

// assignTarget handles the left side of an assignment.
func (s *scanner) assignTarget(x ast.Expression) {
	switch vv := x.(type) {
	case *ast.Identifier:
		s.ref(vv.Name.String())
		s.mutate(vv)
	case *ast.DotExpression, *ast.BracketExpression:
		s.expression(x)
		s.mutate(x)
	case *ast.ArrayPattern:
		for _, e := range vv.Elements {
			if e != nil {
				s.assignTarget(e)
			}
		}
		if vv.Rest != nil {
			s.assignTarget(vv.Rest)
		}
	case *ast.ObjectPattern:
		for _, p := range vv.Properties {
			switch pp := p.(type) {
			case *ast.PropertyShort:
				s.ref(pp.Name.Name.String())
				s.mutate(&pp.Name)
				if pp.Initializer != nil {
					s.expression(pp.Initializer)
				}
			case *ast.PropertyKeyed:
				if pp.Computed {
					s.expression(pp.Key)
				}
				s.assignTarget(pp.Value)
			}
		}
		if vv.Rest != nil {
			s.assignTarget(vv.Rest)
		}
	case *ast.AssignExpression:
		s.assignTarget(vv.Left)
		s.expression(vv.Right)
	default:
		s.expression(x)
	}
}

func (s *scanner) function(params *ast.ParameterList, body ast.Node) {
	s.push()
	if params != nil {
		for _, b := range params.List {
			s.bindTarget(b.Target)
		}
		if params.Rest != nil {
			s.bindTarget(params.Rest)
		}
	}
	s.declare("arguments")
	switch vv := body.(type) {
	case *ast.BlockStatement:
		s.hoist(vv.List)
	}
	if params != nil {
		for _, b := range params.List {
			s.targetDefaults(b.Target)
			if b.Initializer != nil {
				s.expression(b.Initializer)
			}
		}
	}
	switch vv := body.(type) {
	case *ast.BlockStatement:
		s.statements(vv.List)
	case *ast.ExpressionBody:
		s.expression(vv.Expression)
	}
	s.pop()
}

func (s *scanner) class(c *ast.ClassLiteral) {
	s.expression(c.SuperClass)
	for _, e := range c.Body {
		switch vv := e.(type) {
		case *ast.MethodDefinition:
			if vv.Computed {
				s.expression(vv.Key)
			}
			s.function(vv.Body.ParameterList, vv.Body.Body)
		case *ast.FieldDefinition:
			if vv.Computed {
				s.expression(vv.Key)
			}
			s.expression(vv.Initializer)
		}
	}
}

func (s *scanner) expressions(xs []ast.Expression) {
	for _, x := range xs {
		s.expression(x)
	}
}

func (s *scanner) expression(x ast.Expression) {
	if x == nil {
		return
	}
	switch vv := x.(type) {
	case *ast.Identifier:
		s.ref(vv.Name.String())
	case *ast.BinaryExpression:
		s.expression(vv.Left)
		s.expression(vv.Right)
	case *ast.UnaryExpression:
		s.expression(vv.Operand)
		if vv.Operator == token.INCREMENT || vv.Operator == token.DECREMENT {
			s.mutate(vv.Operand)
		}
	case *ast.AssignExpression:
		s.assignTarget(vv.Left)
		s.expression(vv.Right)
	case *ast.ConditionalExpression:
		s.expression(vv.Test)
		s.expression(vv.Consequent)
		s.expression(vv.Alternate)
	case *ast.CallExpression:
		s.expression(vv.Callee)
		s.expressions(vv.ArgumentList)
		// A method call might change its receiver.
		if dot, is := vv.Callee.(*ast.DotExpression); is {
			s.mutate(dot.Left)
		}
	case *ast.NewExpression:
		s.expression(vv.Callee)
		s.expressions(vv.ArgumentList)
	case *ast.DotExpression:
		// The property name is not a reference.
		s.expression(vv.Left)
	case *ast.PrivateDotExpression:
		s.expression(vv.Left)
	case *ast.BracketExpression:
		s.expression(vv.Left)
		s.expression(vv.Member)
	case *ast.OptionalChain:
		s.expression(vv.Expression)
	case *ast.Optional:
		s.expression(vv.Expression)
	case *ast.SequenceExpression:
		s.expressions(vv.Sequence)
	case *ast.ArrayLiteral:
		s.expressions(vv.Value)
	case *ast.ObjectLiteral:
		for _, p := range vv.Value {
			switch pp := p.(type) {
			case *ast.PropertyShort:
				s.ref(pp.Name.Name.String())
			case *ast.PropertyKeyed:
				if pp.Computed {
					s.expression(pp.Key)
				}
				s.expression(pp.Value)
			case *ast.SpreadElement:
				s.expression(pp.Expression)
			}
		}
	case *ast.SpreadElement:
		s.expression(vv.Expression)
	case *ast.TemplateLiteral:
		s.expression(vv.Tag)
		s.expressions(vv.Expressions)
	case *ast.ArrowFunctionLiteral:
		s.function(vv.ParameterList, vv.Body)
	case *ast.FunctionLiteral:
		s.push()
		if vv.Name != nil {
			s.declare(vv.Name.Name.String())
		}
		s.function(vv.ParameterList, vv.Body)
		s.pop()
	case *ast.ClassLiteral:
		s.class(vv)
	case *ast.YieldExpression:
		s.expression(vv.Argument)
	case *ast.AwaitExpression:
		s.expression(vv.Argument)
	}
}
