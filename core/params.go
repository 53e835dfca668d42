/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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
	"fmt"
	"sort"
)

// ParamSpec describes a parameter of an Actor.
//
// Parameters are bound in the root frame of a Firing's environment,
// so expressions that only reference parameters are statically
// computable.  A parameter that's given but not declared is still
// bound.
type ParamSpec struct {
	// Doc describes the parameter in English and Markdown.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// PrimitiveType is "int", "number", "string", "bool", or empty
	// for anything.
	PrimitiveType string `json:"primitiveType,omitempty" yaml:"primitiveType,omitempty"`

	// Default is used when no value is given.
	Default interface{} `json:"default,omitempty" yaml:",omitempty"`

	// Optional means that the parameter is not required even
	// without a Default.
	Optional bool `json:"optional,omitempty" yaml:",omitempty"`
}

// Valid checks the spec itself.
func (s *ParamSpec) Valid() error {
	switch s.PrimitiveType {
	case "", "int", "number", "string", "bool":
	default:
		return fmt.Errorf("unknown primitive type %q", s.PrimitiveType)
	}
	if s.Default != nil {
		if err := s.ValueCompliesWith(s.Default); err != nil {
			return fmt.Errorf("default: %w", err)
		}
	}
	return nil
}

// ValueCompliesWith checks the value against the PrimitiveType.
func (s *ParamSpec) ValueCompliesWith(x interface{}) error {
	ok := true
	switch s.PrimitiveType {
	case "int":
		_, err := IntValue(x)
		ok = err == nil
	case "number":
		switch x.(type) {
		case int, int32, int64, float32, float64:
		default:
			ok = false
		}
	case "string":
		_, ok = x.(string)
	case "bool":
		_, ok = x.(bool)
	}
	if !ok {
		return fmt.Errorf("%#v is not a %s", x, s.PrimitiveType)
	}
	return nil
}

// ParamError reports a missing or bad parameter value.
type ParamError struct {
	Actor  string
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return `actor "` + e.Actor + `" parameter "` + e.Param + `": ` + e.Reason
}

// ResolveParams checks the given values against the Actor's
// ParamSpecs and returns a copy with defaults added.
func (a *Actor) ResolveParams(given Bindings) (Bindings, error) {
	bs := NewBindings()
	for k, v := range given {
		bs[k] = v
	}

	names := make([]string, 0, len(a.Params))
	for name := range a.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := a.Params[name]
		x, have := bs[name]
		if !have {
			switch {
			case s.Default != nil:
				bs[name] = s.Default
			case !s.Optional:
				return nil, &ParamError{a.Name, name, "required"}
			}
			continue
		}
		if err := s.ValueCompliesWith(x); err != nil {
			return nil, &ParamError{a.Name, name, err.Error()}
		}
	}
	return bs, nil
}
