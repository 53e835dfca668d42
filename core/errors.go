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

// Most of these errors are user errors: they report a structurally
// invalid actor or a host that drove the lifecycle incorrectly.

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// NoSelection occurs when Fire is called for a sequential
	// policy but the preceding Prefire did not select an action.
	NoSelection = errors.New("no action selected")

	// NoChooser occurs when a CSP firing has no BranchChooser.
	NoChooser = errors.New("no branch chooser")

	// UnsupportedPolicy occurs when a Policy value is outside the
	// known set.
	UnsupportedPolicy = errors.New("unsupported model of computation")
)

// ActorNotCompiled occurs when an Actor is used before it has been
// Compile()ed.
type ActorNotCompiled struct {
	Actor *Actor
}

func (e *ActorNotCompiled) Error() string {
	return `actor "` + e.Actor.Name + `" not compiled`
}

// BadActor occurs when Compile finds something structurally wrong
// with an actor, such as a pattern on an undeclared port.
type BadActor struct {
	Actor  *Actor
	Reason string
}

func (e *BadActor) Error() string {
	return `bad actor "` + e.Actor.Name + `": ` + e.Reason
}

// UnboundVariable occurs when an assignment targets a name that no
// frame binds.
type UnboundVariable struct {
	Name string
}

func (e *UnboundVariable) Error() string {
	return `unbound variable "` + e.Name + `"`
}

// RateComputationError reports a repeat expression that is not
// statically computable, fails to evaluate, or yields a bad count.
//
// These errors are never retried.
type RateComputationError struct {
	Actor  string
	Action int
	Port   string
	Reason string
	Err    error
}

func (e *RateComputationError) Error() string {
	s := fmt.Sprintf(`rate computation failed for actor "%s" action %d port "%s": %s`,
		e.Actor, e.Action, e.Port, e.Reason)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *RateComputationError) Unwrap() error {
	return e.Err
}

// GuardEvaluationError wraps an evaluation error raised by a guard.
type GuardEvaluationError struct {
	Actor  string
	Action int
	Guard  string
	Err    error
}

func (e *GuardEvaluationError) Error() string {
	return fmt.Sprintf(`guard "%s" of actor "%s" action %d: %v`, e.Guard, e.Actor, e.Action, e.Err)
}

func (e *GuardEvaluationError) Unwrap() error {
	return e.Err
}

// IllegalActorConfiguration occurs when the CSP remainder profile
// violates mutual exclusivity.  Fatal.
type IllegalActorConfiguration struct {
	Actor  string
	Reason string
}

func (e *IllegalActorConfiguration) Error() string {
	return `Illegal CSP actor encountered: "` + e.Actor + `": ` + e.Reason
}

// IllegalActorError occurs when an actor does not satisfy the
// legality conditions of a Policy.
type IllegalActorError struct {
	Actor  string
	Policy Policy
	Reason string
	Err    error
}

func (e *IllegalActorError) Error() string {
	s := `actor "` + e.Actor + `" is not a legal ` + e.Policy.String() + ` actor: ` + e.Reason
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *IllegalActorError) Unwrap() error {
	return e.Err
}

// FiringError wraps any error raised while resolving or executing a
// firing so the host sees which actor and lifecycle method failed.
type FiringError struct {
	Actor  string
	Policy Policy
	Op     string
	Err    error
}

func (e *FiringError) Error() string {
	return e.Policy.String() + " " + e.Op + ` of actor "` + e.Actor + `": ` + e.Err.Error()
}

func (e *FiringError) Unwrap() error {
	return e.Err
}

// RefireError occurs when Fire is called again before the next
// Prefire.  Only one action executes per selection.
type RefireError struct {
	Actor string
}

func (e *RefireError) Error() string {
	return `actor "` + e.Actor + `" fired again without a new prefire`
}

// NoTokenError is reported by a Port when Get finds no token.
type NoTokenError struct {
	Port    string
	Channel int
}

func (e *NoTokenError) Error() string {
	return `no token on port "` + e.Port + `" channel ` + strconv.Itoa(e.Channel)
}

// NoRoomError is reported by a Port when Send finds no room.
type NoRoomError struct {
	Port    string
	Channel int
}

func (e *NoRoomError) Error() string {
	return `no room on port "` + e.Port + `" channel ` + strconv.Itoa(e.Channel)
}
