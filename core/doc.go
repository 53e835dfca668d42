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

// Package core decides which action of a guarded dataflow actor
// fires next.
//
// An Actor declares ports, state variables, and prioritized
// Actions.  Each Action has input patterns that bind tokens to
// variables, guards, local declarations, a body, and output
// expressions.  All expressions are source code for an Interpreter
// (see DefaultInterpreters), which reports the free variables of
// each expression when the Actor is Compiled.
//
// A Firing runs an Actor under a Policy (a model of computation):
//
//   - Dataflow picks the first action whose tokens are available and
//     whose guards hold.
//
//   - SDF requires one RateSignature shared by all actions, which it
//     publishes on the ports before execution.
//
//   - DDF chooses the next action between firings from guards that
//     don't read input tokens and publishes that action's rates.
//
//   - CSP reads tokens through a blocking BranchChooser.  It narrows
//     the candidate actions as tokens arrive and never reads a token
//     that the action that finally fires would not consume.
//
// A host drives a Firing through Initialize, then
// Prefire/Fire/Postfire iterations, then Wrapup.  Only one action
// executes per Fire.
//
// Whether an expression can be evaluated before any tokens are read
// is decided by IsStaticallyComputable, which only looks at free
// variables.
package core
