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
	"strings"
	"sync"
)

// Policy is a model of computation.
type Policy int

const (
	// Dataflow selects, at each prefire, the first action whose
	// rates are available and whose guards hold.
	Dataflow Policy = iota

	// SDF requires all actions to share one rate signature.
	SDF

	// DDF selects the next action between firings from guards
	// that don't depend on input tokens.
	DDF

	// CSP resolves choice among blocking rendezvous.
	CSP
)

func (p Policy) String() string {
	switch p {
	case Dataflow:
		return "Dataflow"
	case SDF:
		return "SDF"
	case DDF:
		return "DDF"
	case CSP:
		return "CSP"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Policies lists every Policy.
var Policies = []Policy{Dataflow, SDF, DDF, CSP}

// ParsePolicy parses a Policy name (case-insensitive).  The empty
// string means Dataflow.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return Dataflow, nil
	}
	for _, p := range Policies {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", UnsupportedPolicy, s)
}

// SelectionState is the state of the firing-rule selector.
type SelectionState int

const (
	Unresolved SelectionState = iota
	Resolved
	NoneFirable
)

func (s SelectionState) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case NoneFirable:
		return "none-firable"
	}
	return fmt.Sprintf("SelectionState(%d)", int(s))
}

// Selection is the outcome of firing-rule selection.
type Selection struct {
	State SelectionState

	// Action is the index of the selected action when State is
	// Resolved.
	Action int
}

// FiringRecord reports one executed action.
type FiringRecord struct {
	// Id is assigned by whoever persists the record.
	Id string `json:"id,omitempty"`

	Actor       string         `json:"actor"`
	Policy      string         `json:"moc"`
	Action      int            `json:"action"`
	Tag         string         `json:"tag,omitempty"`
	Initializer bool           `json:"init,omitempty"`
	Consumed    map[string]int `json:"consumed,omitempty"`
	Produced    map[string]int `json:"produced,omitempty"`
}

// Options configures a Firing.
type Options struct {
	// Name is the instance name used in errors and records.
	// Defaults to the Actor's Name.
	Name string

	// IO is required by the sequential policies when the actor
	// has ports.
	IO IO

	// Chooser is required by CSP.
	Chooser BranchChooser

	// Params are bound in the root frame below state.
	Params Bindings

	// Env, if given, holds state.  State variables it already
	// binds are not reinitialized.
	Env Environment

	// OnFire, if given, receives a record after each executed
	// action.
	OnFire func(*FiringRecord)
}

// Firing runs one Actor under one Policy.
//
// A host drives a Firing with Initialize, then repeated
// Prefire/Fire/Postfire, then Wrapup.  All methods except Stop,
// StopFire, and Terminate must be called from one goroutine.
type Firing struct {
	Actor  *Actor
	Policy Policy

	name    string
	interp  Interpreter
	io      IO
	chooser BranchChooser
	params  Bindings
	given   Environment
	env     Environment
	onFire  func(*FiringRecord)

	inputs   *Channels
	outputs  *Channels
	inPorts  []Port
	outPorts []Port

	// buffer holds tokens already taken from input ports but not
	// yet consumed by an action.
	buffer Accumulator

	sel     Selection
	current *actionInterpreter
	fired   bool
	count   int

	legal         *legality
	ddfSel        Selection
	ddfRates      *RateSignature
	published     *RateSignature
	publishedInit *RateSignature

	// initFired is the index of the initializer fired by the last
	// Initialize (or -1).  It's meaningful once initRan.
	initFired int
	initRan   bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	stopped   bool
	exhausted bool
}

type legality struct {
	err   error
	rates *RateSignature
}

// NewFiring makes a Firing for a compiled Actor.
func NewFiring(a *Actor, p Policy, opts *Options) (*Firing, error) {
	if !a.compiled {
		return nil, &ActorNotCompiled{a}
	}
	switch p {
	case Dataflow, SDF, DDF, CSP:
	default:
		return nil, UnsupportedPolicy
	}
	if opts == nil {
		opts = &Options{}
	}
	params, err := a.ResolveParams(opts.Params)
	if err != nil {
		return nil, err
	}

	f := &Firing{
		Actor:   a,
		Policy:  p,
		name:    opts.Name,
		interp:  a.interp,
		io:      opts.IO,
		chooser: opts.Chooser,
		params:  params,
		given:   opts.Env,
		onFire:  opts.OnFire,
		inputs:  NewChannels(a.Inputs),
		outputs: NewChannels(a.Outputs),
	}
	if f.name == "" {
		f.name = a.Name
	}
	f.buffer = f.inputs.NewAccumulator()

	if f.io != nil {
		if f.inPorts, err = f.findPorts(a.Inputs); err != nil {
			return nil, err
		}
		if f.outPorts, err = f.findPorts(a.Outputs); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func (f *Firing) findPorts(decls []*PortDecl) ([]Port, error) {
	acc := make([]Port, len(decls))
	for i, d := range decls {
		p, have := f.io.Port(d.Name)
		if !have {
			return nil, fmt.Errorf(`no port "%s" for actor "%s"`, d.Name, f.name)
		}
		acc[i] = p
	}
	return acc, nil
}

// Name returns the name of the model of computation.
func (f *Firing) Name() string {
	return f.Policy.String()
}

// ActorName returns the instance name.
func (f *Firing) ActorName() string {
	return f.name
}

// Env returns the actor environment, which is nil before
// Initialize.
func (f *Firing) Env() Environment {
	return f.env
}

// Selection returns the current selection.
func (f *Firing) Selection() Selection {
	if f.Policy == DDF && f.sel.State == Unresolved {
		return f.ddfSel
	}
	return f.sel
}

// Count returns the number of actions executed since Initialize
// (initializers included).
func (f *Firing) Count() int {
	return f.count
}

// PublishedRates returns the rates most recently published with
// SetupActor or DDF selection (or nil).
func (f *Firing) PublishedRates() *RateSignature {
	return f.published
}

// PublishedInitRates returns the initializer production rates
// published for SDF (or nil).
func (f *Firing) PublishedInitRates() *RateSignature {
	return f.publishedInit
}

// Legality reports why the actor is not legal under the Policy (or
// nil).  The result is cached until InvalidateLegality.
func (f *Firing) Legality(ctx context.Context) error {
	switch f.Policy {
	case SDF:
		return f.sdfLegality(ctx)
	case DDF:
		return f.ddfLegality()
	case Dataflow, CSP:
		return nil
	}
	return UnsupportedPolicy
}

// IsLegalActor is Legality(ctx) == nil.
func (f *Firing) IsLegalActor(ctx context.Context) bool {
	return f.Legality(ctx) == nil
}

// InvalidateLegality drops the cached legality result.
func (f *Firing) InvalidateLegality() {
	f.legal = nil
}

// SetupActor publishes rate parameters on the ports.  Calling it
// again publishes the same values.
func (f *Firing) SetupActor(ctx context.Context) error {
	switch f.Policy {
	case SDF:
		return f.sdfSetup(ctx)
	case DDF:
		if err := f.ddfLegality(); err != nil {
			return err
		}
		if err := f.ensureEnv(ctx); err != nil {
			return f.wrap("setup", err)
		}
		return f.wrap("setup", f.ddfSelect(ctx))
	case Dataflow, CSP:
		return nil
	}
	return UnsupportedPolicy
}

// Initialize resets state, checks legality, fires an initializer
// (sequential policies only), and publishes rates.
func (f *Firing) Initialize(ctx context.Context) error {
	f.mu.Lock()
	f.stopped = false
	f.exhausted = false
	f.mu.Unlock()

	f.clearCurrent()
	f.sel = Selection{}
	f.ddfSel = Selection{}
	f.fired = false
	f.count = 0
	f.buffer = f.inputs.NewAccumulator()

	if err := f.initEnv(ctx); err != nil {
		return f.wrap("initialize", err)
	}

	if err := f.Legality(ctx); err != nil {
		return err
	}

	f.initFired, f.initRan = -1, false
	if f.Policy != CSP {
		if err := f.fireInitializer(ctx); err != nil {
			return f.wrap("initialize", err)
		}
	}

	return f.SetupActor(ctx)
}

// Prefire resolves the firing rule.  It returns false when no action
// can fire now.
func (f *Firing) Prefire(ctx context.Context) (bool, error) {
	if f.isStopped() {
		return false, nil
	}
	f.fired = false
	f.clearCurrent()
	if f.env == nil {
		return false, f.wrap("prefire", errors.New("not initialized"))
	}
	if f.Policy == CSP {
		// Resolution happens inside Fire.
		return true, nil
	}

	sel, err := f.resolve(ctx)
	if err != nil {
		f.sel = Selection{}
		return false, f.wrap("prefire", err)
	}
	f.sel = sel
	return sel.State == Resolved, nil
}

func (f *Firing) resolve(ctx context.Context) (Selection, error) {
	switch f.Policy {
	case SDF:
		return f.sdfResolve(ctx)
	case DDF:
		return f.ddfResolve(ctx)
	case Dataflow:
		return f.dataflowResolve(ctx)
	case CSP:
		return Selection{State: Unresolved}, nil
	}
	return Selection{}, UnsupportedPolicy
}

// Fire executes the selected action.  For CSP, Fire runs one full
// resolution round and may block.
func (f *Firing) Fire(ctx context.Context) error {
	if f.Policy == CSP {
		return f.wrap("fire", f.fireCSP(ctx))
	}

	if f.fired {
		return &RefireError{f.name}
	}
	if f.sel.State != Resolved || f.current == nil {
		return f.wrap("fire", NoSelection)
	}
	f.fired = true

	ai := f.current
	if err := ai.step(ctx); err != nil {
		return f.wrap("fire", err)
	}
	outs, err := ai.computeOutputs(ctx)
	if err != nil {
		return f.wrap("fire", err)
	}

	consumed := make(map[string]int, len(ai.action.Inputs))
	for _, p := range ai.action.Inputs {
		h, _ := f.inputs.HandleOf(p.Port)
		n := ai.rates.Inputs[p.Port]
		f.consume(h, n)
		consumed[p.Port] = n
	}

	if err := f.send(outs); err != nil {
		return f.wrap("fire", err)
	}

	f.record(ai, consumed, outs, false)

	return nil
}

// Postfire finishes an iteration.  DDF selects the next action
// here.  Returns false when the actor should not be fired again.
func (f *Firing) Postfire(ctx context.Context) (bool, error) {
	f.clearCurrent()
	f.sel = Selection{}

	if f.Policy == DDF && f.fired {
		if err := f.ddfSelect(ctx); err != nil {
			return false, f.wrap("postfire", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.stopped && !f.exhausted, nil
}

// Wrapup drops the current selection.
//
// Tokens already taken from the input ports by lookahead stay with
// the Firing, so a later Prefire still sees them in order.  Only
// Initialize discards them.
func (f *Firing) Wrapup(ctx context.Context) error {
	f.clearCurrent()
	f.sel = Selection{}
	return nil
}

// Stop requests that the Firing stop.  An in-flight Fire is
// cancelled, and Prefire and Postfire will return false.
func (f *Firing) Stop() {
	f.mu.Lock()
	f.stopped = true
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()
}

// StopFire cancels an in-flight Fire only.
func (f *Firing) StopFire() {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()
}

// Terminate is Stop.
func (f *Firing) Terminate() {
	f.Stop()
}

func (f *Firing) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// begin makes the cancellable context for one Fire.
func (f *Firing) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	if f.stopped {
		cancel()
	}
	f.cancel = cancel
	f.mu.Unlock()
	return ctx, func() {
		f.mu.Lock()
		f.cancel = nil
		f.mu.Unlock()
		cancel()
	}
}

func (f *Firing) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FiringError
	if errors.As(err, &fe) {
		return err
	}
	return &FiringError{
		Actor:  f.name,
		Policy: f.Policy,
		Op:     op,
		Err:    err,
	}
}

func (f *Firing) clearCurrent() {
	if f.current != nil {
		f.current.clear()
		f.current = nil
	}
}

// initEnv builds the actor environment: params in the root frame
// and state in a frame above it.
func (f *Firing) initEnv(ctx context.Context) error {
	env := f.given
	if env == nil {
		env = NewEnvironment(f.params).NewFrame()
	}
	for _, d := range f.Actor.State {
		if f.given != nil {
			if _, have := env.Lookup(d.Name); have {
				continue
			}
		}
		var x interface{}
		if d.value != nil {
			var err error
			if x, err = eval(ctx, f.interp, env, d.value); err != nil {
				return fmt.Errorf("state %s: %w", d.Name, err)
			}
		}
		env.Bind(d.Name, x)
	}
	f.env = env
	return nil
}

func (f *Firing) ensureEnv(ctx context.Context) error {
	if f.env != nil {
		return nil
	}
	return f.initEnv(ctx)
}

// rateEnv is the environment for repeat expressions, which only
// see parameters when the actor hasn't been initialized yet.
func (f *Firing) rateEnv() Environment {
	if f.env != nil {
		return f.env
	}
	return NewEnvironment(f.params)
}

func (f *Firing) publishRates(r *RateSignature) {
	if f.io != nil {
		for i, d := range f.Actor.Inputs {
			f.inPorts[i].SetRate(TokenConsumptionRate, r.Inputs[d.Name])
		}
		for i, d := range f.Actor.Outputs {
			f.outPorts[i].SetRate(TokenProductionRate, r.Outputs[d.Name])
		}
	}
	f.published = r.Copy()
}

func (f *Firing) publishInitRates(r *RateSignature) {
	if f.io != nil {
		for i, d := range f.Actor.Outputs {
			f.outPorts[i].SetRate(TokenInitProduction, r.Outputs[d.Name])
		}
	}
	f.publishedInit = r.Copy()
}

// fireInitializer fires the first initializer whose guards hold.
func (f *Firing) fireInitializer(ctx context.Context) error {
	f.initRan = true
	for i, act := range f.Actor.InitActions {
		ai, err := f.actionSetup(ctx, i, act, nil)
		if err != nil {
			return err
		}
		ok, err := ai.evaluatePrecondition(ctx)
		if err != nil || !ok {
			ai.clear()
			if err != nil {
				return err
			}
			continue
		}
		f.initFired = i
		if err = ai.step(ctx); err == nil {
			var outs Accumulator
			if outs, err = ai.computeOutputs(ctx); err == nil {
				if err = f.send(outs); err == nil {
					f.record(ai, nil, outs, true)
				}
			}
		}
		ai.clear()
		return err
	}
	return nil
}

func (f *Firing) record(ai *actionInterpreter, consumed map[string]int, outs Accumulator, init bool) {
	f.count++
	if f.onFire == nil {
		return
	}
	f.onFire(&FiringRecord{
		Actor:       f.name,
		Policy:      f.Policy.String(),
		Action:      ai.index,
		Tag:         ai.action.Tag,
		Initializer: init,
		Consumed:    consumed,
		Produced:    outs.Counts(f.outputs),
	})
}
