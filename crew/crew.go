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

// Package crew runs a Network of actors under one policy.
package crew

import (
	"context"
	"sync"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/interpreters"
	"github.com/Comcast/calflow/ports"
	"github.com/Comcast/calflow/rendezvous"
	"github.com/Comcast/calflow/util"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store persists member state and firing records.
type Store interface {
	WriteState(ctx context.Context, crew, member string, bs core.Bindings) error
	GetState(ctx context.Context, crew, member string) (core.Bindings, error)
	AddRecord(ctx context.Context, crew string, r *core.FiringRecord) error
}

// Options configures a Crew.  All fields are optional.
type Options struct {
	// Id identifies the crew in the Store.  Defaults to the
	// Network's Name or, without one, a new UUID.
	Id string

	// Policy overrides the Network's.
	Policy *core.Policy

	Interpreters map[string]core.Interpreter

	Store Store

	// OnFire sees every record after it's stored.
	OnFire func(*core.FiringRecord)
}

// Crew is a running Network.
type Crew struct {
	sync.RWMutex

	Id      string
	Network *Network
	Policy  core.Policy
	Store   Store

	// Instances in Network order.
	Instances []*Instance

	hub     *rendezvous.Hub
	sinks   map[string]*ports.Queue
	outputs map[string][]core.Token
	records []*core.FiringRecord
	fired   int
	limit   int
	limited bool
	onFire  func(*core.FiringRecord)

	// storeErr is the first Store error seen while recording.
	storeErr error
}

// NewCrew compiles the Network and wires its members.
func NewCrew(ctx context.Context, n *Network, opts *Options) (*Crew, error) {
	if opts == nil {
		opts = &Options{}
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	is := opts.Interpreters
	if is == nil {
		is = interpreters.Standard()
	}
	if err := n.Compile(ctx, is); err != nil {
		return nil, err
	}

	p, err := core.ParsePolicy(n.Policy)
	if err != nil {
		return nil, err
	}
	if opts.Policy != nil {
		p = *opts.Policy
	}

	c := &Crew{
		Id:      opts.Id,
		Network: n,
		Policy:  p,
		Store:   opts.Store,
		outputs: make(map[string][]core.Token),
		onFire:  opts.OnFire,
	}
	if c.Id == "" {
		c.Id = n.Name
	}
	if c.Id == "" {
		c.Id = uuid.New().String()
	}

	if p == core.CSP {
		err = c.wireRendezvous()
	} else {
		err = c.wireQueues()
	}
	if err != nil {
		return nil, err
	}

	for _, in := range c.Instances {
		env, err := in.restore(ctx, c)
		if err != nil {
			return nil, err
		}
		fopts := &core.Options{
			Name:   in.Id,
			Params: in.Member.Params,
			Env:    env,
			OnFire: c.record,
		}
		if in.IO != nil {
			fopts.IO = in.IO
		}
		if c.hub != nil {
			fopts.Chooser = c.hub.Chooser(in.Id)
		}
		if in.Firing, err = core.NewFiring(in.Member.Actor, p, fopts); err != nil {
			return nil, err
		}
	}

	c.logger().WithField("members", len(c.Instances)).Info("crew ready")

	return c, nil
}

func (c *Crew) logger() *logrus.Entry {
	return util.Log.WithFields(logrus.Fields{
		"crew":   c.Id,
		"policy": c.Policy.String(),
	})
}

// wireQueues makes ports and queues for the sequential policies.
// Each unconnected output gets a sink queue.
func (c *Crew) wireQueues() error {
	n := c.Network
	byId := make(map[string]*Instance, len(n.Members))
	for _, m := range n.Members {
		in := &Instance{
			Id:     m.Id,
			Member: m,
			IO:     ports.NewIO(m.Actor),
		}
		if 0 < n.Capacity {
			for _, p := range in.IO.Inputs {
				p.Receiver(0).Capacity = n.Capacity
			}
		}
		byId[m.Id] = in
		c.Instances = append(c.Instances, in)
	}

	for _, conn := range n.Connections {
		from, fromPort, _ := n.output(conn.From)
		to, toPort, _ := n.input(conn.To)
		ports.Connect(byId[from.Id].IO.Outputs[fromPort], byId[to.Id].IO.Inputs[toPort])
	}

	c.sinks = make(map[string]*ports.Queue)
	for _, name := range n.Unconnected() {
		id, port, _ := ParseEndpoint(name)
		sink := ports.NewQueue(name, 0, 0)
		byId[id].IO.Outputs[port].Connect(0, sink)
		c.sinks[name] = sink
	}

	for _, t := range n.Initial {
		to, port, _ := n.input(t.To)
		q := byId[to.Id].IO.Inputs[port].Receiver(0)
		for _, x := range t.Tokens {
			if err := q.Put(x); err != nil {
				return err
			}
		}
	}
	return nil
}

// wireRendezvous links ports through a Hub.  Initial tokens come
// from a source per input, and unconnected outputs go to a sink.
func (c *Crew) wireRendezvous() error {
	n := c.Network
	c.hub = rendezvous.NewHub()
	for _, m := range n.Members {
		c.Instances = append(c.Instances, &Instance{
			Id:     m.Id,
			Member: m,
		})
	}
	for _, conn := range n.Connections {
		from, fromPort, _ := n.output(conn.From)
		to, toPort, _ := n.input(conn.To)
		err := c.hub.Connect(
			rendezvous.Endpoint{Actor: from.Id, Port: fromPort},
			rendezvous.Endpoint{Actor: to.Id, Port: toPort})
		if err != nil {
			return err
		}
	}
	for _, name := range n.Unconnected() {
		id, port, _ := ParseEndpoint(name)
		err := c.hub.Connect(
			rendezvous.Endpoint{Actor: id, Port: port},
			rendezvous.Endpoint{Actor: sinkName(name), Port: "in"})
		if err != nil {
			return err
		}
	}
	for _, t := range n.Initial {
		to, port, _ := n.input(t.To)
		err := c.hub.Connect(
			rendezvous.Endpoint{Actor: sourceName(t.To), Port: "out"},
			rendezvous.Endpoint{Actor: to.Id, Port: port})
		if err != nil {
			return err
		}
	}
	return nil
}

func sinkName(output string) string {
	return "sink:" + output
}

func sourceName(input string) string {
	return "source:" + input
}

// record is the OnFire hook for every Firing.
func (c *Crew) record(r *core.FiringRecord) {
	c.Lock()
	c.records = append(c.records, r)
	c.fired++
	stop := 0 < c.limit && c.limit <= c.fired && !c.limited
	if stop {
		c.limited = true
	}
	c.Unlock()

	if c.Store != nil {
		if err := c.Store.AddRecord(context.Background(), c.Id, r); err != nil {
			c.Lock()
			if c.storeErr == nil {
				c.storeErr = err
			}
			c.Unlock()
		}
	}
	if c.onFire != nil {
		c.onFire(r)
	}

	util.Logf("fired %s action %d (%s)", r.Actor, r.Action, r.Tag)

	if stop {
		c.stopAll()
	}
}

// Stop asks a running Crew to stop.  Run then returns after the
// current firings complete.
func (c *Crew) Stop() {
	c.logger().Info("stopping")
	c.stopAll()
}

func (c *Crew) stopAll() {
	for _, in := range c.Instances {
		in.Firing.Stop()
	}
	if c.hub != nil {
		c.hub.Stop()
	}
}

// Records returns the firing records so far.
func (c *Crew) Records() []*core.FiringRecord {
	c.RLock()
	defer c.RUnlock()
	return append([]*core.FiringRecord(nil), c.records...)
}

// Outputs returns the tokens that reached unconnected outputs, keyed
// by "member.port".
func (c *Crew) Outputs() map[string][]core.Token {
	c.RLock()
	defer c.RUnlock()
	acc := make(map[string][]core.Token, len(c.sinks)+len(c.outputs))
	for name, q := range c.sinks {
		acc[name] = q.Tokens()
	}
	for name, ts := range c.outputs {
		acc[name] = append([]core.Token(nil), ts...)
	}
	return acc
}

// Instance returns the Instance with the given id (or nil).
func (c *Crew) Instance(id string) *Instance {
	for _, in := range c.Instances {
		if in.Id == id {
			return in
		}
	}
	return nil
}
