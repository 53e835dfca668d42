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
	"fmt"
)

// cspRound is one resolution round: the candidates still in play and
// the tokens read so far.
//
// A round never reads more tokens from a channel than every
// surviving candidate still needs from it, so no token is ever read
// that the eventual winner would not consume, except in the
// remainder phase, where each read is a single token on a channel
// that only one candidate wants.
type cspRound struct {
	f     *Firing
	acc   Accumulator
	cands []int

	// states holds the guard state of each candidate as of the
	// last filter.
	states map[int]Tristate

	// need[i][h] is the number of tokens action i reads from
	// input handle h, or -1 when it has no pattern there.
	need [][]int

	// reps[i][h] is the repeat count of that pattern.
	reps [][]int

	closed bool
}

func (f *Firing) newCSPRound(ctx context.Context) (*cspRound, error) {
	acts := f.Actor.Actions
	r := &cspRound{
		f:      f,
		acc:    f.inputs.NewAccumulator(),
		cands:  make([]int, len(acts)),
		states: make(map[int]Tristate, len(acts)),
		need:   make([][]int, len(acts)),
		reps:   make([][]int, len(acts)),
	}
	for i, act := range acts {
		r.cands[i] = i
		r.need[i] = make([]int, f.inputs.Len())
		r.reps[i] = make([]int, f.inputs.Len())
		for h := range r.need[i] {
			r.need[i][h] = -1
		}
		for _, p := range act.Inputs {
			h, _ := f.inputs.HandleOf(p.Port)
			n, err := repeatCount(ctx, f.Actor, i, act, p.Port, p.repeat, f.env)
			if err != nil {
				return nil, err
			}
			r.reps[i][h] = n
			if r.need[i][h], err = tokenCount(f.Actor, i, p.Port, n, len(p.Vars)); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// fireCSP runs one round: narrow the candidates, read, and commit at
// most one action.
func (f *Firing) fireCSP(ctx context.Context) error {
	if f.chooser == nil {
		return NoChooser
	}
	if f.env == nil {
		return fmt.Errorf("not initialized")
	}

	ctx, done := f.begin(ctx)
	defer done()

	r, err := f.newCSPRound(ctx)
	if err != nil {
		return err
	}
	if err = r.run(ctx); err != nil {
		return err
	}
	if r.closed && ctx.Err() == nil {
		f.mu.Lock()
		f.exhausted = true
		f.mu.Unlock()
	}
	return nil
}

func (r *cspRound) run(ctx context.Context) error {
	for {
		if err := r.filter(ctx); err != nil {
			return err
		}

		switch len(r.cands) {
		case 0:
			if r.nothingRead() {
				// Only a firing can change state, so no
				// later round can do better.
				r.closed = true
			}
			return nil
		case 1:
			ok, err := r.read(ctx, r.remaining())
			if err != nil || !ok {
				return err
			}
			_, err = r.commit(ctx, r.cands[0])
			return err
		}

		if i, ok := r.ready(); ok {
			_, err := r.commit(ctx, i)
			return err
		}

		if p := r.safe(); !p.Empty() {
			ok, err := r.read(ctx, p)
			if err != nil || !ok {
				return err
			}
			continue
		}

		p := r.remaining()
		if p.Empty() {
			// Every candidate has its tokens but some guard
			// is still undecided.
			for _, i := range r.cands {
				fired, err := r.commit(ctx, i)
				if err != nil || fired {
					return err
				}
			}
			return nil
		}
		if err := r.validRemainder(p); err != nil {
			return err
		}
		ok, err := r.read1(ctx, p)
		if err != nil || !ok {
			return err
		}
	}
}

// filter drops candidates whose guards are false given the tokens
// read so far.
func (r *cspRound) filter(ctx context.Context) error {
	f := r.f
	keep := make([]int, 0, len(r.cands))
	for _, i := range r.cands {
		act := f.Actor.Actions[i]
		env := f.env.NewFrame()
		pending := make(map[string]bool)
		for _, p := range act.Inputs {
			h, _ := f.inputs.HandleOf(p.Port)
			for _, v := range bindAvailable(env, p, r.reps[i][h], r.acc[h]) {
				pending[v] = true
			}
		}
		if err := f.bindDecls(ctx, act, env, pending); err != nil {
			return err
		}
		st, err := f.guardState(ctx, i, act, env, pending)
		if err != nil {
			return err
		}
		if st == False {
			continue
		}
		r.states[i] = st
		keep = append(keep, i)
	}
	r.cands = keep
	return nil
}

func (r *cspRound) nothingRead() bool {
	for _, ts := range r.acc {
		if 0 < len(ts) {
			return false
		}
	}
	return true
}

func (r *cspRound) complete(i int) bool {
	for h, n := range r.need[i] {
		if r.acc.Count(h) < n {
			return false
		}
	}
	return true
}

// ready finds the first candidate with all its tokens and guards
// that are definitely true.
func (r *cspRound) ready() (int, bool) {
	for _, i := range r.cands {
		if r.complete(i) && r.states[i] == True {
			return i, true
		}
	}
	return 0, false
}

// safe computes, for the channels of the first candidate, the
// tokens every candidate still needs.
func (r *cspRound) safe() Profile {
	p := r.f.inputs.NewProfile()
	first := r.cands[0]
	for h, n := range r.need[first] {
		if n < 0 {
			continue
		}
		m := n - r.acc.Count(h)
		for _, i := range r.cands[1:] {
			k := r.need[i][h]
			if k < 0 {
				m = 0
				break
			}
			if left := k - r.acc.Count(h); left < m {
				m = left
			}
		}
		if 0 < m {
			p[h] = m
		}
	}
	return p
}

// remaining is the maximum unread need per channel over candidates.
func (r *cspRound) remaining() Profile {
	p := r.f.inputs.NewProfile()
	for _, i := range r.cands {
		for h, n := range r.need[i] {
			if left := n - r.acc.Count(h); p[h] < left {
				p[h] = left
			}
		}
	}
	return p
}

// validRemainder checks that one undetermined read cannot steal a
// token another candidate needs.
func (r *cspRound) validRemainder(p Profile) error {
	f := r.f
	users := make([]int, len(p))
	for _, i := range r.cands {
		channels := 0
		for h, n := range r.need[i] {
			if r.acc.Count(h) < n {
				channels++
				users[h]++
			}
		}
		if 1 < channels {
			return &IllegalActorConfiguration{
				Actor:  f.name,
				Reason: f.Actor.Actions[i].Name(i) + " needs tokens from more than one channel",
			}
		}
	}
	for h, n := range p {
		if 1 < n {
			return &IllegalActorConfiguration{
				Actor:  f.name,
				Reason: fmt.Sprintf("channel %s needs %d tokens", f.inputs.ID(h), n),
			}
		}
		if 1 < users[h] {
			return &IllegalActorConfiguration{
				Actor:  f.name,
				Reason: fmt.Sprintf("channel %s is wanted by %d actions", f.inputs.ID(h), users[h]),
			}
		}
	}
	return nil
}

// receive offers a conditional receive on every channel that p
// says is needed and appends the token that arrives.
func (r *cspRound) receive(ctx context.Context, p Profile) (int, error) {
	f := r.f
	branches := make([]*Branch, len(p))
	for h := range branches {
		id := f.inputs.ID(h)
		branches[h] = &Branch{
			Enabled: 0 < p[h],
			Port:    id.Port,
			Channel: id.Channel,
		}
	}
	i, err := f.chooser.ChooseBranch(ctx, branches)
	if err != nil {
		return -1, err
	}
	if i < 0 {
		r.closed = true
		return -1, nil
	}
	if len(branches) <= i || !branches[i].Enabled {
		return -1, fmt.Errorf("chooser returned bad branch %d", i)
	}
	r.acc.Append(i, branches[i].Token)
	return i, nil
}

// read reads the whole profile.  Returns false if the channels closed
// or the fire was stopped.
func (r *cspRound) read(ctx context.Context, p Profile) (bool, error) {
	p = append(Profile(nil), p...)
	for k := p.Total(); 0 < k; k-- {
		h, err := r.receive(ctx, p)
		if err != nil || h < 0 {
			return false, err
		}
		p[h]--
	}
	return true, nil
}

// read1 reads exactly one token from one of the channels in the
// profile.
func (r *cspRound) read1(ctx context.Context, p Profile) (bool, error) {
	h, err := r.receive(ctx, p)
	if err != nil || h < 0 {
		return false, err
	}
	return true, nil
}

// commit binds the accumulated tokens to the action, evaluates its
// guards, and, when they hold, executes it and writes its outputs.
//
// A firing whose outputs were not all sent is not recorded, but
// commit still returns true.
func (r *cspRound) commit(ctx context.Context, i int) (bool, error) {
	f := r.f
	act := f.Actor.Actions[i]
	ai, err := f.actionSetup(ctx, i, act, r.acc)
	if err != nil {
		return false, err
	}
	defer ai.clear()

	ok, err := ai.evaluatePrecondition(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := ai.step(ctx); err != nil {
		return false, err
	}
	outs, err := ai.computeOutputs(ctx)
	if err != nil {
		return false, err
	}
	sent, err := r.write(ctx, outs)
	if err != nil || !sent {
		return true, err
	}
	f.record(ai, r.acc.Counts(f.inputs), outs, false)
	return true, nil
}

// write offers every pending output as a conditional send until all
// are sent.
func (r *cspRound) write(ctx context.Context, outs Accumulator) (bool, error) {
	f := r.f
	sent := make([]int, len(outs))
	for {
		branches := make([]*Branch, len(outs))
		pending := false
		for h := range branches {
			id := f.outputs.ID(h)
			b := &Branch{
				Send:    true,
				Enabled: sent[h] < len(outs[h]),
				Port:    id.Port,
				Channel: id.Channel,
			}
			if b.Enabled {
				b.Token = outs[h][sent[h]]
				pending = true
			}
			branches[h] = b
		}
		if !pending {
			return true, nil
		}
		i, err := f.chooser.ChooseBranch(ctx, branches)
		if err != nil {
			return false, err
		}
		if i < 0 {
			r.closed = true
			return false, nil
		}
		if len(branches) <= i || !branches[i].Enabled {
			return false, fmt.Errorf("chooser returned bad branch %d", i)
		}
		sent[i]++
	}
}
