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

// Package rendezvous implements the blocking conditional-choice
// primitive used by CSP firings.
//
// Each channel links one sending Endpoint to one receiving Endpoint.
// A call to ChooseBranch offers every enabled branch at once.  The
// first offer to meet an opposite offer on the same link completes,
// and all other offers in both calls are withdrawn under the same
// lock, so a token is never seen by two branches.
package rendezvous

import (
	"context"
	"fmt"
	"sync"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/util"
)

// Endpoint is one channel of one actor's port.
type Endpoint struct {
	Actor   string
	Port    string
	Channel int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s.%s[%d]", e.Actor, e.Port, e.Channel)
}

// Hub holds the links and the pending offers.
type Hub struct {
	sync.Mutex

	links   map[Endpoint]Endpoint
	senders map[Endpoint]bool
	closed  map[Endpoint]bool
	pending map[Endpoint][]*offer
	waiting map[*offerSet]bool
	stopped bool

	transfers int
}

type offerSet struct {
	actor  string
	offers []*offer
	done   bool
	chosen int
	token  core.Token
	wake   chan struct{}
}

type offer struct {
	set   *offerSet
	index int
	send  bool
	at    Endpoint
	token core.Token
}

func NewHub() *Hub {
	return &Hub{
		links:   make(map[Endpoint]Endpoint),
		senders: make(map[Endpoint]bool),
		closed:  make(map[Endpoint]bool),
		pending: make(map[Endpoint][]*offer),
		waiting: make(map[*offerSet]bool),
	}
}

// Connect links a sending Endpoint to a receiving one.  Each
// Endpoint can be linked once.
func (h *Hub) Connect(from, to Endpoint) error {
	h.Lock()
	defer h.Unlock()
	if _, have := h.links[from]; have {
		return fmt.Errorf("%s is already connected", from)
	}
	if _, have := h.links[to]; have {
		return fmt.Errorf("%s is already connected", to)
	}
	h.links[from] = to
	h.links[to] = from
	h.senders[from] = true
	return nil
}

// Transfers returns the number of completed rendezvous.
func (h *Hub) Transfers() int {
	h.Lock()
	defer h.Unlock()
	return h.transfers
}

// live reports whether an offer at the Endpoint could ever complete.
func (h *Hub) live(at Endpoint, send bool) (Endpoint, bool) {
	if h.stopped || h.closed[at] {
		return Endpoint{}, false
	}
	peer, linked := h.links[at]
	if !linked || h.senders[at] != send || h.closed[peer] {
		return Endpoint{}, false
	}
	return peer, true
}

// ChooseBranch offers the actor's enabled branches and waits for one
// to complete.  Returns -1 when none can ever complete or ctx is
// done.
func (h *Hub) ChooseBranch(ctx context.Context, actor string, branches []*core.Branch) (int, error) {
	h.Lock()

	set := &offerSet{
		actor:  actor,
		chosen: -1,
		wake:   make(chan struct{}),
	}

	for i, b := range branches {
		if b == nil || !b.Enabled {
			continue
		}
		at := Endpoint{actor, b.Port, b.Channel}
		peer, ok := h.live(at, b.Send)
		if !ok {
			continue
		}
		for _, o := range h.pending[peer] {
			if o.set.done || o.send == b.Send {
				continue
			}
			// Rendezvous.
			if b.Send {
				h.complete(o.set, o.index, b.Token)
			} else {
				b.Token = o.token
				h.complete(o.set, o.index, nil)
			}
			h.transfers++
			util.Logf("rendezvous %s -> %s", at, peer)
			h.Unlock()
			return i, nil
		}
		set.offers = append(set.offers, &offer{
			set:   set,
			index: i,
			send:  b.Send,
			at:    at,
			token: b.Token,
		})
	}

	if len(set.offers) == 0 {
		h.Unlock()
		return -1, nil
	}

	for _, o := range set.offers {
		h.pending[o.at] = append(h.pending[o.at], o)
	}
	h.waiting[set] = true
	h.Unlock()

	select {
	case <-set.wake:
	case <-ctx.Done():
		h.Lock()
		if !set.done {
			h.complete(set, -1, nil)
		}
		h.Unlock()
	}

	if 0 <= set.chosen && !branches[set.chosen].Send {
		branches[set.chosen].Token = set.token
	}
	return set.chosen, nil
}

// complete finishes the set and withdraws its offers.  Call with
// the lock held.
func (h *Hub) complete(set *offerSet, chosen int, token core.Token) {
	set.done = true
	set.chosen = chosen
	set.token = token
	for _, o := range set.offers {
		rest := h.pending[o.at]
		for i, p := range rest {
			if p == o {
				rest = append(rest[:i], rest[i+1:]...)
				break
			}
		}
		if len(rest) == 0 {
			delete(h.pending, o.at)
		} else {
			h.pending[o.at] = rest
		}
	}
	delete(h.waiting, set)
	close(set.wake)
}

// release completes, with -1, every waiting set that can no longer
// complete.  Call with the lock held.
func (h *Hub) release() {
	for set := range h.waiting {
		dead := true
		for _, o := range set.offers {
			if _, ok := h.live(o.at, o.send); ok {
				dead = false
				break
			}
		}
		if dead {
			h.complete(set, -1, nil)
		}
	}
}

// Close marks the Endpoint as closed.  Offers that can then never
// complete are released.
func (h *Hub) Close(at Endpoint) {
	h.Lock()
	h.closed[at] = true
	h.release()
	h.Unlock()
}

// CloseActor closes every Endpoint of the actor.
func (h *Hub) CloseActor(actor string) {
	h.Lock()
	for at := range h.links {
		if at.Actor == actor {
			h.closed[at] = true
		}
	}
	h.release()
	h.Unlock()
	util.Logf("rendezvous closed actor %s", actor)
}

// Stop releases every waiting call and makes all future calls
// return -1.
func (h *Hub) Stop() {
	h.Lock()
	h.stopped = true
	h.release()
	h.Unlock()
}

// Chooser returns the core.BranchChooser for the actor.
func (h *Hub) Chooser(actor string) core.BranchChooser {
	return &Chooser{
		Hub:   h,
		Actor: actor,
	}
}

// Chooser binds a Hub to an actor.
type Chooser struct {
	Hub   *Hub
	Actor string
}

func (c *Chooser) ChooseBranch(ctx context.Context, branches []*core.Branch) (int, error) {
	return c.Hub.ChooseBranch(ctx, c.Actor, branches)
}
