package core

import (
	"fmt"
)

// ChannelID identifies one channel of a port.
type ChannelID struct {
	Port    string
	Channel int
}

func (c ChannelID) String() string {
	return fmt.Sprintf("%s[%d]", c.Port, c.Channel)
}

// Channels assigns small integer handles to channels.
//
// Handles are dense and stable for the life of a Firing.  Patterns
// only use channel 0 of each port.
type Channels struct {
	ids     []ChannelID
	handles map[ChannelID]int
}

func NewChannels(ports []*PortDecl) *Channels {
	cs := &Channels{
		ids:     make([]ChannelID, 0, len(ports)),
		handles: make(map[ChannelID]int, len(ports)),
	}
	for _, p := range ports {
		cs.add(ChannelID{p.Name, 0})
	}
	return cs
}

func (cs *Channels) add(id ChannelID) int {
	if h, have := cs.handles[id]; have {
		return h
	}
	h := len(cs.ids)
	cs.ids = append(cs.ids, id)
	cs.handles[id] = h
	return h
}

func (cs *Channels) Handle(id ChannelID) (int, bool) {
	h, have := cs.handles[id]
	return h, have
}

// HandleOf returns the handle of channel 0 of the port.
func (cs *Channels) HandleOf(port string) (int, bool) {
	return cs.Handle(ChannelID{port, 0})
}

func (cs *Channels) ID(h int) ChannelID {
	return cs.ids[h]
}

func (cs *Channels) Len() int {
	return len(cs.ids)
}

// Profile is the number of tokens still needed per channel handle.
type Profile []int

func (cs *Channels) NewProfile() Profile {
	return make(Profile, len(cs.ids))
}

// Empty reports whether nothing is needed.
func (p Profile) Empty() bool {
	for _, n := range p {
		if 0 < n {
			return false
		}
	}
	return true
}

// Total is the number of tokens needed over all channels.
func (p Profile) Total() int {
	n := 0
	for _, k := range p {
		n += k
	}
	return n
}

// Accumulator holds the tokens read so far per channel handle.
type Accumulator [][]Token

func (cs *Channels) NewAccumulator() Accumulator {
	return make(Accumulator, len(cs.ids))
}

func (acc Accumulator) Count(h int) int {
	return len(acc[h])
}

func (acc Accumulator) Append(h int, t Token) {
	acc[h] = append(acc[h], t)
}

// Counts returns the number of tokens per port name.
func (acc Accumulator) Counts(cs *Channels) map[string]int {
	m := make(map[string]int, len(acc))
	for h, ts := range acc {
		m[cs.ID(h).Port] += len(ts)
	}
	return m
}
