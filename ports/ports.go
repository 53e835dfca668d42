// Package ports provides FIFO receivers that implement core.Port for
// the sequential policies.
//
// An input Port owns one Queue per channel.  An output Port sends to
// every Queue connected to the channel.
package ports

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Comcast/calflow/core"
)

// DefaultCapacity is the capacity of Queues made by Port.Receiver.
// Zero means unbounded.
var DefaultCapacity = 0

// Queue is a FIFO of tokens.
type Queue struct {
	Port     string
	Channel  int
	Capacity int

	sync.Mutex
	tokens []core.Token
}

func NewQueue(port string, channel, capacity int) *Queue {
	return &Queue{
		Port:     port,
		Channel:  channel,
		Capacity: capacity,
		tokens:   make([]core.Token, 0, 8),
	}
}

func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()
	return len(q.tokens)
}

func (q *Queue) room(n int) bool {
	return q.Capacity <= 0 || len(q.tokens)+n <= q.Capacity
}

// Put appends the token or returns a *core.NoRoomError.
func (q *Queue) Put(t core.Token) error {
	q.Lock()
	defer q.Unlock()
	if !q.room(1) {
		return &core.NoRoomError{Port: q.Port, Channel: q.Channel}
	}
	q.tokens = append(q.tokens, t)
	return nil
}

// Get removes the first token or returns a *core.NoTokenError.
func (q *Queue) Get() (core.Token, error) {
	q.Lock()
	defer q.Unlock()
	if len(q.tokens) == 0 {
		return nil, &core.NoTokenError{Port: q.Port, Channel: q.Channel}
	}
	t := q.tokens[0]
	q.tokens[0] = nil
	q.tokens = q.tokens[1:]
	return t, nil
}

// Tokens returns a copy of the queued tokens.
func (q *Queue) Tokens() []core.Token {
	q.Lock()
	defer q.Unlock()
	return append([]core.Token(nil), q.tokens...)
}

// Port implements core.Port.
type Port struct {
	Name string

	sync.Mutex
	receivers map[int]*Queue
	remotes   map[int][]*Queue
	rates     map[string]int
}

func NewPort(name string) *Port {
	return &Port{
		Name:      name,
		receivers: make(map[int]*Queue),
		remotes:   make(map[int][]*Queue),
		rates:     make(map[string]int),
	}
}

// Receiver returns the Queue for the channel, making it if needed.
func (p *Port) Receiver(channel int) *Queue {
	p.Lock()
	defer p.Unlock()
	q, have := p.receivers[channel]
	if !have {
		q = NewQueue(p.Name, channel, DefaultCapacity)
		p.receivers[channel] = q
	}
	return q
}

// Connect adds a destination for sends on the channel.
func (p *Port) Connect(channel int, q *Queue) {
	p.Lock()
	p.remotes[channel] = append(p.remotes[channel], q)
	p.Unlock()
}

func (p *Port) HasToken(channel, n int) bool {
	return n <= p.Receiver(channel).Len()
}

func (p *Port) Get(channel int) (core.Token, error) {
	return p.Receiver(channel).Get()
}

// Send puts the token in every connected Queue.  Nothing is sent
// unless all of them have room.  A channel with no connections
// drops the token.
func (p *Port) Send(channel int, t core.Token) error {
	p.Lock()
	qs := p.remotes[channel]
	p.Unlock()

	for _, q := range qs {
		q.Lock()
	}
	defer func() {
		for _, q := range qs {
			q.Unlock()
		}
	}()
	for _, q := range qs {
		if !q.room(1) {
			return &core.NoRoomError{Port: p.Name, Channel: channel}
		}
	}
	for _, q := range qs {
		q.tokens = append(q.tokens, t)
	}
	return nil
}

func (p *Port) SetRate(param string, n int) {
	p.Lock()
	p.rates[param] = n
	p.Unlock()
}

// Rate returns the named rate parameter and whether it has been set.
func (p *Port) Rate(param string) (int, bool) {
	p.Lock()
	defer p.Unlock()
	n, have := p.rates[param]
	return n, have
}

// IO is the set of Ports for one actor.  It implements core.IO.
type IO struct {
	Inputs  map[string]*Port
	Outputs map[string]*Port
}

// NewIO makes a Port for each declared port of the actor.
func NewIO(a *core.Actor) *IO {
	io := &IO{
		Inputs:  make(map[string]*Port, len(a.Inputs)),
		Outputs: make(map[string]*Port, len(a.Outputs)),
	}
	for _, d := range a.Inputs {
		io.Inputs[d.Name] = NewPort(d.Name)
	}
	for _, d := range a.Outputs {
		io.Outputs[d.Name] = NewPort(d.Name)
	}
	return io
}

func (io *IO) Port(name string) (core.Port, bool) {
	if p, have := io.Inputs[name]; have {
		return p, true
	}
	if p, have := io.Outputs[name]; have {
		return p, true
	}
	return nil, false
}

// Input returns the named input or an error.
func (io *IO) Input(name string) (*Port, error) {
	p, have := io.Inputs[name]
	if !have {
		return nil, fmt.Errorf(`no input "%s"`, name)
	}
	return p, nil
}

// Output returns the named output or an error.
func (io *IO) Output(name string) (*Port, error) {
	p, have := io.Outputs[name]
	if !have {
		return nil, fmt.Errorf(`no output "%s"`, name)
	}
	return p, nil
}

// Pending returns the number of queued tokens per input, sorted by
// name.
func (io *IO) Pending() []string {
	names := make([]string, 0, len(io.Inputs))
	for name := range io.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	acc := make([]string, len(names))
	for i, name := range names {
		acc[i] = fmt.Sprintf("%s:%d", name, io.Inputs[name].Receiver(0).Len())
	}
	return acc
}

// Connect connects channel 0 of an output to channel 0 of an input.
func Connect(from *Port, to *Port) *Queue {
	q := to.Receiver(0)
	from.Connect(0, q)
	return q
}
