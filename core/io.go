package core

import (
	"context"
	"fmt"
)

// Token is a value carried on a channel.
type Token = interface{}

// Names of the integer parameters a Firing publishes on ports.
const (
	TokenConsumptionRate = "tokenConsumptionRate"
	TokenProductionRate  = "tokenProductionRate"
	TokenInitProduction  = "tokenInitProduction"
)

// Port is the I/O surface of one declared actor port.
//
// The sequential policies never block, so HasToken must answer
// without waiting.
type Port interface {
	HasToken(channel, n int) bool
	Get(channel int) (Token, error)
	Send(channel int, t Token) error

	// SetRate sets one of the integer rate parameters.
	SetRate(param string, n int)
}

// IO finds the Port for a declared port name.
type IO interface {
	Port(name string) (Port, bool)
}

// IOMap is a simple IO.
type IOMap map[string]Port

func (m IOMap) Port(name string) (Port, bool) {
	p, have := m[name]
	return p, have
}

// Branch describes one conditional communication.
//
// A disabled Branch keeps its slot so that indexes line up with
// channel handles.
type Branch struct {
	Send    bool
	Enabled bool
	Port    string
	Channel int

	// Token is the value to send, or, after a receive completes,
	// the value received.
	Token Token
}

func (b *Branch) String() string {
	dir := "recv"
	if b.Send {
		dir = "send"
	}
	return fmt.Sprintf("%s %s[%d] enabled=%v", dir, b.Port, b.Channel, b.Enabled)
}

// BranchChooser is the blocking conditional-choice primitive.
//
// ChooseBranch waits until exactly one enabled Branch completes and
// returns its index.  It returns -1 when no enabled Branch can ever
// complete or when ctx is done.  At most one Branch completes per
// call.
type BranchChooser interface {
	ChooseBranch(ctx context.Context, branches []*Branch) (int, error)
}
