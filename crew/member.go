package crew

import (
	"context"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/ports"
)

// Instance is a running Member: its Firing and, for the sequential
// policies, its ports.
type Instance struct {
	Id     string
	Member *Member
	Firing *core.Firing
	IO     *ports.IO

	// retired is set once Postfire returns false.
	retired bool
}

// State returns a copy of the current values of the actor's state
// variables.  Returns nil before the Firing is initialized.
func (in *Instance) State() core.Bindings {
	env := in.Firing.Env()
	if env == nil {
		return nil
	}
	bs := make(core.Bindings, len(in.Member.Actor.State))
	for _, d := range in.Member.Actor.State {
		if x, have := env.Lookup(d.Name); have {
			bs[d.Name] = x
		}
	}
	return bs
}

// restore makes an environment holding the stored state.
func (in *Instance) restore(ctx context.Context, c *Crew) (core.Environment, error) {
	if c.Store == nil {
		return nil, nil
	}
	bs, err := c.Store.GetState(ctx, c.Id, in.Id)
	if err != nil || bs == nil {
		return nil, err
	}
	params, err := in.Member.Actor.ResolveParams(in.Member.Params)
	if err != nil {
		return nil, err
	}
	env := core.NewEnvironment(params).NewFrame()
	for _, d := range in.Member.Actor.State {
		if x, have := bs[d.Name]; have {
			env.Bind(d.Name, x)
		}
	}
	return env, nil
}
