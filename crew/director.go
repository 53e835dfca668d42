package crew

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/rendezvous"
	"github.com/Comcast/calflow/util"

	"golang.org/x/sync/errgroup"
)

var (
	// DefaultControl is used by Run when given a nil Control.
	DefaultControl = &Control{
		Limit: 1000,
	}
)

// StopReason represents the possible reasons for a Run to
// terminate.
type StopReason int

const (
	Done          StopReason = iota // No actor could fire again.
	Limited                         // Too many firings.
	InternalError                   // What else to do?
)

func (r StopReason) String() string {
	switch r {
	case Done:
		return "Done"
	case Limited:
		return "Limited"
	case InternalError:
		return "InternalError"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Control influences how Run operates.
type Control struct {
	// Limit is the maximum number of actions that a Run can
	// execute, initializers included.  Zero means no limit.
	Limit int
}

func (c *Control) Copy() *Control {
	return &Control{
		Limit: c.Limit,
	}
}

// Report summarizes a Run.
type Report struct {
	Id             string     `json:"id"`
	StoppedBecause StopReason `json:"stoppedBecause"`
	Firings        int        `json:"firings"`
	Elapsed        string     `json:"elapsed"`
	Error          string     `json:"error,omitempty"`
}

// Run initializes every member, fires until nothing can fire or the
// Control's Limit is reached, and then wraps up.
//
// The sequential policies fire members round-robin on the calling
// goroutine.  CSP runs each member on its own goroutine.
//
// The returned error, if any, is also given in the Report.
func (c *Crew) Run(ctx context.Context, ctl *Control) (*Report, error) {
	if ctl == nil {
		ctl = DefaultControl
	}
	c.Lock()
	c.limit = ctl.Limit
	c.limited = false
	c.fired = 0
	c.Unlock()

	then := time.Now()
	log := c.logger()
	log.WithField("limit", ctl.Limit).Info("run starting")

	var err error
	if c.Policy == core.CSP {
		err = c.runConcurrent(ctx)
	} else {
		err = c.runSequential(ctx)
	}

	if werr := c.wrapup(ctx); err == nil {
		err = werr
	}

	c.RLock()
	r := &Report{
		Id:      c.Id,
		Firings: c.fired,
		Elapsed: time.Since(then).String(),
	}
	if c.limited {
		r.StoppedBecause = Limited
	}
	if err == nil {
		err = c.storeErr
	}
	c.RUnlock()

	if err != nil {
		r.StoppedBecause = InternalError
		r.Error = err.Error()
		log.WithError(err).Error("run failed")
	} else {
		log.WithField("firings", r.Firings).WithField("stoppedBecause", r.StoppedBecause.String()).Info("run complete")
	}
	return r, err
}

func (c *Crew) isLimited() bool {
	c.RLock()
	defer c.RUnlock()
	return c.limited
}

func (c *Crew) initialize(ctx context.Context) error {
	for _, in := range c.Instances {
		in.retired = false
		if err := in.Firing.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crew) wrapup(ctx context.Context) error {
	var first error
	for _, in := range c.Instances {
		if err := in.Firing.Wrapup(ctx); err != nil && first == nil {
			first = err
		}
		if c.Store == nil {
			continue
		}
		if bs := in.State(); bs != nil {
			if err := c.Store.WriteState(ctx, c.Id, in.Id, bs); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// iterate runs one prefire/fire/postfire.  Returns whether the
// member fired.
func (in *Instance) iterate(ctx context.Context) (bool, error) {
	f := in.Firing
	ok, err := f.Prefire(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err = f.Fire(ctx); err != nil {
		return false, err
	}
	if ok, err = f.Postfire(ctx); err != nil {
		return true, err
	}
	if !ok {
		in.retired = true
	}
	return true, nil
}

func (c *Crew) runSequential(ctx context.Context) error {
	if err := c.initialize(ctx); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress := false
		for _, in := range c.Instances {
			if in.retired {
				continue
			}
			if c.isLimited() {
				return nil
			}
			fired, err := in.iterate(ctx)
			if err != nil {
				return err
			}
			if fired {
				progress = true
			}
		}
		if !progress {
			return nil
		}
	}
}

func (c *Crew) runConcurrent(ctx context.Context) error {
	if err := c.initialize(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, t := range c.Network.Initial {
		t := t
		g.Go(func() error {
			return c.feed(ctx, t)
		})
	}
	for _, name := range c.Network.Unconnected() {
		name := name
		g.Go(func() error {
			return c.drain(ctx, name)
		})
	}
	for _, in := range c.Instances {
		in := in
		g.Go(func() error {
			defer c.hub.CloseActor(in.Id)
			for !in.retired {
				if ctx.Err() != nil || c.isLimited() {
					return nil
				}
				if _, err := in.iterate(ctx); err != nil {
					c.stopAll()
					return err
				}
			}
			util.Logf("member %s retired", in.Id)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && c.isLimited() {
		err = nil
	}
	return err
}

// feed sends initial tokens through the hub.
func (c *Crew) feed(ctx context.Context, t *Initial) error {
	name := sourceName(t.To)
	defer c.hub.CloseActor(name)
	for _, x := range t.Tokens {
		i, err := c.hub.ChooseBranch(ctx, name, []*core.Branch{{
			Send:    true,
			Enabled: true,
			Port:    "out",
			Token:   x,
		}})
		if err != nil || i < 0 {
			return err
		}
	}
	return nil
}

// drain collects tokens from an unconnected output.
func (c *Crew) drain(ctx context.Context, output string) error {
	name := sinkName(output)
	defer c.hub.CloseActor(name)
	for {
		b := &core.Branch{
			Enabled: true,
			Port:    "in",
		}
		i, err := c.hub.ChooseBranch(ctx, name, []*core.Branch{b})
		if err != nil || i < 0 {
			return err
		}
		c.Lock()
		c.outputs[output] = append(c.outputs[output], b.Token)
		c.Unlock()
	}
}

// Hub returns the rendezvous Hub for CSP (or nil).
func (c *Crew) Hub() *rendezvous.Hub {
	return c.hub
}
