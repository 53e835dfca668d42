package main

import (
	"os"
	"os/signal"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/crew"
	"github.com/Comcast/calflow/storage/bolt"
	"github.com/Comcast/calflow/util"

	"github.com/spf13/cobra"
)

type runOptions struct {
	*rootOptions
	Policy  string
	Limit   int
	DB      string
	Id      string
	Records bool
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a network until nothing can fire",
		Long: `run wires the network's members, feeds the initial tokens, and
fires actions until no member can fire or the limit is reached.
The report and the tokens left on unconnected outputs are emitted as
JSON.

With --db, member state is restored from and saved to a BoltDB file
and every firing record is stored there.

Example:
  caltool run networks/pipeline.yaml
  caltool run --moc CSP --limit 10 networks/race.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetwork(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "moc", "", "model of computation (overrides the network's)")
	cmd.Flags().IntVar(&opts.Limit, "limit", crew.DefaultControl.Limit, "maximum number of firings (0 for none)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "BoltDB file for state and records")
	cmd.Flags().StringVar(&opts.Id, "id", "", "crew id (defaults to the network name)")
	cmd.Flags().BoolVar(&opts.Records, "records", false, "include firing records in the output")

	return cmd
}

type runOutput struct {
	Report  *crew.Report             `json:"report"`
	Outputs map[string][]core.Token  `json:"outputs"`
	State   map[string]core.Bindings `json:"state,omitempty"`
	Records []*core.FiringRecord     `json:"records,omitempty"`
}

func runNetwork(cmd *cobra.Command, opts *runOptions, filename string) error {
	ctx := context0(cmd)

	n, err := load(ctx, filename)
	if err != nil {
		return err
	}

	copts := &crew.Options{
		Id: opts.Id,
	}
	if opts.Policy != "" {
		p, err := core.ParsePolicy(opts.Policy)
		if err != nil {
			return err
		}
		copts.Policy = &p
	}

	if opts.DB != "" {
		s, err := bolt.NewStorage(opts.DB)
		if err != nil {
			return err
		}
		if err = s.Open(); err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				util.Log.WithError(err).Error("closing storage")
			}
		}()
		copts.Store = s
	}

	c, err := crew.NewCrew(ctx, n, copts)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigs:
			util.Log.Warn("interrupted")
			c.Stop()
		case <-done:
		}
	}()

	r, err := c.Run(ctx, &crew.Control{Limit: opts.Limit})

	out := runOutput{
		Report:  r,
		Outputs: c.Outputs(),
		State:   make(map[string]core.Bindings, len(c.Instances)),
	}
	for _, in := range c.Instances {
		out.State[in.Id] = in.State()
	}
	if opts.Records {
		out.Records = c.Records()
	}
	if eerr := opts.emit(cmd, out); eerr != nil && err == nil {
		err = eerr
	}
	return err
}

func newRecordsCommand(opts *rootOptions) *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "records CREW",
		Short: "Show the firing records stored for a crew",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := bolt.NewStorage(db)
			if err != nil {
				return err
			}
			if err = s.Open(); err != nil {
				return err
			}
			defer s.Close()

			rs, err := s.Records(context0(cmd), args[0])
			if err != nil {
				return err
			}
			return opts.emit(cmd, rs)
		},
	}

	cmd.Flags().StringVar(&db, "db", "calflow.db", "BoltDB file")

	return cmd
}
