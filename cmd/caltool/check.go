package main

import (
	"fmt"
	"sort"

	"github.com/Comcast/calflow/core"
	"github.com/Comcast/calflow/tools"

	"github.com/spf13/cobra"
)

func newCheckCommand(opts *rootOptions) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Report each member's legality under each model of computation",
		Long: `check analyzes every member of the network and reports the
policies under which it is legal.  The command fails if some member
is illegal under the network's own policy.

With --full, the complete analysis of each member is emitted as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context0(cmd)
			n, err := load(ctx, args[0])
			if err != nil {
				return err
			}
			xs, err := tools.AnalyzeNetwork(ctx, n)
			if err != nil {
				return err
			}
			if full {
				return opts.emit(cmd, xs)
			}

			p, err := core.ParsePolicy(n.Policy)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(xs))
			for id := range xs {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			report := make(map[string][]string, len(xs))
			var bad []string
			for _, id := range ids {
				x := xs[id]
				report[id] = x.Legal()
				if reason := x.Legality[p.String()]; reason != "" {
					bad = append(bad, fmt.Sprintf("%s: %s", id, reason))
				}
			}
			if err = opts.emit(cmd, report); err != nil {
				return err
			}
			if 0 < len(bad) {
				return fmt.Errorf("illegal under %s: %v", p, bad)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "emit the complete analysis")

	return cmd
}

func newRatesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rates FILE",
		Short: "Show the rate signature of every action",
		Long: `rates computes the rate signature of every action of every
member using the member's parameters.  An action whose rates depend on
state or input tokens is reported with the reason.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context0(cmd)
			n, err := load(ctx, args[0])
			if err != nil {
				return err
			}
			xs, err := tools.AnalyzeNetwork(ctx, n)
			if err != nil {
				return err
			}
			acc := make(map[string]map[string]string, len(xs))
			for id, x := range xs {
				m := make(map[string]string, len(x.Rates)+len(x.RateErrors))
				for name, r := range x.Rates {
					m[name] = r
				}
				for name, reason := range x.RateErrors {
					m[name] = "error: " + reason
				}
				acc[id] = m
			}
			return opts.emit(cmd, acc)
		},
	}
}
