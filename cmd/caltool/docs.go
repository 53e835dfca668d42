package main

import (
	"github.com/Comcast/calflow/tools"

	"github.com/spf13/cobra"
)

func newDotCommand(opts *rootOptions) *cobra.Command {
	var (
		highlight string
		mermaid   bool
	)

	cmd := &cobra.Command{
		Use:   "dot FILE",
		Short: "Write a Graphviz (or Mermaid) graph of the network",
		Long: `dot writes a Graphviz dot graph of the network to stdout:

  caltool dot networks/pipeline.yaml | dot -Tpng > pipeline.png

With --mermaid, the graph is a Mermaid flowchart instead, with SDF
rates on the edges where they're known.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context0(cmd)
			n, err := load(ctx, args[0])
			if err != nil {
				return err
			}
			if mermaid {
				return tools.Mermaid(ctx, n, cmd.OutOrStdout(), nil)
			}
			return tools.Dot(n, cmd.OutOrStdout(), highlight)
		},
	}

	cmd.Flags().StringVar(&highlight, "highlight", "", "member to draw in red")
	cmd.Flags().BoolVar(&mermaid, "mermaid", false, "write Mermaid instead of dot")

	return cmd
}

func newHTMLCommand(opts *rootOptions) *cobra.Command {
	var css []string

	cmd := &cobra.Command{
		Use:   "html FILE",
		Short: "Write an HTML page documenting the network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tools.ReadAndRenderNetworkPage(args[0], css, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVar(&css, "css", nil, "stylesheet URLs")

	return cmd
}

func newJSONCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "json FILE",
		Short: "Write the network (with inlines expanded) as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := tools.ReadNetworkFile(args[0])
			if err != nil {
				return err
			}
			return opts.emit(cmd, n)
		},
	}
}
