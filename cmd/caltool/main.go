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

// Command caltool checks, documents, and runs actor networks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Comcast/calflow/crew"
	"github.com/Comcast/calflow/interpreters"
	"github.com/Comcast/calflow/tools"
	"github.com/Comcast/calflow/util"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	Debug  bool
	Pretty bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "caltool",
		Short: "Check, document, and run actor networks",
		Long: `caltool works with networks of guarded dataflow actors given as
YAML files.  Each subcommand takes a network file.  '%inline("NAME")'
in a network file is replaced with the quoted content of NAME.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetLogging(opts.Debug)
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "debug logging")
	cmd.PersistentFlags().BoolVarP(&opts.Pretty, "pretty", "p", true, "indent JSON output")

	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newRatesCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newRecordsCommand(opts))
	cmd.AddCommand(newDotCommand(opts))
	cmd.AddCommand(newHTMLCommand(opts))
	cmd.AddCommand(newJSONCommand(opts))

	return cmd
}

// load reads, parses, and compiles a network file.
func load(ctx context.Context, filename string) (*crew.Network, error) {
	n, err := tools.ReadNetworkFile(filename)
	if err != nil {
		return nil, err
	}
	if err = n.Compile(ctx, interpreters.Standard()); err != nil {
		return nil, err
	}
	return n, nil
}

func (o *rootOptions) emit(cmd *cobra.Command, x interface{}) error {
	var (
		bs  []byte
		err error
	)
	if o.Pretty {
		bs, err = json.MarshalIndent(x, "", "  ")
	} else {
		bs, err = json.Marshal(x)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", bs)
	return err
}

func context0(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
