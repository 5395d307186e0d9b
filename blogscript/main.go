// Command blogscript validates, renders and inspects BlogScript documents
// from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "blogscript",
		Short:         "Work with BlogScript documents",
		Long:          "Validate BlogScript documents written as JSON or YAML, render them to MDX, score them and resolve their images.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", os.Getenv("LOG_LEVEL"), "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", os.Getenv("LOG_FORMAT"), "log format: text or json")

	root.AddCommand(
		newValidateCmd(),
		newRenderCmd(opts),
		newCheckCmd(opts),
		newImageCmd(opts),
		newPrefetchCmd(opts),
	)
	return root
}
