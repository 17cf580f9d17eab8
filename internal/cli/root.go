// Package cli implements the accountability command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eigerco/accountability/pkg/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel  string
	LogFormat string
	Format    string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ClientOptions holds the flags of commands that talk to a node.
type ClientOptions struct {
	*RootOptions
	Node    string
	KeyFile string
	Timeout time.Duration
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "accountability",
		Short: "Accountability challenge escrow",
		Long: `Run an accountability node, or create challenges, stake into them and
distribute rewards through one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return initLogging(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides the node configuration")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "console", "log format (console|json)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	client := &ClientOptions{RootOptions: opts}
	clientFlags := func(c *cobra.Command) *cobra.Command {
		c.Flags().StringVar(&client.Node, "node", "127.0.0.1:9900", "node QUIC address")
		c.Flags().StringVar(&client.KeyFile, "key", "key.json", "signing key file")
		c.Flags().DurationVar(&client.Timeout, "timeout", 30*time.Second, "request timeout")
		return c
	}

	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewAddressCommand(opts))
	cmd.AddCommand(NewNodeCommand(opts))
	cmd.AddCommand(clientFlags(NewCreateCommand(client)))
	cmd.AddCommand(clientFlags(NewStakeCommand(client)))
	cmd.AddCommand(clientFlags(NewDistributeCommand(client)))
	cmd.AddCommand(clientFlags(NewBalanceCommand(client)))
	cmd.AddCommand(clientFlags(NewShowCommand(client)))
	cmd.AddCommand(clientFlags(NewAirdropCommand(client)))
	cmd.AddCommand(clientFlags(NewSupplyCommand(client)))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func initLogging(opts *RootOptions, cmd *cobra.Command) error {
	// Clients only log when asked to
	if opts.LogLevel == "" {
		return nil
	}
	level, err := log.ParseLogLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	typ, err := log.ParseLoggerType(opts.LogFormat)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: typ, Output: cmd.ErrOrStderr()})
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
