package cli

import (
	"crypto/rand"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eigerco/accountability/internal/config"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
	"github.com/eigerco/accountability/internal/node"
	"github.com/eigerco/accountability/pkg/log"
)

// NewNodeCommand creates the node command.
func NewNodeCommand(opts *RootOptions) *cobra.Command {
	var configFile, keyFile string

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a node",
		Long: `Run a node serving challenge transactions over QUIC.

Without --config the defaults are used. Without --key the node identity is
a fresh key that only lives as long as the process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configFile != "" {
				var err error
				if cfg, err = config.Load(configFile); err != nil {
					return err
				}
			}
			if opts.LogLevel == "" {
				level, err := log.ParseLogLevel(cfg.LogLevel)
				if err != nil {
					return err
				}
				typ, err := log.ParseLoggerType(cfg.LogFormat)
				if err != nil {
					return err
				}
				log.Init(log.Options{LogLevel: level, Type: typ, Output: cmd.ErrOrStderr()})
			}

			var key ed25519.PrivateKey
			if keyFile != "" {
				var err error
				if key, _, err = readKeyFile(keyFile); err != nil {
					return err
				}
			} else {
				var err error
				if _, key, err = ed25519.GenerateKey(rand.Reader); err != nil {
					return err
				}
				log.Root.Warn().Msg("no --key given, using an ephemeral node identity")
			}

			n, err := node.New(cfg, key)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return n.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "node configuration file (YAML)")
	cmd.Flags().StringVar(&keyFile, "key", "", "node identity key file")
	return cmd
}
