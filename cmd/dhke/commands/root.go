package commands

import (
	"os"

	"github.com/spf13/cobra"

	"dhke/internal/app"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg *app.Config
)

// Execute runs the root command.
func Execute() error { return newRoot().Execute() }

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "dhke",
		Short:         "Diffie-Hellman key exchange server and client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				c.Log.Level = logLevel
			}
			if logFormat != "" {
				c.Log.Format = logFormat
			}
			cfg = c
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: built-in defaults)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json")

	root.AddCommand(serverCmd(), clientCmd(), paramsCmd(), statusCmd(), genconfigCmd())
	return root
}

// wire validates cfg and builds the dependency graph, logging to stderr.
func wire() (*app.Wire, error) {
	w, err := app.NewWire(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	return w, nil
}
