// Package cli implements the causalkg command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sanonone/causalkg/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Format     string   // "json" | "text"
	Datasets   []string // loaded on top of store.datasets

	cfg config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the causalkg CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "causalkg",
		Short: "Causal relation queries over a biological knowledge graph",
		Long: `causalkg answers causal questions over a knowledge graph of
biological interactions (phosphorylation, expression regulation, ...) and
walks dataset correlation tables, reporting which correlations a known
causal relation explains.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.init(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log.level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override log.format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringSliceVarP(&opts.Datasets, "dataset", "d", nil, "extra dataset file(s) to load at startup")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewPathCommand(opts))
	cmd.AddCommand(NewTargetsCommand(opts, "targets"))
	cmd.AddCommand(NewTargetsCommand(opts, "sources"))
	cmd.AddCommand(NewCorrelateCommand(opts))

	return cmd
}

// init loads the configuration, applies flag overrides and installs the
// default slog logger. Logs always go to stderr so stdout stays free for
// command output and the MCP stdio transport.
func (o *RootOptions) init(logOut io.Writer) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	cfg.Store.Datasets = append(cfg.Store.Datasets, o.Datasets...)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.SlogLevel()
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(logOut, handlerOpts)
	} else {
		handler = slog.NewTextHandler(logOut, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))

	o.cfg = cfg
	return nil
}

// Config returns the effective configuration. Valid after PersistentPreRunE.
func (o *RootOptions) Config() config.Config {
	return o.cfg
}
