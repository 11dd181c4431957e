package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	mcpserver "github.com/sanonone/causalkg/internal/mcp"
	"github.com/sanonone/causalkg/internal/server"
	"github.com/sanonone/causalkg/pkg/engine"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	HTTPAddr  string
	AuthToken string
	MCP       bool

	// SizeInterval is how often the graph size gauge is refreshed.
	SizeInterval time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (and optionally MCP over stdio)",
		Long: `Open the configured knowledge store, load the configured datasets and
serve the causal query API until interrupted.

Example:
  causalkg serve --config causalkg.yaml
  causalkg serve -d ./data/mapk.yaml --http-addr :8080 --mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.HTTPAddr, "http-addr", "", "override server.http_addr")
	cmd.Flags().StringVar(&opts.AuthToken, "auth-token", "", "override server.auth_token")
	cmd.Flags().BoolVar(&opts.MCP, "mcp", false, "also serve MCP tools over stdin/stdout")
	cmd.Flags().DurationVar(&opts.SizeInterval, "size-interval", 30*time.Second, "graph size metric refresh interval")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg := opts.Config()
	if opts.HTTPAddr != "" {
		cfg.Server.HTTPAddr = opts.HTTPAddr
	}
	if opts.AuthToken != "" {
		cfg.Server.AuthToken = opts.AuthToken
	}
	if opts.MCP {
		cfg.MCP.Enabled = true
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openLoaded(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("Error closing store", "error", closeErr)
		}
	}()

	scope, _ := cfg.ResetScope()
	eng := engine.New(st, engine.Options{ResetScope: scope})
	srv := server.NewServer(eng, cfg.Server.HTTPAddr, cfg.Server.AuthToken)
	if cfg.Server.AuthToken == "" {
		slog.Warn("HTTP API authentication disabled (server.auth_token is empty)")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})
	g.Go(func() error {
		if opts.SizeInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(opts.SizeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				st.reportSize(gctx)
			}
		}
	})
	if cfg.MCP.Enabled {
		g.Go(func() error {
			slog.Info("MCP server listening on stdio")
			err := mcpserver.ServeStdio(gctx, eng)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	slog.Info("causalkg ready", "backend", st.kind, "http_addr", cfg.Server.HTTPAddr, "mcp", cfg.MCP.Enabled, "reset_scope", scope)
	err = g.Wait()
	slog.Info("causalkg stopped")
	return err
}
