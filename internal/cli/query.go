package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sanonone/causalkg/pkg/core/types"
	"github.com/sanonone/causalkg/pkg/engine"
)

// ErrNoResult is returned by query commands that found nothing, so scripts
// can tell a negative answer from success by the exit status.
var ErrNoResult = errors.New("no result")

// withEngine opens the configured store, loads datasets and runs fn.
func withEngine(ctx context.Context, opts *RootOptions, fn func(*engine.Engine) error) error {
	cfg := opts.Config()
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
	return fn(engine.New(st, engine.Options{ResetScope: scope}))
}

// NewPathCommand creates the path command.
func NewPathCommand(rootOpts *RootOptions) *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "path <source> <target>",
		Short: "Find the causal relation linking two entities",
		Example: `  causalkg path -d data.yaml MAPK1 JUND
  causalkg path -d data.yaml JUND MAPK1 --direction forward`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := types.ParseDirection(direction)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), rootOpts, func(eng *engine.Engine) error {
				a, found, err := eng.FindPath(cmd.Context(), types.NewEntity(args[0]), types.NewEntity(args[1]), dir)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%w: no causal path between %s and %s", ErrNoResult, args[0], args[1])
				}
				return writeViews(cmd.OutOrStdout(), rootOpts.Format, []engine.View{engine.BuildView(a)})
			})
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "either", "forward|reverse|either")
	return cmd
}

// NewTargetsCommand creates the targets command, or the sources command when
// name is "sources".
func NewTargetsCommand(rootOpts *RootOptions, name string) *cobra.Command {
	role := types.SourceGiven
	short := "List what an entity affects through a mechanism"
	if name == "sources" {
		role = types.TargetGiven
		short = "List what affects an entity through a mechanism"
	}

	cmd := &cobra.Command{
		Use:     name + " <entity> <mechanism>",
		Short:   short,
		Example: fmt.Sprintf("  causalkg %s -d data.yaml MAPK1 phosphorylation", name),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), rootOpts, func(eng *engine.Engine) error {
				found, err := eng.FindTargets(cmd.Context(), types.NewEntity(args[0]), args[1], role)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					return fmt.Errorf("%w: nothing found for %s %s", ErrNoResult, args[0], args[1])
				}
				return writeViews(cmd.OutOrStdout(), rootOpts.Format, engine.Views(found))
			})
		},
	}
	return cmd
}

// NewCorrelateCommand creates the correlate command.
func NewCorrelateCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "correlate <source>",
		Short: "Walk the correlation table of an entity",
		Long: `Print the correlation records of <source> in table order, each marked
explainable when a causal relation links the pair in either direction.`,
		Example: "  causalkg correlate -d data.yaml AKT1 --limit 5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), rootOpts, func(eng *engine.Engine) error {
				source := types.NewEntity(args[0])
				var out []types.ExplainedCorrelation
				for limit <= 0 || len(out) < limit {
					rec, ok, err := eng.NextCorrelation(cmd.Context(), source)
					if err != nil {
						return err
					}
					if !ok {
						break
					}
					out = append(out, rec)
				}
				if len(out) == 0 {
					return fmt.Errorf("%w: no correlations for %s", ErrNoResult, args[0])
				}
				return writeCorrelations(cmd.OutOrStdout(), rootOpts.Format, out)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after n records (0 = all)")
	return cmd
}
