package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sanonone/causalkg/pkg/graphstore"
	"github.com/sanonone/causalkg/pkg/ingest"
)

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <dataset.yaml>...",
		Short: "Import dataset files into the configured persistent store",
		Long: `Parse each dataset file and write its edges and correlation rows to
the configured store. The store must be persistent: sqlite, badger, or the
memory backend with store.path set.

Example:
  causalkg load --config causalkg.yaml ./data/mapk.yaml ./data/akt.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config()
			cfg.Store.Datasets = nil

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if !st.persistent {
				return errors.New("load needs a persistent store: set store.path")
			}

			res, err := ingest.LoadFiles(cmd.Context(), st, args...)
			if err != nil {
				return err
			}
			if gs, ok := st.Store.(*graphstore.Store); ok {
				if err := gs.SaveSnapshot(); err != nil {
					slog.Warn("Snapshot after load failed; the log still holds every write", "error", err)
				}
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "loaded %d edges and %d correlations from %d file(s)\n",
				res.Edges, res.Correlations, len(args))
			return err
		},
	}
	return cmd
}
