package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sanonone/causalkg/internal/config"
	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/graphstore"
	"github.com/sanonone/causalkg/pkg/graphstore/badgerstore"
	"github.com/sanonone/causalkg/pkg/graphstore/sqlitestore"
	"github.com/sanonone/causalkg/pkg/ingest"
	"github.com/sanonone/causalkg/pkg/metrics"
)

// backend is an open store plus its backend-specific size reader.
type backend struct {
	core.Store
	kind       string
	persistent bool
	stats      func(context.Context) (core.Stats, error)
}

// openStore opens the store selected by cfg.Store. The caller closes it.
func openStore(cfg config.Config) (*backend, error) {
	sc := cfg.Store
	switch sc.Backend {
	case config.BackendMemory, "":
		if sc.Path == "" {
			var dbOpts []core.DBOption
			if sc.RankCorrelations {
				dbOpts = append(dbOpts, core.WithRankedCorrelations())
			}
			db := core.NewDB(dbOpts...)
			return &backend{
				Store: db,
				kind:  config.BackendMemory,
				stats: func(context.Context) (core.Stats, error) { return db.Stats(), nil },
			}, nil
		}

		interval, err := cfg.SnapshotInterval()
		if err != nil {
			return nil, err
		}
		opts := graphstore.DefaultOptions(sc.Path)
		opts.RankCorrelations = sc.RankCorrelations
		opts.AutoSaveInterval = interval
		gs, err := graphstore.Open(opts)
		if err != nil {
			return nil, err
		}
		return &backend{
			Store:      gs,
			kind:       config.BackendMemory,
			persistent: true,
			stats:      func(context.Context) (core.Stats, error) { return gs.Stats(), nil },
		}, nil

	case config.BackendSQLite:
		ss, err := sqlitestore.Open(sc.Path, sqlitestore.Options{RankCorrelations: sc.RankCorrelations})
		if err != nil {
			return nil, err
		}
		return &backend{Store: ss, kind: sc.Backend, persistent: true, stats: ss.Stats}, nil

	case config.BackendBadger:
		bs, err := badgerstore.Open(badgerstore.Config{
			Path:             sc.Path,
			RankCorrelations: sc.RankCorrelations,
			Logger:           slog.Default(),
		})
		if err != nil {
			return nil, err
		}
		return &backend{
			Store:      bs,
			kind:       sc.Backend,
			persistent: true,
			stats:      func(context.Context) (core.Stats, error) { return bs.Stats() },
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// openLoaded opens the configured store and loads cfg.Store.Datasets.
func openLoaded(ctx context.Context, cfg config.Config) (*backend, error) {
	b, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.Store.Datasets) > 0 {
		res, err := ingest.LoadFiles(ctx, b, cfg.Store.Datasets...)
		if err != nil {
			b.Close()
			return nil, err
		}
		slog.Info("Datasets loaded", "files", len(cfg.Store.Datasets), "edges", res.Edges, "correlations", res.Correlations)
	}
	b.reportSize(ctx)
	return b, nil
}

// reportSize publishes the store size on the graph size gauge.
func (b *backend) reportSize(ctx context.Context) {
	st, err := b.stats(ctx)
	if err != nil {
		slog.Warn("Could not read store size", "backend", b.kind, "error", err)
		return
	}
	metrics.GraphSize.WithLabelValues("edges").Set(float64(st.Edges))
	metrics.GraphSize.WithLabelValues("correlations").Set(float64(st.Correlations))
	metrics.GraphSize.WithLabelValues("correlation_sources").Set(float64(st.Sources))
}
