// Package ingest loads causal edges and correlation tables from YAML
// dataset files into any core.GraphWriter.
//
// A dataset looks like:
//
//	edges:
//	  - subject: MAPK1
//	    relation: phosphorylates
//	    object: JUND
//	    object_mods: [{residue: S, position: 100}]
//	    uri: "uri=http://pathwaycommons.org/pc2/Catalysis_123&"
//	correlations:
//	  - {source: AKT1, target: BRAF, correlation: 0.761}
//
// Inverse-phrased relations (is-phosphorylated-by, ...) are accepted and
// stored in active form. Correlation rows keep file order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
)

// EdgeRecord is one edge as written in a dataset.
type EdgeRecord struct {
	Subject     string          `yaml:"subject"`
	Relation    string          `yaml:"relation"`
	Object      string          `yaml:"object"`
	SubjectMods []types.ModSite `yaml:"subject_mods"`
	ObjectMods  []types.ModSite `yaml:"object_mods"`
	URI         string          `yaml:"uri"`
}

// Edge converts the record, validating the relation name.
func (r EdgeRecord) Edge() (types.Edge, error) {
	rel, err := types.ParseRelationType(r.Relation)
	if err != nil {
		return types.Edge{}, err
	}
	return types.Edge{
		Subject:     types.NewEntity(r.Subject),
		Object:      types.NewEntity(r.Object),
		Relation:    rel,
		SubjectMods: r.SubjectMods,
		ObjectMods:  r.ObjectMods,
		URI:         r.URI,
	}, nil
}

// CorrelationRow is one correlation as written in a dataset.
type CorrelationRow struct {
	Source      string  `yaml:"source"`
	Target      string  `yaml:"target"`
	Correlation float64 `yaml:"correlation"`
}

// Record converts the row.
func (r CorrelationRow) Record() types.CorrelationRecord {
	return types.CorrelationRecord{
		Source:      types.NewEntity(r.Source),
		Target:      types.NewEntity(r.Target),
		Correlation: r.Correlation,
	}
}

// Dataset is the decoded content of one file.
type Dataset struct {
	Edges        []EdgeRecord     `yaml:"edges"`
	Correlations []CorrelationRow `yaml:"correlations"`
}

// Result counts what was written.
type Result struct {
	Edges        int `json:"edges"`
	Correlations int `json:"correlations"`
}

// Add accumulates another result.
func (r *Result) Add(o Result) {
	r.Edges += o.Edges
	r.Correlations += o.Correlations
}

// Parse decodes a dataset in strict mode: unknown keys are errors.
// Environment variables are not expanded; datasets are data, not config.
func Parse(r io.Reader) (*Dataset, error) {
	var ds Dataset
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&ds); err != nil {
		if errors.Is(err, io.EOF) {
			return &ds, nil
		}
		return nil, fmt.Errorf("YAML syntax error: %w", err)
	}
	return &ds, nil
}

// ParseFile reads and decodes the dataset at path.
func ParseFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read dataset '%s': %w", path, err)
	}
	defer f.Close()

	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Apply writes every edge and then every correlation to w. It stops at the
// first failure; rows already written stay written.
func (d *Dataset) Apply(ctx context.Context, w core.GraphWriter) (Result, error) {
	var res Result
	for i, rec := range d.Edges {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e, err := rec.Edge()
		if err != nil {
			return res, fmt.Errorf("edges[%d]: %w", i, err)
		}
		if err := w.AddEdge(ctx, e); err != nil {
			return res, fmt.Errorf("edges[%d] (%s): %w", i, e, err)
		}
		res.Edges++
	}
	for i, row := range d.Correlations {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.AddCorrelation(ctx, row.Record()); err != nil {
			return res, fmt.Errorf("correlations[%d]: %w", i, err)
		}
		res.Correlations++
	}
	return res, nil
}

// LoadFiles parses and applies each file in order.
func LoadFiles(ctx context.Context, w core.GraphWriter, paths ...string) (Result, error) {
	var total Result
	for _, path := range paths {
		ds, err := ParseFile(path)
		if err != nil {
			return total, err
		}
		res, err := ds.Apply(ctx, w)
		total.Add(res)
		if err != nil {
			return total, fmt.Errorf("%s: %w", path, err)
		}
		slog.Info("Dataset loaded", "path", path, "edges", res.Edges, "correlations", res.Correlations)
	}
	return total, nil
}
