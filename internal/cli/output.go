package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sanonone/causalkg/pkg/core/types"
	"github.com/sanonone/causalkg/pkg/engine"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeViews(w io.Writer, format string, views []engine.View) error {
	if format == "json" {
		return writeJSON(w, views)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tRELATION\tOBJECT\tSITE\tURI")
	for _, v := range views {
		site := types.ModSite{Residue: v.Residue, Position: v.Position}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Subject.Name, v.Relation, v.Object.Name, site, v.URI)
	}
	return tw.Flush()
}

func writeCorrelations(w io.Writer, format string, recs []types.ExplainedCorrelation) error {
	if format == "json" {
		return writeJSON(w, recs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tTARGET\tCORRELATION\tSTATUS")
	for _, r := range recs {
		status := "unexplainable"
		if r.Explainable {
			status = "explainable"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\n", r.Source.ID, r.Target.ID, r.Correlation, status)
	}
	return tw.Flush()
}
