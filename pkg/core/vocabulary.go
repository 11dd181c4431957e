package core

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sanonone/causalkg/pkg/core/types"
)

// The same causal verb maps to different canonical relations depending on
// whether the caller supplied the causal source or the causal target.
var (
	sourceGivenVerbs = map[string]types.RelationType{
		"phosphorylation":   types.Phosphorylates,
		"dephosphorylation": types.Dephosphorylates,
		"activate":          types.IncreasesAmount,
		"increase":          types.IncreasesAmount,
		"inhibit":           types.DecreasesAmount,
		"decrease":          types.DecreasesAmount,
		"modulate":          types.Modulates,
	}

	targetGivenVerbs = map[string]types.RelationType{
		"phosphorylation":   types.IsPhosphorylatedBy,
		"dephosphorylation": types.IsDephosphorylatedBy,
		"activate":          types.ExpressionIsUp,
		"increase":          types.ExpressionIsUp,
		"inhibit":           types.DecreasesAmount,
		"decrease":          types.DecreasesAmount,
		"modulate":          types.Modulates,
	}
)

// Normalize maps a human-facing causal verb and query role to its canonical
// relation type. Unknown verbs return ErrUnknownRelationVerb.
func Normalize(verb string, role types.QueryRole) (types.RelationType, error) {
	table := sourceGivenVerbs
	if role == types.TargetGiven {
		table = targetGivenVerbs
	}
	// A Caser is stateful, so one is built per call.
	key := cases.Fold().String(strings.TrimSpace(verb))
	if rel, ok := table[key]; ok {
		return rel, nil
	}
	return types.AnyRelation, fmt.Errorf("%w: %q", ErrUnknownRelationVerb, verb)
}

// Verbs lists the accepted verbs, sorted.
func Verbs() []string {
	out := make([]string, 0, len(sourceGivenVerbs))
	for v := range sourceGivenVerbs {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
