package core

import (
	"errors"
	"testing"

	"github.com/sanonone/causalkg/pkg/core/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		verb string
		role types.QueryRole
		want types.RelationType
	}{
		{"phosphorylation", types.SourceGiven, types.Phosphorylates},
		{"phosphorylation", types.TargetGiven, types.IsPhosphorylatedBy},
		{"dephosphorylation", types.TargetGiven, types.IsDephosphorylatedBy},
		{"activate", types.SourceGiven, types.IncreasesAmount},
		{"increase", types.SourceGiven, types.IncreasesAmount},
		{"activate", types.TargetGiven, types.ExpressionIsUp},
		{"increase", types.TargetGiven, types.ExpressionIsUp},
		{"inhibit", types.SourceGiven, types.DecreasesAmount},
		{"decrease", types.TargetGiven, types.DecreasesAmount},
		{"modulate", types.TargetGiven, types.Modulates},
		{"  Phosphorylation ", types.SourceGiven, types.Phosphorylates},
	}

	for _, tt := range tests {
		t.Run(tt.verb+"/"+tt.role.String(), func(t *testing.T) {
			got, err := Normalize(tt.verb, tt.role)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.verb, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q, %v) = %v, want %v", tt.verb, tt.role, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnknownVerb(t *testing.T) {
	for _, verb := range []string{"activation", "activates", "", "phosphorylates"} {
		_, err := Normalize(verb, types.SourceGiven)
		if !errors.Is(err, ErrUnknownRelationVerb) {
			t.Errorf("Normalize(%q) error = %v, want ErrUnknownRelationVerb", verb, err)
		}
	}
}

// The increase family is not a mirror image of itself: the target-given form
// is its own member, read object→subject, yet still matches edges stored as
// upregulates-expression.
func TestExpressionIsUpIsDistinctMember(t *testing.T) {
	src, _ := Normalize("increase", types.SourceGiven)
	tgt, _ := Normalize("increase", types.TargetGiven)

	if src == tgt {
		t.Fatal("source-given and target-given forms should be distinct members")
	}
	if tgt.Reading() != types.ObjectToSubject {
		t.Errorf("ExpressionIsUp reading = %v, want ObjectToSubject", tgt.Reading())
	}
	if !tgt.Matches(types.IncreasesAmount) {
		t.Error("ExpressionIsUp should match upregulates-expression edges")
	}
	if tgt.Matches(types.DecreasesAmount) {
		t.Error("ExpressionIsUp should not match downregulates-expression edges")
	}
}

func TestVerbs(t *testing.T) {
	got := Verbs()
	if len(got) != 7 || got[0] != "activate" {
		t.Errorf("Verbs() = %v", got)
	}
}
