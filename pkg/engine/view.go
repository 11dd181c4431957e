package engine

import (
	"encoding/json"

	"github.com/sanonone/causalkg/pkg/core/types"
)

// Participant is one side of a View.
type Participant struct {
	Name string          `json:"name"`
	Mods []types.ModSite `json:"mods,omitempty"`
}

// View is the flat statement shape returned to consumers.
//
// For phosphorylation-like relations Residue and Position come from the
// first object modification site only; further sites are not surfaced here.
type View struct {
	Type     types.Family
	Relation types.RelationType
	Subject  Participant
	Object   Participant
	Residue  string
	Position int
	URI      string
}

// EdgeView projects an edge onto a View. The edge is read in active form, so
// Subject is always the acting entity.
func EdgeView(e types.Edge) View {
	e = e.Canonical()
	v := View{
		Type:     e.Relation.Family(),
		Relation: e.Relation,
		Subject:  Participant{Name: e.Subject.ID, Mods: e.SubjectMods},
		Object:   Participant{Name: e.Object.ID, Mods: e.ObjectMods},
		URI:      e.URI,
	}
	if e.Relation.PhosphoLike() && len(e.ObjectMods) > 0 {
		v.Residue = e.ObjectMods[0].Residue
		v.Position = e.ObjectMods[0].Position
	}
	return v
}

// BuildView projects a resolved assertion.
func BuildView(a types.CausalAssertion) View {
	return EdgeView(a.Edge)
}

// Views projects a slice of assertions.
func Views(as []types.CausalAssertion) []View {
	out := make([]View, len(as))
	for i, a := range as {
		out[i] = BuildView(a)
	}
	return out
}

// MarshalJSON names the participants enz/sub for phosphorylation-like
// statements and subj/obj otherwise.
func (v View) MarshalJSON() ([]byte, error) {
	subjKey, objKey := "subj", "obj"
	if v.Relation.PhosphoLike() {
		subjKey, objKey = "enz", "sub"
	}

	m := map[string]any{
		"type":     v.Type,
		"relation": v.Relation,
		subjKey:    v.Subject,
		objKey:     v.Object,
	}
	if v.Residue != "" {
		m["residue"] = v.Residue
	}
	if v.Position != 0 {
		m["position"] = v.Position
	}
	if v.URI != "" {
		m["uri"] = v.URI
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts either key pair.
func (v *View) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type     types.Family       `json:"type"`
		Relation types.RelationType `json:"relation"`
		Enz      *Participant       `json:"enz"`
		Sub      *Participant       `json:"sub"`
		Subj     *Participant       `json:"subj"`
		Obj      *Participant       `json:"obj"`
		Residue  string             `json:"residue"`
		Position int                `json:"position"`
		URI      string             `json:"uri"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*v = View{Type: raw.Type, Relation: raw.Relation, Residue: raw.Residue, Position: raw.Position, URI: raw.URI}
	switch {
	case raw.Enz != nil:
		v.Subject = *raw.Enz
	case raw.Subj != nil:
		v.Subject = *raw.Subj
	}
	switch {
	case raw.Sub != nil:
		v.Object = *raw.Sub
	case raw.Obj != nil:
		v.Object = *raw.Obj
	}
	return nil
}
