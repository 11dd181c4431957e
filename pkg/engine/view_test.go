package engine

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sanonone/causalkg/pkg/core/types"
)

func TestEdgeViewPhosphorylation(t *testing.T) {
	e := types.Edge{
		Subject:  types.NewEntity("MAPK1"),
		Object:   types.NewEntity("CREB1"),
		Relation: types.Phosphorylates,
		ObjectMods: []types.ModSite{
			{Residue: "S", Position: 133},
			{Residue: "S", Position: 142},
		},
		URI: "uri=pc:42&",
	}

	got := EdgeView(e)
	want := View{
		Type:     types.FamilyPhosphorylation,
		Relation: types.Phosphorylates,
		Subject:  Participant{Name: "MAPK1"},
		Object:   Participant{Name: "CREB1", Mods: e.ObjectMods},
		Residue:  "S",
		Position: 133,
		URI:      "uri=pc:42&",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EdgeView mismatch (-want +got):\n%s", diff)
	}
}

func TestEdgeViewReadsInverseInActiveForm(t *testing.T) {
	e := types.Edge{
		Subject:     types.NewEntity("CREB1"),
		Object:      types.NewEntity("MAPK1"),
		Relation:    types.IsPhosphorylatedBy,
		SubjectMods: []types.ModSite{{Residue: "S", Position: 133}},
	}
	v := EdgeView(e)
	if v.Subject.Name != "MAPK1" || v.Object.Name != "CREB1" {
		t.Fatalf("participants = %s/%s, want MAPK1/CREB1", v.Subject.Name, v.Object.Name)
	}
	if v.Residue != "S" || v.Position != 133 {
		t.Errorf("site = %s%d, want S133", v.Residue, v.Position)
	}
}

func TestEdgeViewNonPhosphoHasNoSite(t *testing.T) {
	v := EdgeView(types.Edge{
		Subject:    types.NewEntity("TP53"),
		Object:     types.NewEntity("MDM2"),
		Relation:   types.IncreasesAmount,
		ObjectMods: []types.ModSite{{Residue: "S", Position: 1}},
	})
	if v.Residue != "" || v.Position != 0 {
		t.Errorf("non-phospho view carries site %s%d", v.Residue, v.Position)
	}
	if v.Type != types.FamilyIncreaseAmount {
		t.Errorf("Type = %q", v.Type)
	}
}

func TestViewJSONKeys(t *testing.T) {
	tests := []struct {
		rel      types.RelationType
		subj     string
		obj      string
		withSite bool
	}{
		{types.Phosphorylates, "enz", "sub", true},
		{types.Dephosphorylates, "enz", "sub", true},
		{types.DecreasesAmount, "subj", "obj", false},
		{types.Modulates, "subj", "obj", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel.String(), func(t *testing.T) {
			v := EdgeView(types.Edge{
				Subject:    types.NewEntity("A"),
				Object:     types.NewEntity("B"),
				Relation:   tt.rel,
				ObjectMods: []types.ModSite{{Residue: "T", Position: 7}},
			})
			b, err := json.Marshal(v)
			if err != nil {
				t.Fatal(err)
			}
			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatal(err)
			}
			if _, ok := m[tt.subj]; !ok {
				t.Errorf("missing %q in %s", tt.subj, b)
			}
			if _, ok := m[tt.obj]; !ok {
				t.Errorf("missing %q in %s", tt.obj, b)
			}
			if _, ok := m["residue"]; ok != tt.withSite {
				t.Errorf("residue present = %v in %s", ok, b)
			}

			var back View
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(v, back); diff != "" {
				t.Errorf("JSON round trip (-want +got):\n%s", diff)
			}
		})
	}
}
