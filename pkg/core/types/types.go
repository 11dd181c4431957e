// Package types holds the value types shared by the knowledge stores, the
// query engine and the outer surfaces (HTTP, MCP, CLI).
package types

import (
	"fmt"
	"strings"
)

// ModSite is a post-translational modification site (e.g. S133).
// The zero value means "no site". Position 0 means the position is unknown.
type ModSite struct {
	Residue  string `json:"residue,omitempty" yaml:"residue,omitempty"`
	Position int    `json:"position,omitempty" yaml:"position,omitempty"`
}

// IsZero reports whether the site carries no information.
func (m ModSite) IsZero() bool {
	return m.Residue == "" && m.Position == 0
}

func (m ModSite) String() string {
	if m.Position == 0 {
		return m.Residue
	}
	return fmt.Sprintf("%s%d", m.Residue, m.Position)
}

// Entity is a canonical biological identifier used as a graph node.
// Identity is the ID alone; Site is carried as annotation.
type Entity struct {
	ID   string  `json:"id"`
	Site ModSite `json:"site,omitzero"`
}

// NewEntity returns an entity with no modification site.
func NewEntity(id string) Entity {
	return Entity{ID: id}
}

// Is reports whether both entities name the same identifier.
func (e Entity) Is(other Entity) bool {
	return e.ID == other.ID
}

func (e Entity) String() string {
	if e.Site.IsZero() {
		return e.ID
	}
	return e.ID + "-" + e.Site.String()
}

// Edge is a directed, typed causal relation between two entities.
// Stores hold edges in active form (see Canonical).
type Edge struct {
	Subject     Entity       `json:"subject"`
	Object      Entity       `json:"object"`
	Relation    RelationType `json:"relation"`
	SubjectMods []ModSite    `json:"subject_mods,omitempty"`
	ObjectMods  []ModSite    `json:"object_mods,omitempty"`
	// URI is the provenance locator of the interaction, if known.
	URI string `json:"uri,omitempty"`
}

// Canonical returns the edge rewritten in active (subject→object) form.
// An inverse-phrased edge "A is-phosphorylated-by B" becomes
// "B phosphorylates A" with the mod sequences swapped accordingly.
func (e Edge) Canonical() Edge {
	if e.Relation.Reading() == SubjectToObject {
		return e
	}
	return Edge{
		Subject:     e.Object,
		Object:      e.Subject,
		Relation:    e.Relation.Active(),
		SubjectMods: e.ObjectMods,
		ObjectMods:  e.SubjectMods,
		URI:         e.URI,
	}
}

func (e Edge) String() string {
	return fmt.Sprintf("%s %s %s", e.Subject.ID, e.Relation, e.Object.ID)
}

// Direction constrains which edge orientation qualifies a path match.
// The zero value is Either.
type Direction uint8

const (
	// Either matches forward or reverse, preferring forward.
	Either Direction = iota
	// Forward means the source causally precedes the target.
	Forward
	// Reverse means the target causally precedes the source.
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "either"
	}
}

// ParseDirection maps the textual forms used by callers onto a Direction.
// An empty string yields Either.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "either", "both":
		return Either, nil
	case "forward", "strict", "out":
		return Forward, nil
	case "reverse", "in":
		return Reverse, nil
	}
	return Either, fmt.Errorf("unknown direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// QueryRole says which end of the causal relation the caller supplied.
type QueryRole uint8

const (
	// SourceGiven: "what does X affect?"
	SourceGiven QueryRole = iota
	// TargetGiven: "what affects X?"
	TargetGiven
)

func (r QueryRole) String() string {
	if r == TargetGiven {
		return "target"
	}
	return "source"
}

// Endpoint names one end of an Edge.
type Endpoint uint8

const (
	SubjectEnd Endpoint = iota
	ObjectEnd
)

func (p Endpoint) String() string {
	if p == ObjectEnd {
		return "object"
	}
	return "subject"
}

// CausalAssertion is a resolved path query: the matched edge plus which edge
// endpoint the query's source role mapped to.
type CausalAssertion struct {
	Edge      Edge      `json:"edge"`
	SourceEnd Endpoint  `json:"source_end"`
	Direction Direction `json:"direction"`
}

// QuerySource returns the edge endpoint that played the query's source role.
func (a CausalAssertion) QuerySource() Entity {
	if a.SourceEnd == ObjectEnd {
		return a.Edge.Object
	}
	return a.Edge.Subject
}

// QueryTarget returns the endpoint opposite to QuerySource.
func (a CausalAssertion) QueryTarget() Entity {
	if a.SourceEnd == ObjectEnd {
		return a.Edge.Subject
	}
	return a.Edge.Object
}

// CorrelationRecord is one ranked statistical association.
type CorrelationRecord struct {
	Source      Entity  `json:"source"`
	Target      Entity  `json:"target"`
	Correlation float64 `json:"correlation"`
}

// ExplainedCorrelation is a CorrelationRecord classified against the causal
// graph. It is computed per request and never stored.
type ExplainedCorrelation struct {
	CorrelationRecord
	Explainable bool `json:"explainable"`
}
