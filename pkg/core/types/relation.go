package types

import (
	"fmt"
	"strings"
)

// RelationType is the closed set of canonical causal relation kinds.
// The zero value, AnyRelation, means "no relation filter".
type RelationType uint8

const (
	AnyRelation RelationType = iota
	Phosphorylates
	Dephosphorylates
	IncreasesAmount
	DecreasesAmount
	Modulates
	IsPhosphorylatedBy
	IsDephosphorylatedBy
	ExpressionIsUp
	ExpressionIsUpregulatedBy
	ExpressionIsDownregulatedBy

	relationCount
)

// Reading is the fixed reading direction of a relation type.
type Reading uint8

const (
	// SubjectToObject: "A phosphorylates B".
	SubjectToObject Reading = iota
	// ObjectToSubject: "B is phosphorylated by A".
	ObjectToSubject
)

// Family groups relation types by mechanism. The names match the statement
// types consumers expect.
type Family string

const (
	FamilyNone              Family = ""
	FamilyPhosphorylation   Family = "Phosphorylation"
	FamilyDephosphorylation Family = "Dephosphorylation"
	FamilyIncreaseAmount    Family = "IncreaseAmount"
	FamilyDecreaseAmount    Family = "DecreaseAmount"
	FamilyModulation        Family = "Modulation"
)

type relationDef struct {
	name    string
	reading Reading
	active  RelationType
	family  Family
}

// relationDefs is indexed by RelationType. Every property of a relation is
// fixed here; none is derived from another member.
var relationDefs = [relationCount]relationDef{
	AnyRelation:                 {name: "any", reading: SubjectToObject, active: AnyRelation, family: FamilyNone},
	Phosphorylates:              {name: "phosphorylates", reading: SubjectToObject, active: Phosphorylates, family: FamilyPhosphorylation},
	Dephosphorylates:            {name: "dephosphorylates", reading: SubjectToObject, active: Dephosphorylates, family: FamilyDephosphorylation},
	IncreasesAmount:             {name: "upregulates-expression", reading: SubjectToObject, active: IncreasesAmount, family: FamilyIncreaseAmount},
	DecreasesAmount:             {name: "downregulates-expression", reading: SubjectToObject, active: DecreasesAmount, family: FamilyDecreaseAmount},
	Modulates:                   {name: "modulates", reading: SubjectToObject, active: Modulates, family: FamilyModulation},
	IsPhosphorylatedBy:          {name: "is-phosphorylated-by", reading: ObjectToSubject, active: Phosphorylates, family: FamilyPhosphorylation},
	IsDephosphorylatedBy:        {name: "is-dephosphorylated-by", reading: ObjectToSubject, active: Dephosphorylates, family: FamilyDephosphorylation},
	ExpressionIsUp:              {name: "expression-is-up", reading: ObjectToSubject, active: IncreasesAmount, family: FamilyIncreaseAmount},
	ExpressionIsUpregulatedBy:   {name: "expression-is-upregulated-by", reading: ObjectToSubject, active: IncreasesAmount, family: FamilyIncreaseAmount},
	ExpressionIsDownregulatedBy: {name: "expression-is-downregulated-by", reading: ObjectToSubject, active: DecreasesAmount, family: FamilyDecreaseAmount},
}

var relationByName = func() map[string]RelationType {
	m := make(map[string]RelationType, relationCount)
	for i := RelationType(1); i < relationCount; i++ {
		m[relationDefs[i].name] = i
	}
	return m
}()

func (r RelationType) def() relationDef {
	if r >= relationCount {
		return relationDefs[AnyRelation]
	}
	return relationDefs[r]
}

// Valid reports whether r is a concrete member of the enumeration.
func (r RelationType) Valid() bool {
	return r > AnyRelation && r < relationCount
}

func (r RelationType) String() string {
	if r >= relationCount {
		return fmt.Sprintf("relation(%d)", uint8(r))
	}
	return r.def().name
}

// Reading returns the fixed reading direction.
func (r RelationType) Reading() Reading { return r.def().reading }

// Active returns the subject→object member that edges of this relation are
// stored under. Active members return themselves.
func (r RelationType) Active() RelationType { return r.def().active }

// Family returns the mechanism family.
func (r RelationType) Family() Family { return r.def().family }

// PhosphoLike reports whether the relation belongs to a phosphorylation-like
// family, i.e. one whose object carries a modification site.
func (r RelationType) PhosphoLike() bool {
	f := r.Family()
	return f == FamilyPhosphorylation || f == FamilyDephosphorylation
}

// Matches reports whether an edge stored under relation edge satisfies
// filter r. AnyRelation matches everything.
func (r RelationType) Matches(edge RelationType) bool {
	if r == AnyRelation {
		return true
	}
	return r.Active() == edge.Active()
}

// ParseRelationType parses a wire name such as "is-phosphorylated-by".
// Underscores and case are tolerated.
func ParseRelationType(s string) (RelationType, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if r, ok := relationByName[key]; ok {
		return r, nil
	}
	return AnyRelation, fmt.Errorf("unknown relation type %q", s)
}

// RelationTypes returns every concrete member in declaration order.
func RelationTypes() []RelationType {
	out := make([]RelationType, 0, relationCount-1)
	for i := RelationType(1); i < relationCount; i++ {
		out = append(out, i)
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (r RelationType) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal relation %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RelationType) UnmarshalText(b []byte) error {
	v, err := ParseRelationType(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
