package model

// RelationType is the kind of a typed relationship edge. Edges always
// originate from a specific item version, never from the item itself;
// two versions of the same item may carry entirely different sets.
type RelationType string

const (
	RelationRefines    RelationType = "REFINES"
	RelationImpacts    RelationType = "IMPACTS"
	RelationSatisfies  RelationType = "SATISFIES"
	RelationSupersedes RelationType = "SUPERSEDES"
	RelationDependsOn  RelationType = "DEPENDS_ON"
)

// Valid reports whether the relation type is one of the known kinds.
func (t RelationType) Valid() bool {
	switch t {
	case RelationRefines, RelationImpacts, RelationSatisfies, RelationSupersedes, RelationDependsOn:
		return true
	}
	return false
}

// Reference is one outgoing relationship of an item version, resolved
// from the reference-id arrays of the submitted payload.
type Reference struct {
	Type     RelationType `json:"type"`
	TargetID string       `json:"targetId"`
}

// ReferenceSet builds a membership set over references, used to diff
// the relationship sets of two versions.
func ReferenceSet(refs []Reference) map[Reference]struct{} {
	set := make(map[Reference]struct{}, len(refs))
	for _, r := range refs {
		set[r] = struct{}{}
	}
	return set
}

// DiffReferences computes the complete-replacement delta between the
// previous version's references and the next version's: references
// present only in next are added, references present only in prev are
// removed. References omitted from the submitted payload are removed,
// never silently preserved.
func DiffReferences(prev, next []Reference) (added, removed []Reference) {
	prevSet := ReferenceSet(prev)
	nextSet := ReferenceSet(next)

	for _, r := range next {
		if _, ok := prevSet[r]; !ok {
			added = append(added, r)
		}
	}
	for _, r := range prev {
		if _, ok := nextSet[r]; !ok {
			removed = append(removed, r)
		}
	}
	return added, removed
}
