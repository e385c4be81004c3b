package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffReferences(t *testing.T) {
	a := Reference{Type: RelationRefines, TargetID: "a"}
	b := Reference{Type: RelationImpacts, TargetID: "b"}
	c := Reference{Type: RelationImpacts, TargetID: "c"}

	t.Run("complete replacement removes omitted references", func(t *testing.T) {
		added, removed := DiffReferences([]Reference{a, b}, []Reference{b, c})
		assert.Equal(t, []Reference{c}, added)
		assert.Equal(t, []Reference{a}, removed)
	})

	t.Run("identical sets yield no delta", func(t *testing.T) {
		added, removed := DiffReferences([]Reference{a, b}, []Reference{a, b})
		assert.Empty(t, added)
		assert.Empty(t, removed)
	})

	t.Run("empty next removes everything", func(t *testing.T) {
		added, removed := DiffReferences([]Reference{a, b}, nil)
		assert.Empty(t, added)
		assert.ElementsMatch(t, []Reference{a, b}, removed)
	})

	t.Run("same target under different relation is distinct", func(t *testing.T) {
		x := Reference{Type: RelationSatisfies, TargetID: "a"}
		added, removed := DiffReferences([]Reference{a}, []Reference{x})
		assert.Equal(t, []Reference{x}, added)
		assert.Equal(t, []Reference{a}, removed)
	})
}

func TestRelationType_Valid(t *testing.T) {
	for _, rt := range []RelationType{RelationRefines, RelationImpacts, RelationSatisfies, RelationSupersedes, RelationDependsOn} {
		assert.True(t, rt.Valid(), string(rt))
	}
	assert.False(t, RelationType("LINKS_TO").Valid())
}
