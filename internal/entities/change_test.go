package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqtrack-backend/domain/model"
)

func TestChangeTraits_Validate(t *testing.T) {
	traits := NewChangeTraits()

	t.Run("valid content has no violations", func(t *testing.T) {
		violations := traits.Validate(ChangeContent{
			Title:  "Update retention policy",
			Status: ChangeStatusPlanned,
			Milestones: []model.Milestone{
				{Title: "Publish", EventTypes: []model.EventType{model.EventPublication}},
			},
		})
		assert.Empty(t, violations)
	})

	t.Run("violations are aggregated", func(t *testing.T) {
		violations := traits.Validate(ChangeContent{
			Status: "SHIPPED",
			Milestones: []model.Milestone{
				{EventTypes: []model.EventType{"BAD_TYPE"}},
				{Title: "ok", EventTypes: nil},
			},
		})
		assert.Contains(t, violations, "title is required")
		assert.Contains(t, violations, "status must be one of [DRAFT PLANNED IN_PROGRESS COMPLETE CANCELLED]")
		assert.Contains(t, violations, "milestones[0]: title is required")
		assert.Contains(t, violations, "milestones[0]: invalid event type 'BAD_TYPE'")
		assert.Contains(t, violations, "milestones[1]: at least one event type is required")
	})

	t.Run("duplicate milestone keys are rejected", func(t *testing.T) {
		violations := traits.Validate(ChangeContent{
			Title: "C",
			Milestones: []model.Milestone{
				{MilestoneKey: "k1", Title: "a", EventTypes: []model.EventType{model.EventReview}},
				{MilestoneKey: "k1", Title: "b", EventTypes: []model.EventType{model.EventReview}},
			},
		})
		assert.Contains(t, violations, "milestones[1]: duplicate milestoneKey 'k1'")
	})
}

func TestChangeTraits_PrepareVersion(t *testing.T) {
	traits := NewChangeTraits()

	next := ChangeContent{
		Title: "C",
		Milestones: []model.Milestone{
			{MilestoneKey: "existing", Title: "old", EventTypes: []model.EventType{model.EventReview}},
			{Title: "new", EventTypes: []model.EventType{model.EventApproval}},
		},
	}
	require.NoError(t, traits.PrepareVersion(nil, &next))

	assert.Equal(t, "existing", next.Milestones[0].MilestoneKey)
	assert.NotEmpty(t, next.Milestones[1].MilestoneKey)
	assert.NotEqual(t, "existing", next.Milestones[1].MilestoneKey)

	// A second pass over already-keyed content changes nothing.
	issued := next.Milestones[1].MilestoneKey
	require.NoError(t, traits.PrepareVersion(nil, &next))
	assert.Equal(t, issued, next.Milestones[1].MilestoneKey)
}

func TestChangeTraits_References(t *testing.T) {
	traits := NewChangeTraits()
	refs := traits.References(ChangeContent{
		Title:         "C",
		ImpactsIDs:    []string{"r1"},
		SatisfiesIDs:  []string{"r2"},
		SupersedesIDs: []string{"c1"},
		DependsOnIDs:  []string{"c2", "c3"},
	})
	assert.ElementsMatch(t, []model.Reference{
		{Type: model.RelationImpacts, TargetID: "r1"},
		{Type: model.RelationSatisfies, TargetID: "r2"},
		{Type: model.RelationSupersedes, TargetID: "c1"},
		{Type: model.RelationDependsOn, TargetID: "c2"},
		{Type: model.RelationDependsOn, TargetID: "c3"},
	}, refs)
}

func TestChangeTraits_MergePatch(t *testing.T) {
	traits := NewChangeTraits()
	current := ChangeContent{
		Title:       "before",
		Description: "desc",
		Status:      ChangeStatusDraft,
		ImpactsIDs:  []string{"r1"},
		Milestones: []model.Milestone{
			{MilestoneKey: "k", Title: "m", EventTypes: []model.EventType{model.EventReview}},
		},
	}

	merged, err := traits.MergePatch(current, ChangePatch{
		Title:      model.Some("after"),
		Status:     model.Null[string](),
		ImpactsIDs: model.Some([]string{"r2"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "after", merged.Title)
	assert.Equal(t, "desc", merged.Description)
	assert.Empty(t, merged.Status)
	assert.Equal(t, []string{"r2"}, merged.ImpactsIDs)
	// Absent milestones field keeps the embedded array untouched.
	require.Len(t, merged.Milestones, 1)
	assert.Equal(t, "k", merged.Milestones[0].MilestoneKey)

	cleared, err := traits.MergePatch(current, ChangePatch{
		Milestones: model.Null[[]model.Milestone](),
	})
	require.NoError(t, err)
	assert.Empty(t, cleared.Milestones)
}

func TestRequirementTraits_MergePatch(t *testing.T) {
	traits := NewRequirementTraits()
	current := RequirementContent{
		Title:          "before",
		Category:       "FUNCTIONAL",
		RefinesIDs:     []string{"p1"},
		StakeholderIDs: []string{"s1"},
	}

	merged, err := traits.MergePatch(current, RequirementPatch{
		Category:   model.Null[string](),
		RefinesIDs: model.Some([]string{"p2"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "before", merged.Title)
	assert.Empty(t, merged.Category)
	assert.Equal(t, []string{"p2"}, merged.RefinesIDs)
	assert.Equal(t, []string{"s1"}, merged.StakeholderIDs)
}
