package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/internal/entities"
	"reqtrack-backend/internal/store"
)

func TestMilestoneService_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a stable key and advances the parent", func(t *testing.T) {
		e := newEnv(t)
		wave := e.createWave(t, 2026, 3)
		chg := e.createChange(t, entities.ChangeContent{Title: "C"})

		result, err := e.milestones.Add(ctx, e.tx(t), chg.ItemID, model.Milestone{
			Title:      "Go live",
			EventTypes: []model.EventType{model.EventPublication, model.EventEnforcement},
			WaveID:     wave.ID,
		}, chg.VersionID)
		require.NoError(t, err)

		assert.NotEmpty(t, result.Milestone.MilestoneKey)
		assert.Equal(t, chg.ItemID, result.Parent.ItemID)
		assert.Equal(t, 2, result.Parent.Version)

		latest, err := e.changes.GetByID(ctx, e.tx(t), chg.ItemID, store.ReadOptions{})
		require.NoError(t, err)
		require.Len(t, latest.Content.Milestones, 1)
		assert.Equal(t, result.Milestone.MilestoneKey, latest.Content.Milestones[0].MilestoneKey)
	})

	t.Run("rejects a caller-supplied key", func(t *testing.T) {
		e := newEnv(t)
		chg := e.createChange(t, entities.ChangeContent{Title: "C"})

		_, err := e.milestones.Add(ctx, e.tx(t), chg.ItemID, model.Milestone{
			MilestoneKey: "mine",
			Title:        "M",
			EventTypes:   []model.EventType{model.EventReview},
		}, chg.VersionID)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("invalid milestone fields are aggregated", func(t *testing.T) {
		e := newEnv(t)
		chg := e.createChange(t, entities.ChangeContent{Title: "C"})

		_, err := e.milestones.Add(ctx, e.tx(t), chg.ItemID, model.Milestone{
			EventTypes: []model.EventType{"BAD_TYPE"},
			WaveID:     "no-such-wave",
		}, chg.VersionID)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		violations := apperrors.ViolationsOf(err)
		assert.Contains(t, violations, "milestones[0]: title is required")
		assert.Contains(t, violations, "milestones[0]: invalid event type 'BAD_TYPE'")
		assert.Contains(t, violations, "milestones[0]: wave 'no-such-wave' does not exist")
	})

	t.Run("stale lock conflicts", func(t *testing.T) {
		e := newEnv(t)
		chg := e.createChange(t, entities.ChangeContent{Title: "C"})
		_, err := e.changes.Update(ctx, e.tx(t), chg.ItemID,
			entities.ChangeContent{Title: "C2"}, chg.VersionID)
		require.NoError(t, err)

		_, err = e.milestones.Add(ctx, e.tx(t), chg.ItemID, model.Milestone{
			Title:      "M",
			EventTypes: []model.EventType{model.EventReview},
		}, chg.VersionID)
		assert.True(t, apperrors.IsVersionConflict(err))
	})
}

func TestMilestoneService_KeyStability(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	chg := e.createChange(t, entities.ChangeContent{Title: "C"})

	added, err := e.milestones.Add(ctx, e.tx(t), chg.ItemID, model.Milestone{
		Title:      "First",
		EventTypes: []model.EventType{model.EventReview},
	}, chg.VersionID)
	require.NoError(t, err)
	key := added.Milestone.MilestoneKey

	// An unrelated full update carries the milestone forward verbatim.
	latest, err := e.changes.GetByID(ctx, e.tx(t), chg.ItemID, store.ReadOptions{})
	require.NoError(t, err)
	content := latest.Content
	content.Description = "retitled elsewhere"
	updated, err := e.changes.Update(ctx, e.tx(t), chg.ItemID, content, latest.VersionID)
	require.NoError(t, err)
	require.Len(t, updated.Content.Milestones, 1)
	assert.Equal(t, key, updated.Content.Milestones[0].MilestoneKey)

	// Updating the milestone itself keeps the key too.
	result, err := e.milestones.Update(ctx, e.tx(t), chg.ItemID, key, model.Milestone{
		Title:      "First, renamed",
		EventTypes: []model.EventType{model.EventApproval},
	}, updated.VersionID)
	require.NoError(t, err)
	assert.Equal(t, key, result.Milestone.MilestoneKey)
	assert.Equal(t, "First, renamed", result.Milestone.Title)

	// Every historical version that carried the milestone shows the
	// same key.
	history, err := e.changes.GetVersionHistory(ctx, e.tx(t), chg.ItemID)
	require.NoError(t, err)
	for _, rec := range history[1:] {
		require.Len(t, rec.Content.Milestones, 1)
		assert.Equal(t, key, rec.Content.Milestones[0].MilestoneKey)
	}
}

func TestMilestoneService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("update of unknown key is not found", func(t *testing.T) {
		e := newEnv(t)
		chg := e.createChange(t, entities.ChangeContent{Title: "C"})

		_, err := e.milestones.Update(ctx, e.tx(t), chg.ItemID, "missing", model.Milestone{
			Title:      "M",
			EventTypes: []model.EventType{model.EventReview},
		}, chg.VersionID)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("delete removes from latest but not history", func(t *testing.T) {
		e := newEnv(t)
		chg := e.createChange(t, entities.ChangeContent{Title: "C"})
		added, err := e.milestones.Add(ctx, e.tx(t), chg.ItemID, model.Milestone{
			Title:      "M",
			EventTypes: []model.EventType{model.EventSunset},
		}, chg.VersionID)
		require.NoError(t, err)

		pointer, err := e.milestones.Delete(ctx, e.tx(t), chg.ItemID,
			added.Milestone.MilestoneKey, added.Parent.VersionID)
		require.NoError(t, err)
		assert.Equal(t, 3, pointer.Version)

		latest, err := e.changes.GetByID(ctx, e.tx(t), chg.ItemID, store.ReadOptions{})
		require.NoError(t, err)
		assert.Empty(t, latest.Content.Milestones)

		withMilestone, err := e.changes.GetByIDAndVersion(ctx, e.tx(t), chg.ItemID, 2)
		require.NoError(t, err)
		require.Len(t, withMilestone.Content.Milestones, 1)
	})

	t.Run("delete of unknown key is not found", func(t *testing.T) {
		e := newEnv(t)
		chg := e.createChange(t, entities.ChangeContent{Title: "C"})
		_, err := e.milestones.Delete(ctx, e.tx(t), chg.ItemID, "missing", chg.VersionID)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestMilestoneService_Cap(t *testing.T) {
	ctx := context.Background()
	e := newEnvWithLimits(t, func() store.Limits {
		return store.Limits{MaxMilestonesPerItem: 1}
	})
	chg := e.createChange(t, entities.ChangeContent{Title: "C"})

	added, err := e.milestones.Add(ctx, e.tx(t), chg.ItemID, model.Milestone{
		Title:      "first",
		EventTypes: []model.EventType{model.EventReview},
	}, chg.VersionID)
	require.NoError(t, err)

	_, err = e.milestones.Add(ctx, e.tx(t), chg.ItemID, model.Milestone{
		Title:      "second",
		EventTypes: []model.EventType{model.EventReview},
	}, added.Parent.VersionID)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, apperrors.ViolationsOf(err), "too many milestones: the limit is 1 per change")
}
