package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/internal/entities"
	"reqtrack-backend/internal/store"
)

func TestStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip with relationships", func(t *testing.T) {
		e := newEnv(t)
		sh := e.createStakeholder(t, "Compliance")
		parent := e.createRequirement(t, entities.RequirementContent{Title: "Parent"})

		rec := e.createRequirement(t, entities.RequirementContent{
			Title:          "Child",
			Description:    "derived obligation",
			RefinesIDs:     []string{parent.ItemID},
			StakeholderIDs: []string{sh.ID},
		})

		assert.NotEmpty(t, rec.ItemID)
		assert.NotEmpty(t, rec.VersionID)
		assert.Equal(t, 1, rec.Version)
		assert.Equal(t, "tester", rec.CreatedBy)
		assert.ElementsMatch(t, []model.Reference{
			{Type: model.RelationRefines, TargetID: parent.ItemID},
			{Type: model.RelationImpacts, TargetID: sh.ID},
		}, rec.References)

		got, err := e.requirements.GetByID(ctx, e.tx(t), rec.ItemID, store.ReadOptions{})
		require.NoError(t, err)
		assert.Equal(t, rec.VersionID, got.VersionID)
		assert.Equal(t, "Child", got.Content.Title)
		assert.Equal(t, "derived obligation", got.Content.Description)
		assert.ElementsMatch(t, rec.References, got.References)
	})

	t.Run("all violations reported in one error", func(t *testing.T) {
		e := newEnv(t)

		_, err := e.requirements.Create(ctx, e.tx(t), entities.RequirementContent{
			StakeholderIDs: []string{"999"},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		violations := apperrors.ViolationsOf(err)
		assert.Contains(t, violations, "title is required")
		assert.Contains(t, violations, "IMPACTS target '999' does not exist")
	})

	t.Run("nothing persists on validation failure", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.requirements.Create(ctx, e.tx(t), entities.RequirementContent{})
		require.Error(t, err)

		all, err := e.requirements.GetAll(ctx, e.tx(t), store.ReadOptions{})
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("audit entries for first version are all adds", func(t *testing.T) {
		e := newEnv(t)
		sh := e.createStakeholder(t, "Legal")
		rec := e.createRequirement(t, entities.RequirementContent{
			Title:          "R",
			StakeholderIDs: []string{sh.ID},
		})

		entries, err := e.requirements.Audit().EntriesForVersion(ctx, e.tx(t), rec.VersionID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.AuditActionAdd, entries[0].Action)
		assert.Equal(t, model.RelationImpacts, entries[0].RelationType)
		assert.Equal(t, sh.ID, entries[0].TargetID)
		assert.Equal(t, "tester", entries[0].UserID)
	})
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("creates new version and advances latest", func(t *testing.T) {
		e := newEnv(t)
		v1 := e.createRequirement(t, entities.RequirementContent{Title: "R"})

		v2, err := e.requirements.Update(ctx, e.tx(t), v1.ItemID,
			entities.RequirementContent{Title: "R revised"}, v1.VersionID)
		require.NoError(t, err)

		assert.Equal(t, 2, v2.Version)
		assert.NotEqual(t, v1.VersionID, v2.VersionID)

		latest, err := e.requirements.GetByID(ctx, e.tx(t), v1.ItemID, store.ReadOptions{})
		require.NoError(t, err)
		assert.Equal(t, v2.VersionID, latest.VersionID)
		assert.Equal(t, "R revised", latest.Content.Title)
	})

	t.Run("stale expected version is a conflict", func(t *testing.T) {
		e := newEnv(t)
		v1 := e.createRequirement(t, entities.RequirementContent{Title: "R"})
		v2, err := e.requirements.Update(ctx, e.tx(t), v1.ItemID,
			entities.RequirementContent{Title: "R2"}, v1.VersionID)
		require.NoError(t, err)

		_, err = e.requirements.Update(ctx, e.tx(t), v1.ItemID,
			entities.RequirementContent{Title: "R3"}, v1.VersionID)
		require.Error(t, err)
		assert.True(t, apperrors.IsVersionConflict(err))

		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, v1.VersionID, appErr.Expected)
		assert.Equal(t, v2.VersionID, appErr.Actual)

		// The failed update left no trace.
		latest, err := e.requirements.GetByID(ctx, e.tx(t), v1.ItemID, store.ReadOptions{})
		require.NoError(t, err)
		assert.Equal(t, v2.VersionID, latest.VersionID)
		assert.Equal(t, 2, latest.Version)
	})

	t.Run("relationships are replaced, not merged", func(t *testing.T) {
		e := newEnv(t)
		a := e.createRequirement(t, entities.RequirementContent{Title: "A"})
		sh := e.createStakeholder(t, "Ops")
		child := e.createRequirement(t, entities.RequirementContent{
			Title:      "Child",
			RefinesIDs: []string{a.ItemID},
		})

		// The update omits refines entirely; only the stakeholder link
		// survives.
		v2, err := e.requirements.Update(ctx, e.tx(t), child.ItemID, entities.RequirementContent{
			Title:          "Child",
			StakeholderIDs: []string{sh.ID},
		}, child.VersionID)
		require.NoError(t, err)
		assert.Equal(t, []model.Reference{{Type: model.RelationImpacts, TargetID: sh.ID}}, v2.References)

		// The superseded version keeps its own edge set.
		old, err := e.requirements.GetByIDAndVersion(ctx, e.tx(t), child.ItemID, 1)
		require.NoError(t, err)
		assert.Equal(t, []model.Reference{{Type: model.RelationRefines, TargetID: a.ItemID}}, old.References)

		// The ledger records the ADD on create and the REMOVE on update.
		entries, err := e.requirements.Audit().EntriesForTarget(ctx, e.tx(t), a.ItemID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, model.AuditActionAdd, entries[0].Action)
		assert.Equal(t, model.AuditActionRemove, entries[1].Action)
		assert.Equal(t, model.RelationRefines, entries[1].RelationType)
	})

	t.Run("update of unknown item is not found", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.requirements.Update(ctx, e.tx(t), "nope",
			entities.RequirementContent{Title: "X"}, "whatever")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestStore_Patch(t *testing.T) {
	ctx := context.Background()

	t.Run("absent fields keep their values", func(t *testing.T) {
		e := newEnv(t)
		sh := e.createStakeholder(t, "Risk")
		v1 := e.createRequirement(t, entities.RequirementContent{
			Title:          "R",
			Description:    "original",
			StakeholderIDs: []string{sh.ID},
		})

		v2, err := e.requirements.Patch(ctx, e.tx(t), v1.ItemID, entities.RequirementPatch{
			Title: model.Some("R patched"),
		}, v1.VersionID)
		require.NoError(t, err)

		assert.Equal(t, "R patched", v2.Content.Title)
		assert.Equal(t, "original", v2.Content.Description)
		assert.Equal(t, []string{sh.ID}, v2.Content.StakeholderIDs)
		assert.Equal(t, []model.Reference{{Type: model.RelationImpacts, TargetID: sh.ID}}, v2.References)
	})

	t.Run("explicit null clears the field", func(t *testing.T) {
		e := newEnv(t)
		sh := e.createStakeholder(t, "Risk")
		v1 := e.createRequirement(t, entities.RequirementContent{
			Title:          "R",
			Description:    "original",
			StakeholderIDs: []string{sh.ID},
		})

		v2, err := e.requirements.Patch(ctx, e.tx(t), v1.ItemID, entities.RequirementPatch{
			Description:    model.Null[string](),
			StakeholderIDs: model.Null[[]string](),
		}, v1.VersionID)
		require.NoError(t, err)

		assert.Empty(t, v2.Content.Description)
		assert.Empty(t, v2.Content.StakeholderIDs)
		assert.Empty(t, v2.References)
	})

	t.Run("patch under stale lock conflicts", func(t *testing.T) {
		e := newEnv(t)
		v1 := e.createRequirement(t, entities.RequirementContent{Title: "R"})
		_, err := e.requirements.Update(ctx, e.tx(t), v1.ItemID,
			entities.RequirementContent{Title: "R2"}, v1.VersionID)
		require.NoError(t, err)

		_, err = e.requirements.Patch(ctx, e.tx(t), v1.ItemID, entities.RequirementPatch{
			Title: model.Some("stale"),
		}, v1.VersionID)
		assert.True(t, apperrors.IsVersionConflict(err))
	})
}

func TestStore_History(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	v1 := e.createRequirement(t, entities.RequirementContent{Title: "v1"})
	v2, err := e.requirements.Update(ctx, e.tx(t), v1.ItemID,
		entities.RequirementContent{Title: "v2"}, v1.VersionID)
	require.NoError(t, err)
	v3, err := e.requirements.Update(ctx, e.tx(t), v1.ItemID,
		entities.RequirementContent{Title: "v3"}, v2.VersionID)
	require.NoError(t, err)

	t.Run("history is complete and ascending", func(t *testing.T) {
		history, err := e.requirements.GetVersionHistory(ctx, e.tx(t), v1.ItemID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, []string{"v1", "v2", "v3"}, []string{
			history[0].Content.Title, history[1].Content.Title, history[2].Content.Title,
		})
		assert.Equal(t, v3.VersionID, history[2].VersionID)
	})

	t.Run("one historical version by number", func(t *testing.T) {
		rec, err := e.requirements.GetByIDAndVersion(ctx, e.tx(t), v1.ItemID, 2)
		require.NoError(t, err)
		assert.Equal(t, v2.VersionID, rec.VersionID)
		assert.Equal(t, "v2", rec.Content.Title)
	})

	t.Run("unknown version number", func(t *testing.T) {
		_, err := e.requirements.GetByIDAndVersion(ctx, e.tx(t), v1.ItemID, 9)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades every version", func(t *testing.T) {
		e := newEnv(t)
		v1 := e.createRequirement(t, entities.RequirementContent{Title: "R"})
		_, err := e.requirements.Update(ctx, e.tx(t), v1.ItemID,
			entities.RequirementContent{Title: "R2"}, v1.VersionID)
		require.NoError(t, err)

		require.NoError(t, e.requirements.Delete(ctx, e.tx(t), v1.ItemID))

		_, err = e.requirements.GetByID(ctx, e.tx(t), v1.ItemID, store.ReadOptions{})
		assert.True(t, apperrors.IsNotFound(err))

		all, err := e.requirements.GetAll(ctx, e.tx(t), store.ReadOptions{})
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("ledger entries outlive the deleted source", func(t *testing.T) {
		e := newEnv(t)
		target := e.createRequirement(t, entities.RequirementContent{Title: "Target"})
		source := e.createRequirement(t, entities.RequirementContent{
			Title:      "Source",
			RefinesIDs: []string{target.ItemID},
		})

		require.NoError(t, e.requirements.Delete(ctx, e.tx(t), source.ItemID))

		entries, err := e.requirements.Audit().EntriesForTarget(ctx, e.tx(t), target.ItemID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, source.VersionID, entries[0].SourceVersionID)
	})
}

func TestStore_GetAll(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by entity type", func(t *testing.T) {
		e := newEnv(t)
		e.createRequirement(t, entities.RequirementContent{Title: "R"})
		e.createChange(t, entities.ChangeContent{Title: "C"})

		reqs, err := e.requirements.GetAll(ctx, e.tx(t), store.ReadOptions{})
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, "R", reqs[0].Content.Title)

		changes, err := e.changes.GetAll(ctx, e.tx(t), store.ReadOptions{})
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "C", changes[0].Content.Title)
	})

	t.Run("fromWave keeps items anchored at or after the wave", func(t *testing.T) {
		e := newEnv(t)
		early := e.createWave(t, 2026, 1)
		mid := e.createWave(t, 2026, 3)
		late := e.createWave(t, 2027, 1)

		e.createChange(t, entities.ChangeContent{
			Title: "past only",
			Milestones: []model.Milestone{{
				Title:      "done",
				EventTypes: []model.EventType{model.EventPublication},
				WaveID:     early.ID,
			}},
		})
		e.createChange(t, entities.ChangeContent{
			Title: "upcoming",
			Milestones: []model.Milestone{
				{Title: "old", EventTypes: []model.EventType{model.EventReview}, WaveID: early.ID},
				{Title: "new", EventTypes: []model.EventType{model.EventEnforcement}, WaveID: late.ID},
			},
		})
		e.createChange(t, entities.ChangeContent{Title: "unanchored"})

		got, err := e.changes.GetAll(ctx, e.tx(t), store.ReadOptions{FromWaveID: mid.ID})
		require.NoError(t, err)

		titles := make([]string, 0, len(got))
		for _, rec := range got {
			titles = append(titles, rec.Content.Title)
		}
		// "past only" is excluded; items without a wave-bound anchor
		// are kept.
		assert.ElementsMatch(t, []string{"upcoming", "unanchored"}, titles)
	})

	t.Run("fromWave with unknown wave fails", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.changes.GetAll(ctx, e.tx(t), store.ReadOptions{FromWaveID: "nope"})
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestStore_DeleteIsGuardedAgainstConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	rec := e.createRequirement(t, entities.RequirementContent{Title: "doomed"})

	// A writer slips in between the delete's chain walk and its
	// commit; the cascade must fail instead of orphaning the new
	// version.
	tx := &raceTx{Tx: e.tx(t), beforeCommit: func() {
		_, err := e.requirements.Update(ctx, e.tx(t), rec.ItemID,
			entities.RequirementContent{Title: "survived"}, rec.VersionID)
		require.NoError(t, err)
	}}
	err := e.requirements.Delete(ctx, tx, rec.ItemID)
	assert.True(t, apperrors.IsVersionConflict(err))

	// Nothing was deleted; the concurrent write is fully intact.
	latest, err := e.requirements.GetByID(ctx, e.tx(t), rec.ItemID, store.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "survived", latest.Content.Title)
	history, err := e.requirements.GetVersionHistory(ctx, e.tx(t), rec.ItemID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// A retry against the settled state succeeds.
	require.NoError(t, e.requirements.Delete(ctx, e.tx(t), rec.ItemID))
	_, err = e.requirements.GetByID(ctx, e.tx(t), rec.ItemID, store.ReadOptions{})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_Limits(t *testing.T) {
	ctx := context.Background()
	limits := func() store.Limits {
		return store.Limits{MaxReferencesPerItem: 2, MaxHistoryDepth: 2}
	}

	t.Run("reference cap is a validation error", func(t *testing.T) {
		e := newEnvWithLimits(t, limits)
		a := e.createRequirement(t, entities.RequirementContent{Title: "a"})
		b := e.createRequirement(t, entities.RequirementContent{Title: "b"})
		c := e.createRequirement(t, entities.RequirementContent{Title: "c"})

		_, err := e.requirements.Create(ctx, e.tx(t), entities.RequirementContent{
			Title:      "over",
			RefinesIDs: []string{a.ItemID, b.ItemID, c.ItemID},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, apperrors.ViolationsOf(err), "too many references: 3 exceeds the limit of 2")

		_, err = e.requirements.Create(ctx, e.tx(t), entities.RequirementContent{
			Title:      "within",
			RefinesIDs: []string{a.ItemID, b.ItemID},
		})
		require.NoError(t, err)
	})

	t.Run("history depth returns the newest versions only", func(t *testing.T) {
		e := newEnvWithLimits(t, limits)
		rec := e.createRequirement(t, entities.RequirementContent{Title: "v1"})
		v2, err := e.requirements.Update(ctx, e.tx(t), rec.ItemID,
			entities.RequirementContent{Title: "v2"}, rec.VersionID)
		require.NoError(t, err)
		_, err = e.requirements.Update(ctx, e.tx(t), rec.ItemID,
			entities.RequirementContent{Title: "v3"}, v2.VersionID)
		require.NoError(t, err)

		history, err := e.requirements.GetVersionHistory(ctx, e.tx(t), rec.ItemID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "v2", history[0].Content.Title)
		assert.Equal(t, "v3", history[1].Content.Title)
	})
}
