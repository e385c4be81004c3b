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

func TestWaveStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create and resolve", func(t *testing.T) {
		e := newEnv(t)
		w := e.createWave(t, 2026, 2)

		got, err := e.waves.GetByID(ctx, e.tx(t), w.ID)
		require.NoError(t, err)
		assert.Equal(t, 2026, got.Year)
		assert.Equal(t, 2, got.Quarter)
		assert.Equal(t, "2026.2", got.Name())
	})

	t.Run("rejects out-of-range slots", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.waves.Create(ctx, e.tx(t), model.Wave{Year: 2024, Quarter: 0})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Len(t, apperrors.ViolationsOf(err), 3)
	})

	t.Run("list follows timeline order regardless of insert order", func(t *testing.T) {
		e := newEnv(t)
		e.createWave(t, 2027, 1)
		e.createWave(t, 2026, 4)
		e.createWave(t, 2026, 2)

		all, err := e.waves.GetAll(ctx, e.tx(t))
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "2026.2", all[0].Name())
		assert.Equal(t, "2026.4", all[1].Name())
		assert.Equal(t, "2027.1", all[2].Name())
	})
}

func TestStakeholderStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create, list and delete", func(t *testing.T) {
		e := newEnv(t)
		b := e.createStakeholder(t, "Beta")
		a := e.createStakeholder(t, "Alpha")

		all, err := e.stakeholders.GetAll(ctx, e.tx(t))
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "Alpha", all[0].Name)
		assert.Equal(t, "Beta", all[1].Name)

		require.NoError(t, e.stakeholders.Delete(ctx, e.tx(t), a.ID))
		_, err = e.stakeholders.GetByID(ctx, e.tx(t), a.ID)
		assert.True(t, apperrors.IsNotFound(err))

		ok, err := e.stakeholders.Exists(ctx, e.tx(t), b.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("name is required", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.stakeholders.Create(ctx, e.tx(t), store.Stakeholder{Email: "x@example.com"})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("deleted stakeholder no longer validates as a target", func(t *testing.T) {
		e := newEnv(t)
		sh := e.createStakeholder(t, "Gone")
		require.NoError(t, e.stakeholders.Delete(ctx, e.tx(t), sh.ID))

		_, err := e.requirements.Create(ctx, e.tx(t), entities.RequirementContent{
			Title:          "R",
			StakeholderIDs: []string{sh.ID},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, apperrors.ViolationsOf(err), "IMPACTS target '"+sh.ID+"' does not exist")
	})
}
