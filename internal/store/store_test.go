package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/internal/entities"
	"reqtrack-backend/internal/store"
)

// env wires the full engine over the in-memory substrate, mirroring
// the production wiring minus AWS.
type env struct {
	substrate    *graph.Memory
	requirements *entities.RequirementStore
	changes      *entities.ChangeStore
	milestones   *entities.MilestoneService
	baselines    *store.BaselineStore
	waves        *store.WaveStore
	stakeholders *store.StakeholderStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithLimits(t, nil)
}

func newEnvWithLimits(t *testing.T, limits store.LimitsFunc) *env {
	t.Helper()
	logger := zap.NewNop()

	reg := store.NewRegistry()
	waves := store.NewWaveStore(logger)
	stakeholders := store.NewStakeholderStore(logger)
	requirements := store.NewStore[entities.RequirementContent, entities.RequirementPatch](
		entities.NewRequirementTraits(), reg, waves, limits, logger, nil)
	changes := store.NewStore[entities.ChangeContent, entities.ChangePatch](
		entities.NewChangeTraits(), reg, waves, limits, logger, nil)

	reg.Register(entities.TypeRequirement, requirements.Exists)
	reg.Register(entities.TypeChange, changes.Exists)
	reg.Register(entities.TypeStakeholder, stakeholders.Exists)
	reg.Register(entities.TypeWave, waves.Exists)

	return &env{
		substrate:    graph.NewMemory(),
		requirements: requirements,
		changes:      changes,
		milestones:   entities.NewMilestoneService(changes, limits, logger),
		baselines:    store.NewBaselineStore(waves, logger, nil),
		waves:        waves,
		stakeholders: stakeholders,
	}
}

// raceTx runs a hook immediately before the wrapped transaction
// commits, simulating a concurrent writer winning the race between an
// operation's reads and its commit.
type raceTx struct {
	graph.Tx
	beforeCommit func()
}

func (t *raceTx) Commit(ctx context.Context) error {
	if t.beforeCommit != nil {
		hook := t.beforeCommit
		t.beforeCommit = nil
		hook()
	}
	return t.Tx.Commit(ctx)
}

func (e *env) tx(t *testing.T) graph.Tx {
	t.Helper()
	tx, err := e.substrate.Begin(context.Background(), "tester")
	require.NoError(t, err)
	return tx
}

func (e *env) createRequirement(t *testing.T, content entities.RequirementContent) *model.Record[entities.RequirementContent] {
	t.Helper()
	rec, err := e.requirements.Create(context.Background(), e.tx(t), content)
	require.NoError(t, err)
	return rec
}

func (e *env) createChange(t *testing.T, content entities.ChangeContent) *model.Record[entities.ChangeContent] {
	t.Helper()
	rec, err := e.changes.Create(context.Background(), e.tx(t), content)
	require.NoError(t, err)
	return rec
}

func (e *env) createStakeholder(t *testing.T, name string) *store.Stakeholder {
	t.Helper()
	sh, err := e.stakeholders.Create(context.Background(), e.tx(t), store.Stakeholder{Name: name})
	require.NoError(t, err)
	return sh
}

func (e *env) createWave(t *testing.T, year, quarter int) *model.Wave {
	t.Helper()
	w, err := e.waves.Create(context.Background(), e.tx(t), model.Wave{
		Year:    year,
		Quarter: quarter,
		Date:    time.Date(year, time.Month(quarter*3), 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return w
}
