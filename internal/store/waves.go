package store

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
)

// WaveStore manages the wave timeline: the totally ordered temporal
// domain (year, quarter) used to anchor milestones and to filter
// milestone-bearing collections chronologically.
type WaveStore struct {
	logger *zap.Logger
}

// NewWaveStore creates the wave store.
func NewWaveStore(logger *zap.Logger) *WaveStore {
	return &WaveStore{logger: logger}
}

// Create validates and persists a wave, committing the transaction.
// The display name is always derived from (year, quarter), never
// accepted from input.
func (s *WaveStore) Create(ctx context.Context, tx graph.Tx, wave model.Wave) (*model.Wave, error) {
	if violations := wave.Validate(); len(violations) > 0 {
		_ = tx.Rollback()
		return nil, apperrors.NewValidation("wave validation failed", violations...)
	}

	if wave.ID == "" {
		wave.ID = uuid.NewString()
	}

	node := graph.Node{
		ID:    wave.ID,
		Label: labelWave,
		Props: map[string]any{
			"year":    wave.Year,
			"quarter": wave.Quarter,
			"date":    formatTime(wave.Date),
		},
	}
	if err := tx.PutNode(ctx, node, &graph.Cond{MustNotExist: true}); err != nil {
		_ = tx.Rollback()
		return nil, apperrors.NewStore("failed to stage wave", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewStore("failed to commit wave", err)
	}

	s.logger.Info("Wave created",
		zap.String("waveID", wave.ID),
		zap.String("name", wave.Name()),
	)
	return &wave, nil
}

// GetByID resolves one wave.
func (s *WaveStore) GetByID(ctx context.Context, tx graph.Tx, id string) (*model.Wave, error) {
	node, ok, err := tx.GetNode(ctx, id)
	if err != nil {
		return nil, apperrors.NewStore("failed to read wave", err)
	}
	if !ok || node.Label != labelWave {
		return nil, apperrors.NewNotFound("wave", id)
	}
	wave := waveFromNode(node)
	return &wave, nil
}

// GetAll returns every wave in timeline order.
func (s *WaveStore) GetAll(ctx context.Context, tx graph.Tx) ([]model.Wave, error) {
	nodes, err := tx.NodesByLabel(ctx, labelWave)
	if err != nil {
		return nil, apperrors.NewStore("failed to list waves", err)
	}

	waves := make([]model.Wave, 0, len(nodes))
	for _, n := range nodes {
		waves = append(waves, waveFromNode(n))
	}
	sort.Slice(waves, func(i, j int) bool {
		if c := waves[i].Compare(waves[j]); c != 0 {
			return c < 0
		}
		return waves[i].ID < waves[j].ID
	})
	return waves, nil
}

// Exists reports whether a wave id resolves, for reference validation.
func (s *WaveStore) Exists(ctx context.Context, tx graph.Tx, id string) (bool, error) {
	node, ok, err := tx.GetNode(ctx, id)
	if err != nil {
		return false, apperrors.NewStore("failed to check wave existence", err)
	}
	return ok && node.Label == labelWave, nil
}

func waveFromNode(n graph.Node) model.Wave {
	return model.Wave{
		ID:      n.ID,
		Year:    propInt(n.Props, "year"),
		Quarter: propInt(n.Props, "quarter"),
		Date:    propTime(n.Props, "date"),
	}
}
