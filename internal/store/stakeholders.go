package store

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/infrastructure/graph"
)

// Stakeholder is a non-versioned collaborator entity. Requirements
// reference stakeholders; the engine only consults this store's
// existence check when validating those references.
type Stakeholder struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// StakeholderStore is plain single-node CRUD without version history.
type StakeholderStore struct {
	logger *zap.Logger
}

// NewStakeholderStore creates the stakeholder store.
func NewStakeholderStore(logger *zap.Logger) *StakeholderStore {
	return &StakeholderStore{logger: logger}
}

// Create persists a stakeholder and commits.
func (s *StakeholderStore) Create(ctx context.Context, tx graph.Tx, sh Stakeholder) (*Stakeholder, error) {
	if sh.Name == "" {
		_ = tx.Rollback()
		return nil, apperrors.NewValidation("stakeholder validation failed", "name is required")
	}
	if sh.ID == "" {
		sh.ID = uuid.NewString()
	}

	node := graph.Node{
		ID:    sh.ID,
		Label: labelStakeholder,
		Props: map[string]any{
			"name":  sh.Name,
			"email": sh.Email,
		},
	}
	if err := tx.PutNode(ctx, node, &graph.Cond{MustNotExist: true}); err != nil {
		_ = tx.Rollback()
		return nil, apperrors.NewStore("failed to stage stakeholder", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewStore("failed to commit stakeholder", err)
	}

	s.logger.Info("Stakeholder created", zap.String("stakeholderID", sh.ID))
	return &sh, nil
}

// GetByID resolves one stakeholder.
func (s *StakeholderStore) GetByID(ctx context.Context, tx graph.Tx, id string) (*Stakeholder, error) {
	node, ok, err := tx.GetNode(ctx, id)
	if err != nil {
		return nil, apperrors.NewStore("failed to read stakeholder", err)
	}
	if !ok || node.Label != labelStakeholder {
		return nil, apperrors.NewNotFound("stakeholder", id)
	}
	return &Stakeholder{
		ID:    node.ID,
		Name:  propString(node.Props, "name"),
		Email: propString(node.Props, "email"),
	}, nil
}

// GetAll lists stakeholders by name.
func (s *StakeholderStore) GetAll(ctx context.Context, tx graph.Tx) ([]Stakeholder, error) {
	nodes, err := tx.NodesByLabel(ctx, labelStakeholder)
	if err != nil {
		return nil, apperrors.NewStore("failed to list stakeholders", err)
	}

	out := make([]Stakeholder, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Stakeholder{
			ID:    n.ID,
			Name:  propString(n.Props, "name"),
			Email: propString(n.Props, "email"),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Exists reports whether a stakeholder id resolves, for reference
// validation by the versioned stores.
func (s *StakeholderStore) Exists(ctx context.Context, tx graph.Tx, id string) (bool, error) {
	node, ok, err := tx.GetNode(ctx, id)
	if err != nil {
		return false, apperrors.NewStore("failed to check stakeholder existence", err)
	}
	return ok && node.Label == labelStakeholder, nil
}

// Delete removes a stakeholder and commits. Versions that referenced
// it keep their audit history; the edges are detached with the node.
func (s *StakeholderStore) Delete(ctx context.Context, tx graph.Tx, id string) error {
	if _, err := s.GetByID(ctx, tx, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.DeleteNode(ctx, id, nil); err != nil {
		_ = tx.Rollback()
		return apperrors.NewStore("failed to stage stakeholder delete", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewStore("failed to commit stakeholder delete", err)
	}
	s.logger.Info("Stakeholder deleted", zap.String("stakeholderID", id))
	return nil
}
