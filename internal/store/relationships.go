package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
)

// RelationshipManager resolves reference-id arrays into typed edges
// scoped to one specific item version and validates referential
// integrity before any edge is created. Updates carry
// complete-replacement semantics: the full target set is recomputed
// from the payload; there is no incremental add-one-link primitive.
type RelationshipManager struct {
	reg    *Registry
	logger *zap.Logger
}

// NewRelationshipManager creates a relationship manager backed by the
// collaborator registry.
func NewRelationshipManager(reg *Registry, logger *zap.Logger) *RelationshipManager {
	return &RelationshipManager{reg: reg, logger: logger}
}

// Validate checks every submitted reference against its spec and the
// owning store's existence check. All violations are aggregated into
// one report; validation never fails fast on the first bad id.
func (m *RelationshipManager) Validate(
	ctx context.Context,
	tx graph.Tx,
	itemID string,
	specs []ReferenceSpec,
	refs []model.Reference,
) ([]string, error) {
	specByRelation := make(map[model.RelationType]ReferenceSpec, len(specs))
	for _, spec := range specs {
		specByRelation[spec.Relation] = spec
	}

	var violations []string
	for _, ref := range refs {
		spec, ok := specByRelation[ref.Type]
		if !ok {
			violations = append(violations, fmt.Sprintf("relation %s is not allowed for this entity", ref.Type))
			continue
		}

		if !spec.AllowSelf && itemID != "" && ref.TargetID == itemID {
			violations = append(violations, fmt.Sprintf("%s may not reference the item itself", ref.Type))
			continue
		}

		exists, err := m.reg.Exists(ctx, tx, spec.TargetType, ref.TargetID)
		if err != nil {
			return nil, err
		}
		if !exists {
			violations = append(violations,
				fmt.Sprintf("%s target '%s' does not exist", ref.Type, ref.TargetID))
		}
	}

	return violations, nil
}

// Stage creates the relationship edges of one version. Edges belong
// to exactly that version node and are never shared or edited after
// creation.
func (m *RelationshipManager) Stage(
	ctx context.Context,
	tx graph.Tx,
	sourceVersionID string,
	refs []model.Reference,
	now time.Time,
) error {
	for _, ref := range refs {
		err := tx.PutEdge(ctx, graph.Edge{
			From:  sourceVersionID,
			Label: string(ref.Type),
			To:    ref.TargetID,
			Props: map[string]any{
				"createdAt": formatTime(now),
				"createdBy": tx.UserID(),
			},
		})
		if err != nil {
			return err
		}
	}

	if len(refs) > 0 {
		m.logger.Debug("Staged relationship edges",
			zap.String("sourceVersionID", sourceVersionID),
			zap.Int("count", len(refs)),
		)
	}
	return nil
}

// Read resolves the outgoing references of a version node, one
// relation label per declared spec.
func (m *RelationshipManager) Read(
	ctx context.Context,
	tx graph.Tx,
	versionID string,
	specs []ReferenceSpec,
) ([]model.Reference, error) {
	var refs []model.Reference
	for _, spec := range specs {
		edges, err := tx.EdgesFrom(ctx, versionID, string(spec.Relation))
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			refs = append(refs, model.Reference{Type: spec.Relation, TargetID: e.To})
		}
	}
	return refs, nil
}
