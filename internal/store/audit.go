package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
)

// AuditLog is the append-only ledger of relationship ADD/REMOVE
// events. Entries are staged in the same transaction as the edges
// they describe, so the ledger cannot diverge from the data. Nothing
// ever updates or removes an entry; deleting an item only detaches
// the ledger's pointers, never the entries themselves.
type AuditLog struct {
	logger *zap.Logger
}

// NewAuditLog creates the audit ledger.
func NewAuditLog(logger *zap.Logger) *AuditLog {
	return &AuditLog{logger: logger}
}

// Record stages one ledger entry per added and removed reference of a
// version write, attributed to the transaction's caller identity.
func (l *AuditLog) Record(
	ctx context.Context,
	tx graph.Tx,
	sourceVersionID string,
	added, removed []model.Reference,
	now time.Time,
) error {
	stage := func(action model.AuditAction, ref model.Reference) error {
		entryID := uuid.NewString()
		node := graph.Node{
			ID:    entryID,
			Label: labelAudit,
			Props: map[string]any{
				"timestamp":       formatTime(now),
				"userID":          tx.UserID(),
				"action":          string(action),
				"relationType":    string(ref.Type),
				"sourceVersionID": sourceVersionID,
				"targetID":        ref.TargetID,
			},
		}
		if err := tx.PutNode(ctx, node, nil); err != nil {
			return err
		}
		if err := tx.PutEdge(ctx, graph.Edge{From: entryID, Label: edgeAudits, To: sourceVersionID}); err != nil {
			return err
		}
		return tx.PutEdge(ctx, graph.Edge{From: entryID, Label: edgeAffects, To: ref.TargetID})
	}

	for _, ref := range added {
		if err := stage(model.AuditActionAdd, ref); err != nil {
			return err
		}
	}
	for _, ref := range removed {
		if err := stage(model.AuditActionRemove, ref); err != nil {
			return err
		}
	}

	if len(added)+len(removed) > 0 {
		l.logger.Debug("Staged audit entries",
			zap.String("sourceVersionID", sourceVersionID),
			zap.Int("added", len(added)),
			zap.Int("removed", len(removed)),
		)
	}
	return nil
}

// EntriesForTarget returns every ledger entry affecting the given
// target item, oldest first: the raw material for reconstructing
// "what linked to what" at any point in time.
func (l *AuditLog) EntriesForTarget(ctx context.Context, tx graph.Tx, targetID string) ([]model.AuditEntry, error) {
	edges, err := tx.EdgesTo(ctx, targetID, edgeAffects)
	if err != nil {
		return nil, apperrors.NewStore("failed to read audit ledger", err)
	}
	return l.resolveEntries(ctx, tx, edges)
}

// EntriesForVersion returns every ledger entry describing edges of
// the given source version, oldest first.
func (l *AuditLog) EntriesForVersion(ctx context.Context, tx graph.Tx, versionID string) ([]model.AuditEntry, error) {
	edges, err := tx.EdgesTo(ctx, versionID, edgeAudits)
	if err != nil {
		return nil, apperrors.NewStore("failed to read audit ledger", err)
	}
	return l.resolveEntries(ctx, tx, edges)
}

func (l *AuditLog) resolveEntries(ctx context.Context, tx graph.Tx, edges []graph.Edge) ([]model.AuditEntry, error) {
	entries := make([]model.AuditEntry, 0, len(edges))
	for _, e := range edges {
		node, ok, err := tx.GetNode(ctx, e.From)
		if err != nil {
			return nil, apperrors.NewStore("failed to read audit entry", err)
		}
		if !ok || node.Label != labelAudit {
			continue
		}
		entries = append(entries, model.AuditEntry{
			ID:              node.ID,
			Timestamp:       propTime(node.Props, "timestamp"),
			UserID:          propString(node.Props, "userID"),
			Action:          model.AuditAction(propString(node.Props, "action")),
			RelationType:    model.RelationType(propString(node.Props, "relationType")),
			SourceVersionID: propString(node.Props, "sourceVersionID"),
			TargetID:        propString(node.Props, "targetID"),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
