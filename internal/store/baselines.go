package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"
	"reqtrack-backend/pkg/observability"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
)

// CreateBaselineInput is the payload for capturing a baseline.
type CreateBaselineInput struct {
	Title            string `json:"title"`
	StartsFromWaveID string `json:"startsFromWaveId,omitempty"`
}

// BaselineItem is one resolved entry of a baseline's captured
// mapping, used for point-in-time exports. Missing marks entries
// whose captured version no longer resolves because the item was
// deleted after the capture.
type BaselineItem struct {
	ItemID     string          `json:"itemId"`
	EntityType string          `json:"entityType"`
	VersionID  string          `json:"versionId"`
	Version    int             `json:"version"`
	Content    json.RawMessage `json:"content,omitempty"`
	Missing    bool            `json:"missing,omitempty"`
}

// BaselineStore captures immutable {item -> version} snapshots across
// every versioned item. Baselines are written once and never change:
// there is no update or delete, only creation and historical replay.
type BaselineStore struct {
	waves   *WaveStore
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewBaselineStore creates the baseline store.
func NewBaselineStore(waves *WaveStore, logger *zap.Logger, metrics *observability.Metrics) *BaselineStore {
	return &BaselineStore{waves: waves, logger: logger, metrics: metrics}
}

// Create validates the input, enumerates every versioned item,
// records its current latest version, and commits. Each captured
// pointer is guarded by a commit-time condition, so an item that
// advances mid-capture fails the whole commit instead of producing a
// torn snapshot.
func (s *BaselineStore) Create(ctx context.Context, tx graph.Tx, input CreateBaselineInput) (*model.Baseline, error) {
	var violations []string
	if input.Title == "" {
		violations = append(violations, "title is required")
	}
	if input.StartsFromWaveID != "" {
		exists, err := s.waves.Exists(ctx, tx, input.StartsFromWaveID)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if !exists {
			violations = append(violations, "startsFromWaveId '"+input.StartsFromWaveID+"' does not exist")
		}
	}
	if len(violations) > 0 {
		_ = tx.Rollback()
		return nil, apperrors.NewValidation("baseline validation failed", violations...)
	}

	items, err := tx.NodesByLabel(ctx, labelItem)
	if err != nil {
		_ = tx.Rollback()
		return nil, apperrors.NewStore("failed to enumerate items", err)
	}

	now := time.Now().UTC()
	baseline := &model.Baseline{
		ID:               uuid.NewString(),
		Title:            input.Title,
		CreatedAt:        now,
		CreatedBy:        tx.UserID(),
		StartsFromWaveID: input.StartsFromWaveID,
		Items:            make(map[string]string, len(items)),
	}
	for _, n := range items {
		versionID := propString(n.Props, "latestVersionID")
		baseline.Items[n.ID] = versionID
		// The enumeration is not a consistent cut on its own; each
		// captured pointer is re-checked at commit time so a torn
		// snapshot can never be written.
		cond := graph.Cond{Prop: "latestVersionID", Equals: versionID}
		if err := tx.CheckNode(ctx, n.ID, cond); err != nil {
			_ = tx.Rollback()
			return nil, apperrors.NewStore("failed to stage baseline capture check", err)
		}
	}

	// The captured mapping lives as a property of the baseline node,
	// so later item deletions cannot reach into it; the CAPTURES
	// edges exist for graph navigation only.
	mappingJSON, err := json.Marshal(baseline.Items)
	if err != nil {
		_ = tx.Rollback()
		return nil, apperrors.NewStore("failed to encode baseline mapping", err)
	}

	node := graph.Node{
		ID:    baseline.ID,
		Label: labelBaseline,
		Props: map[string]any{
			"title":            baseline.Title,
			"createdAt":        formatTime(now),
			"createdBy":        baseline.CreatedBy,
			"startsFromWaveID": baseline.StartsFromWaveID,
			"items":            string(mappingJSON),
		},
	}
	if err := tx.PutNode(ctx, node, &graph.Cond{MustNotExist: true}); err != nil {
		_ = tx.Rollback()
		return nil, apperrors.NewStore("failed to stage baseline", err)
	}
	for itemID, versionID := range baseline.Items {
		edge := graph.Edge{
			From:  baseline.ID,
			Label: edgeCaptures,
			To:    versionID,
			Props: map[string]any{"itemID": itemID},
		}
		if err := tx.PutEdge(ctx, edge); err != nil {
			_ = tx.Rollback()
			return nil, apperrors.NewStore("failed to stage baseline capture", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, graph.ErrConditionFailed) {
			return nil, apperrors.NewConflict("an item advanced during baseline capture; retry the capture")
		}
		return nil, apperrors.NewStore("failed to commit baseline", err)
	}

	s.metrics.BaselineCreated()
	s.logger.Info("Baseline created",
		zap.String("baselineID", baseline.ID),
		zap.String("title", baseline.Title),
		zap.Int("items", len(baseline.Items)),
		zap.String("userID", tx.UserID()),
	)
	return baseline, nil
}

// GetByID resolves one baseline with its captured mapping.
func (s *BaselineStore) GetByID(ctx context.Context, tx graph.Tx, id string) (*model.Baseline, error) {
	return readBaseline(ctx, tx, id)
}

// GetAll returns every baseline, oldest first.
func (s *BaselineStore) GetAll(ctx context.Context, tx graph.Tx) ([]model.Baseline, error) {
	nodes, err := tx.NodesByLabel(ctx, labelBaseline)
	if err != nil {
		return nil, apperrors.NewStore("failed to list baselines", err)
	}

	baselines := make([]model.Baseline, 0, len(nodes))
	for _, n := range nodes {
		b, err := baselineFromNode(n)
		if err != nil {
			return nil, err
		}
		baselines = append(baselines, *b)
	}
	sort.Slice(baselines, func(i, j int) bool {
		if baselines[i].CreatedAt.Equal(baselines[j].CreatedAt) {
			return baselines[i].ID < baselines[j].ID
		}
		return baselines[i].CreatedAt.Before(baselines[j].CreatedAt)
	})
	return baselines, nil
}

// GetBaselineItems resolves each captured (item, version) pair back
// into its content view for point-in-time export. Entries whose
// version was deleted after the capture are reported as missing
// instead of failing the whole export.
func (s *BaselineStore) GetBaselineItems(ctx context.Context, tx graph.Tx, id string) ([]BaselineItem, error) {
	baseline, err := readBaseline(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	items := make([]BaselineItem, 0, len(baseline.Items))
	for itemID, versionID := range baseline.Items {
		entry := BaselineItem{ItemID: itemID, VersionID: versionID}

		node, ok, err := tx.GetNode(ctx, versionID)
		if err != nil {
			return nil, apperrors.NewStore("failed to resolve baseline item", err)
		}
		if !ok || node.Label != labelItemVersion {
			entry.Missing = true
			items = append(items, entry)
			continue
		}

		entry.EntityType = propString(node.Props, "entityType")
		entry.Version = propInt(node.Props, "version")
		if raw := propString(node.Props, "content"); raw != "" {
			entry.Content = json.RawMessage(raw)
		}
		items = append(items, entry)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items, nil
}

// Update does not exist for baselines.
func (s *BaselineStore) Update(context.Context, graph.Tx, string) error {
	return apperrors.NewUnsupported("baseline update")
}

// Delete does not exist for baselines.
func (s *BaselineStore) Delete(context.Context, graph.Tx, string) error {
	return apperrors.NewUnsupported("baseline delete")
}

func readBaseline(ctx context.Context, tx graph.Tx, id string) (*model.Baseline, error) {
	node, ok, err := tx.GetNode(ctx, id)
	if err != nil {
		return nil, apperrors.NewStore("failed to read baseline", err)
	}
	if !ok || node.Label != labelBaseline {
		return nil, apperrors.NewNotFound("baseline", id)
	}
	return baselineFromNode(node)
}

func baselineFromNode(n graph.Node) (*model.Baseline, error) {
	baseline := &model.Baseline{
		ID:               n.ID,
		Title:            propString(n.Props, "title"),
		CreatedAt:        propTime(n.Props, "createdAt"),
		CreatedBy:        propString(n.Props, "createdBy"),
		StartsFromWaveID: propString(n.Props, "startsFromWaveID"),
		Items:            make(map[string]string),
	}
	if raw := propString(n.Props, "items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &baseline.Items); err != nil {
			return nil, apperrors.NewStore("failed to decode baseline mapping", err)
		}
	}
	return baseline, nil
}
