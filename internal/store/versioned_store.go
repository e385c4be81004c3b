package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"
	"reqtrack-backend/pkg/observability"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
)

// ReadOptions select how an item resolves: with a BaselineID the
// version captured in that baseline is returned instead of the
// latest; with a FromWaveID list reads exclude items whose temporal
// anchor falls entirely before the wave. The two modes combine.
type ReadOptions struct {
	BaselineID string
	FromWaveID string
}

// Store is the generic versioned-item engine. One Store instance per
// entity type, composed with a Traits value instead of inheriting
// per-entity subclasses.
//
// Items are never content-mutated: every write creates a new
// immutable version, advances the single latest pointer under an
// optimistic compare-and-swap, recomputes the relationship edge set
// from the payload, and appends the matching audit ledger entries,
// all inside one transaction. Either everything commits or nothing
// does; no partial state is ever observable.
type Store[C, P any] struct {
	traits   Traits[C, P]
	rels     *RelationshipManager
	audit    *AuditLog
	reg      *Registry
	waves    *WaveStore
	limitsFn LimitsFunc
	logger   *zap.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// NewStore creates the versioned store for one entity type.
func NewStore[C, P any](
	traits Traits[C, P],
	reg *Registry,
	waves *WaveStore,
	limits LimitsFunc,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Store[C, P] {
	return &Store[C, P]{
		traits:   traits,
		rels:     NewRelationshipManager(reg, logger),
		audit:    NewAuditLog(logger),
		reg:      reg,
		waves:    waves,
		limitsFn: limits,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("reqtrack-backend/internal/store"),
	}
}

// EntityType returns the stable type tag of the entities this store manages.
func (s *Store[C, P]) EntityType() string { return s.traits.EntityType() }

// Audit exposes the relationship audit ledger for reconstruction queries.
func (s *Store[C, P]) Audit() *AuditLog { return s.audit }

// Create persists a new item with its first version, resolves the
// payload's reference arrays into relationship edges, and commits the
// transaction. Every invalid reference id is reported in one
// aggregated validation error, not just the first.
func (s *Store[C, P]) Create(ctx context.Context, tx graph.Tx, content C) (*model.Record[C], error) {
	ctx, span := s.tracer.Start(ctx, s.traits.EntityType()+".create")
	defer span.End()

	if err := s.traits.PrepareVersion(nil, &content); err != nil {
		return nil, s.abort(tx, err)
	}
	refs := s.traits.References(content)
	if err := s.validate(ctx, tx, "", content, refs); err != nil {
		return nil, s.abort(tx, err)
	}

	now := time.Now().UTC()
	itemID := uuid.NewString()
	versionID := uuid.NewString()

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to encode content", err))
	}

	itemNode := graph.Node{
		ID:    itemID,
		Label: labelItem,
		Props: map[string]any{
			"entityType":      s.traits.EntityType(),
			"createdAt":       formatTime(now),
			"latestVersionID": versionID,
			"latestVersion":   1,
		},
	}
	if err := tx.PutNode(ctx, itemNode, &graph.Cond{MustNotExist: true}); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage item", err))
	}
	if err := s.stageVersion(ctx, tx, itemID, versionID, 1, contentJSON, now); err != nil {
		return nil, s.abort(tx, err)
	}
	if err := tx.PutEdge(ctx, graph.Edge{From: itemID, Label: edgeLatest, To: versionID}); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage latest pointer", err))
	}
	if err := s.rels.Stage(ctx, tx, versionID, refs, now); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage relationships", err))
	}
	if err := s.audit.Record(ctx, tx, versionID, refs, nil, now); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage audit entries", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewStore("failed to commit create", err)
	}

	s.recordWrite("create", refs, nil)
	s.logger.Info("Item created",
		zap.String("entityType", s.traits.EntityType()),
		zap.String("itemID", itemID),
		zap.String("versionID", versionID),
		zap.String("userID", tx.UserID()),
	)

	return &model.Record[C]{
		ItemID:     itemID,
		EntityType: s.traits.EntityType(),
		VersionID:  versionID,
		Version:    1,
		CreatedAt:  now,
		CreatedBy:  tx.UserID(),
		Content:    content,
		References: refs,
	}, nil
}

// Update performs the compare-and-swap version write. If the caller's
// expectedVersionID is not the current latest, it fails with a
// version conflict. No retry, no merge; the caller must re-fetch and
// resubmit. On success it creates version n+1 with the complete
// relationship set recomputed from the payload and advances the
// latest pointer. The superseded version stays immutable and
// reachable via history.
func (s *Store[C, P]) Update(ctx context.Context, tx graph.Tx, itemID string, content C, expectedVersionID string) (*model.Record[C], error) {
	ctx, span := s.tracer.Start(ctx, s.traits.EntityType()+".update")
	defer span.End()

	item, err := s.readItem(ctx, tx, itemID)
	if err != nil {
		return nil, s.abort(tx, err)
	}
	if item.LatestVersionID != expectedVersionID {
		s.metrics.VersionConflict(s.traits.EntityType())
		return nil, s.abort(tx, apperrors.NewVersionConflict(itemID, expectedVersionID, item.LatestVersionID))
	}

	prev, err := s.readRecord(ctx, tx, item, item.LatestVersionID)
	if err != nil {
		return nil, s.abort(tx, err)
	}

	if err := s.traits.PrepareVersion(&prev.Content, &content); err != nil {
		return nil, s.abort(tx, err)
	}
	refs := s.traits.References(content)
	if err := s.validate(ctx, tx, itemID, content, refs); err != nil {
		return nil, s.abort(tx, err)
	}

	now := time.Now().UTC()
	newVersionID := uuid.NewString()
	newVersion := item.LatestVersion + 1

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to encode content", err))
	}

	if err := s.stageVersion(ctx, tx, itemID, newVersionID, newVersion, contentJSON, now); err != nil {
		return nil, s.abort(tx, err)
	}
	if err := tx.PutEdge(ctx, graph.Edge{From: newVersionID, Label: edgePrevious, To: item.LatestVersionID}); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage version chain", err))
	}
	if err := tx.DeleteEdge(ctx, itemID, edgeLatest, item.LatestVersionID); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage latest pointer", err))
	}
	if err := tx.PutEdge(ctx, graph.Edge{From: itemID, Label: edgeLatest, To: newVersionID}); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage latest pointer", err))
	}

	// The item node is rewritten under a condition on the pointer it
	// had when this transaction read it. Two racing updates both pass
	// the pre-check above; the condition lets exactly one commit.
	itemNode := graph.Node{
		ID:    itemID,
		Label: labelItem,
		Props: map[string]any{
			"entityType":      s.traits.EntityType(),
			"createdAt":       formatTime(item.CreatedAt),
			"latestVersionID": newVersionID,
			"latestVersion":   newVersion,
		},
	}
	cond := &graph.Cond{Prop: "latestVersionID", Equals: expectedVersionID}
	if err := tx.PutNode(ctx, itemNode, cond); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage item", err))
	}

	if err := s.rels.Stage(ctx, tx, newVersionID, refs, now); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage relationships", err))
	}
	added, removed := model.DiffReferences(prev.References, refs)
	if err := s.audit.Record(ctx, tx, newVersionID, added, removed, now); err != nil {
		return nil, s.abort(tx, apperrors.NewStore("failed to stage audit entries", err))
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, graph.ErrConditionFailed) {
			s.metrics.VersionConflict(s.traits.EntityType())
			return nil, apperrors.NewVersionConflict(itemID, expectedVersionID, "")
		}
		return nil, apperrors.NewStore("failed to commit update", err)
	}

	s.recordWrite("update", added, removed)
	s.logger.Info("Item updated",
		zap.String("entityType", s.traits.EntityType()),
		zap.String("itemID", itemID),
		zap.String("versionID", newVersionID),
		zap.Int("version", newVersion),
		zap.String("userID", tx.UserID()),
	)

	return &model.Record[C]{
		ItemID:     itemID,
		EntityType: s.traits.EntityType(),
		VersionID:  newVersionID,
		Version:    newVersion,
		CreatedAt:  now,
		CreatedBy:  tx.UserID(),
		Content:    content,
		References: refs,
	}, nil
}

// Patch overlays a partial payload onto the current latest content
// and delegates to Update under the same optimistic lock. Fields
// absent from the patch keep their current value; fields explicitly
// present, null included, replace it.
func (s *Store[C, P]) Patch(ctx context.Context, tx graph.Tx, itemID string, patch P, expectedVersionID string) (*model.Record[C], error) {
	ctx, span := s.tracer.Start(ctx, s.traits.EntityType()+".patch")
	defer span.End()

	item, err := s.readItem(ctx, tx, itemID)
	if err != nil {
		return nil, s.abort(tx, err)
	}
	current, err := s.readRecord(ctx, tx, item, item.LatestVersionID)
	if err != nil {
		return nil, s.abort(tx, err)
	}

	merged, err := s.traits.MergePatch(current.Content, patch)
	if err != nil {
		return nil, s.abort(tx, err)
	}
	return s.Update(ctx, tx, itemID, merged, expectedVersionID)
}

// GetByID resolves an item. With no options the latest version is
// returned; with a BaselineID the version captured in that baseline
// (not found if the item is absent from the baseline's mapping).
func (s *Store[C, P]) GetByID(ctx context.Context, tx graph.Tx, itemID string, opts ReadOptions) (*model.Record[C], error) {
	item, err := s.readItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	if opts.BaselineID != "" {
		baseline, err := readBaseline(ctx, tx, opts.BaselineID)
		if err != nil {
			return nil, err
		}
		versionID, ok := baseline.VersionFor(itemID)
		if !ok {
			return nil, apperrors.NewNotFound("item in baseline "+opts.BaselineID, itemID)
		}
		return s.readRecord(ctx, tx, item, versionID)
	}

	return s.readRecord(ctx, tx, item, item.LatestVersionID)
}

// GetByIDAndVersion resolves one historical version by its number.
func (s *Store[C, P]) GetByIDAndVersion(ctx context.Context, tx graph.Tx, itemID string, version int) (*model.Record[C], error) {
	item, err := s.readItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	versionID := item.LatestVersionID
	for versionID != "" {
		rec, err := s.readRecord(ctx, tx, item, versionID)
		if err != nil {
			return nil, err
		}
		if rec.Version == version {
			return rec, nil
		}
		versionID, err = s.previousVersionID(ctx, tx, versionID)
		if err != nil {
			return nil, err
		}
	}
	return nil, apperrors.NewNotFound(s.traits.EntityType()+" version", itemID)
}

// GetVersionHistory returns the item's versions, ascending. All of
// them are immutable. When a history-depth limit is configured, only
// the newest versions up to that depth are returned.
func (s *Store[C, P]) GetVersionHistory(ctx context.Context, tx graph.Tx, itemID string) ([]model.Record[C], error) {
	item, err := s.readItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	maxDepth := resolveLimits(s.limitsFn).MaxHistoryDepth

	var records []model.Record[C]
	versionID := item.LatestVersionID
	for versionID != "" {
		if maxDepth > 0 && len(records) == maxDepth {
			break
		}
		rec, err := s.readRecord(ctx, tx, item, versionID)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
		versionID, err = s.previousVersionID(ctx, tx, versionID)
		if err != nil {
			return nil, err
		}
	}

	// The chain walks newest-first; history is served ascending.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// GetAll lists items of this entity type. Baseline mode resolves each
// item to its captured version, skipping items the baseline never
// saw. FromWave mode excludes items whose temporal anchor falls
// entirely before the reference wave; items without a wave-bound
// anchor are kept.
func (s *Store[C, P]) GetAll(ctx context.Context, tx graph.Tx, opts ReadOptions) ([]model.Record[C], error) {
	var baseline *model.Baseline
	if opts.BaselineID != "" {
		b, err := readBaseline(ctx, tx, opts.BaselineID)
		if err != nil {
			return nil, err
		}
		baseline = b
	}

	var refWave *model.Wave
	if opts.FromWaveID != "" {
		w, err := s.waves.GetByID(ctx, tx, opts.FromWaveID)
		if err != nil {
			return nil, err
		}
		refWave = w
	}

	nodes, err := tx.NodesByLabel(ctx, labelItem)
	if err != nil {
		return nil, apperrors.NewStore("failed to list items", err)
	}

	var records []model.Record[C]
	for _, n := range nodes {
		if propString(n.Props, "entityType") != s.traits.EntityType() {
			continue
		}
		item := s.itemFromNode(n)

		versionID := item.LatestVersionID
		if baseline != nil {
			captured, ok := baseline.VersionFor(item.ID)
			if !ok {
				continue
			}
			versionID = captured
		}

		rec, err := s.readRecord(ctx, tx, item, versionID)
		if err != nil {
			// A baseline may capture versions of since-deleted items.
			if baseline != nil && apperrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		if refWave != nil {
			keep, err := s.anchoredAtOrAfter(ctx, tx, rec.Content, *refWave)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}

		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ItemID < records[j].ItemID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes the item and cascades all its versions and their
// edges, then commits. Existing baselines that captured the deleted
// versions keep their mapping untouched; resolving those entries
// later reports them as missing rather than failing the whole read.
func (s *Store[C, P]) Delete(ctx context.Context, tx graph.Tx, itemID string) error {
	ctx, span := s.tracer.Start(ctx, s.traits.EntityType()+".delete")
	defer span.End()

	item, err := s.readItem(ctx, tx, itemID)
	if err != nil {
		return s.abort(tx, err)
	}

	var versionIDs []string
	versionID := item.LatestVersionID
	for versionID != "" {
		versionIDs = append(versionIDs, versionID)
		versionID, err = s.previousVersionID(ctx, tx, versionID)
		if err != nil {
			return s.abort(tx, err)
		}
	}

	for _, vid := range versionIDs {
		if err := tx.DeleteNode(ctx, vid, nil); err != nil {
			return s.abort(tx, apperrors.NewStore("failed to stage version delete", err))
		}
	}
	// Guard the cascade against a concurrent version write: if the
	// latest pointer moved after the chain walk, the new version would
	// survive the delete as an orphan.
	cond := &graph.Cond{Prop: "latestVersionID", Equals: item.LatestVersionID}
	if err := tx.DeleteNode(ctx, itemID, cond); err != nil {
		return s.abort(tx, apperrors.NewStore("failed to stage item delete", err))
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, graph.ErrConditionFailed) {
			s.metrics.VersionConflict(s.traits.EntityType())
			return apperrors.NewVersionConflict(itemID, item.LatestVersionID, "")
		}
		return apperrors.NewStore("failed to commit delete", err)
	}

	s.logger.Info("Item deleted",
		zap.String("entityType", s.traits.EntityType()),
		zap.String("itemID", itemID),
		zap.Int("versions", len(versionIDs)),
		zap.String("userID", tx.UserID()),
	)
	return nil
}

// Exists reports whether an item of this entity type exists, exposed
// to sibling stores for relationship-target validation.
func (s *Store[C, P]) Exists(ctx context.Context, tx graph.Tx, id string) (bool, error) {
	node, ok, err := tx.GetNode(ctx, id)
	if err != nil {
		return false, apperrors.NewStore("failed to check item existence", err)
	}
	return ok && node.Label == labelItem && propString(node.Props, "entityType") == s.traits.EntityType(), nil
}

// --- internals ---

func (s *Store[C, P]) abort(tx graph.Tx, err error) error {
	_ = tx.Rollback()
	return err
}

func (s *Store[C, P]) validate(ctx context.Context, tx graph.Tx, itemID string, content C, refs []model.Reference) error {
	violations := s.traits.Validate(content)

	if lim := resolveLimits(s.limitsFn); lim.MaxReferencesPerItem > 0 && len(refs) > lim.MaxReferencesPerItem {
		violations = append(violations,
			fmt.Sprintf("too many references: %d exceeds the limit of %d", len(refs), lim.MaxReferencesPerItem))
	}

	storeViolations, err := s.traits.ValidateInStore(ctx, tx, content, s.reg)
	if err != nil {
		return apperrors.NewStore("validation lookup failed", err)
	}
	violations = append(violations, storeViolations...)

	refViolations, err := s.rels.Validate(ctx, tx, itemID, s.traits.ReferenceSpecs(), refs)
	if err != nil {
		return apperrors.NewStore("reference validation failed", err)
	}
	violations = append(violations, refViolations...)

	if len(violations) > 0 {
		return apperrors.NewValidation(s.traits.EntityType()+" validation failed", violations...)
	}
	return nil
}

func (s *Store[C, P]) stageVersion(ctx context.Context, tx graph.Tx, itemID, versionID string, version int, contentJSON []byte, now time.Time) error {
	node := graph.Node{
		ID:    versionID,
		Label: labelItemVersion,
		Props: map[string]any{
			"itemID":     itemID,
			"entityType": s.traits.EntityType(),
			"version":    version,
			"content":    string(contentJSON),
			"createdAt":  formatTime(now),
			"createdBy":  tx.UserID(),
		},
	}
	if err := tx.PutNode(ctx, node, nil); err != nil {
		return apperrors.NewStore("failed to stage version", err)
	}
	return nil
}

func (s *Store[C, P]) readItem(ctx context.Context, tx graph.Tx, itemID string) (*model.Item, error) {
	node, ok, err := tx.GetNode(ctx, itemID)
	if err != nil {
		return nil, apperrors.NewStore("failed to read item", err)
	}
	if !ok || node.Label != labelItem || propString(node.Props, "entityType") != s.traits.EntityType() {
		return nil, apperrors.NewNotFound(s.traits.EntityType(), itemID)
	}
	item := s.itemFromNode(node)
	return item, nil
}

func (s *Store[C, P]) itemFromNode(n graph.Node) *model.Item {
	return &model.Item{
		ID:              n.ID,
		EntityType:      propString(n.Props, "entityType"),
		CreatedAt:       propTime(n.Props, "createdAt"),
		LatestVersionID: propString(n.Props, "latestVersionID"),
		LatestVersion:   propInt(n.Props, "latestVersion"),
	}
}

func (s *Store[C, P]) readRecord(ctx context.Context, tx graph.Tx, item *model.Item, versionID string) (*model.Record[C], error) {
	node, ok, err := tx.GetNode(ctx, versionID)
	if err != nil {
		return nil, apperrors.NewStore("failed to read version", err)
	}
	if !ok || node.Label != labelItemVersion || propString(node.Props, "itemID") != item.ID {
		return nil, apperrors.NewNotFound(s.traits.EntityType()+" version", versionID)
	}

	var content C
	if raw := propString(node.Props, "content"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &content); err != nil {
			return nil, apperrors.NewStore("failed to decode version content", err)
		}
	}

	refs, err := s.rels.Read(ctx, tx, versionID, s.traits.ReferenceSpecs())
	if err != nil {
		return nil, apperrors.NewStore("failed to read relationships", err)
	}

	return &model.Record[C]{
		ItemID:     item.ID,
		EntityType: s.traits.EntityType(),
		VersionID:  versionID,
		Version:    propInt(node.Props, "version"),
		CreatedAt:  propTime(node.Props, "createdAt"),
		CreatedBy:  propString(node.Props, "createdBy"),
		Content:    content,
		References: refs,
	}, nil
}

func (s *Store[C, P]) previousVersionID(ctx context.Context, tx graph.Tx, versionID string) (string, error) {
	edges, err := tx.EdgesFrom(ctx, versionID, edgePrevious)
	if err != nil {
		return "", apperrors.NewStore("failed to walk version chain", err)
	}
	if len(edges) == 0 {
		return "", nil
	}
	return edges[0].To, nil
}

// anchoredAtOrAfter keeps content whose newest wave-bound anchor is
// at or after the reference wave. Content without a wave-bound
// anchor is kept; anchors whose wave no longer resolves are ignored.
func (s *Store[C, P]) anchoredAtOrAfter(ctx context.Context, tx graph.Tx, content C, ref model.Wave) (bool, error) {
	anchorIDs := s.traits.AnchorWaveIDs(content)
	if len(anchorIDs) == 0 {
		return true, nil
	}

	var newest *model.Wave
	for _, id := range anchorIDs {
		wave, err := s.waves.GetByID(ctx, tx, id)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return false, err
		}
		if newest == nil || newest.Before(*wave) {
			newest = wave
		}
	}
	if newest == nil {
		return true, nil
	}
	return !newest.Before(ref), nil
}

func (s *Store[C, P]) recordWrite(operation string, added, removed []model.Reference) {
	s.metrics.VersionWritten(s.traits.EntityType(), operation)
	for _, ref := range added {
		s.metrics.RelationshipChanged(string(ref.Type), string(model.AuditActionAdd))
	}
	for _, ref := range removed {
		s.metrics.RelationshipChanged(string(ref.Type), string(model.AuditActionRemove))
	}
}
