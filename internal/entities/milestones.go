package entities

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/internal/store"
)

// MilestoneResult carries one milestone together with the parent
// version that now holds it. Milestone writes are full version writes
// of the parent change, so callers need the advanced pointer to chain
// further updates.
type MilestoneResult struct {
	Milestone model.Milestone      `json:"milestone"`
	Parent    model.VersionPointer `json:"parent"`
}

// MilestoneService exposes single-milestone operations on changes.
// There is no standalone milestone storage: every operation loads the
// parent's latest content, rebuilds the embedded milestone array, and
// writes it back as a new version under the caller's optimistic lock.
type MilestoneService struct {
	changes *ChangeStore
	limits  store.LimitsFunc
	logger  *zap.Logger
}

// NewMilestoneService creates the milestone service. A nil limits
// function disables the per-item milestone cap.
func NewMilestoneService(changes *ChangeStore, limits store.LimitsFunc, logger *zap.Logger) *MilestoneService {
	return &MilestoneService{changes: changes, limits: limits, logger: logger}
}

// Add appends a milestone to the change and writes a new parent
// version. The milestone arrives keyless; the write path issues its
// permanent key, which Add recovers by diffing the key sets before and
// after.
func (s *MilestoneService) Add(ctx context.Context, tx graph.Tx, changeID string, m model.Milestone, expectedVersionID string) (*MilestoneResult, error) {
	if m.MilestoneKey != "" {
		_ = tx.Rollback()
		return nil, apperrors.NewValidation("milestone validation failed", "milestoneKey must not be supplied on add")
	}

	current, err := s.changes.GetByID(ctx, tx, changeID, store.ReadOptions{})
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if s.limits != nil {
		if max := s.limits().MaxMilestonesPerItem; max > 0 && len(current.Content.Milestones) >= max {
			_ = tx.Rollback()
			return nil, apperrors.NewValidation("milestone validation failed",
				fmt.Sprintf("too many milestones: the limit is %d per change", max))
		}
	}

	before := keySet(current.Content.Milestones)
	content := current.Content
	content.Milestones = append(append([]model.Milestone(nil), content.Milestones...), m)

	rec, err := s.changes.Update(ctx, tx, changeID, content, expectedVersionID)
	if err != nil {
		return nil, err
	}

	for _, stored := range rec.Content.Milestones {
		if !before[stored.MilestoneKey] {
			s.logger.Info("Milestone added",
				zap.String("changeID", changeID),
				zap.String("milestoneKey", stored.MilestoneKey),
			)
			return &MilestoneResult{Milestone: stored, Parent: rec.Pointer()}, nil
		}
	}
	return nil, apperrors.NewStore("milestone key was not issued", nil)
}

// Update replaces the fields of one milestone, addressed by its stable
// key, and writes a new parent version. The key itself never changes.
func (s *MilestoneService) Update(ctx context.Context, tx graph.Tx, changeID, milestoneKey string, m model.Milestone, expectedVersionID string) (*MilestoneResult, error) {
	current, err := s.changes.GetByID(ctx, tx, changeID, store.ReadOptions{})
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	content := current.Content
	content.Milestones = append([]model.Milestone(nil), content.Milestones...)

	found := false
	for i, existing := range content.Milestones {
		if existing.MilestoneKey == milestoneKey {
			m.MilestoneKey = milestoneKey
			content.Milestones[i] = m
			found = true
			break
		}
	}
	if !found {
		_ = tx.Rollback()
		return nil, apperrors.NewNotFound("milestone", milestoneKey)
	}

	rec, err := s.changes.Update(ctx, tx, changeID, content, expectedVersionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Milestone updated",
		zap.String("changeID", changeID),
		zap.String("milestoneKey", milestoneKey),
	)
	return &MilestoneResult{Milestone: m, Parent: rec.Pointer()}, nil
}

// Delete removes one milestone by key and writes a new parent version.
// Earlier versions still carry the milestone; only the latest content
// loses it.
func (s *MilestoneService) Delete(ctx context.Context, tx graph.Tx, changeID, milestoneKey string, expectedVersionID string) (*model.VersionPointer, error) {
	current, err := s.changes.GetByID(ctx, tx, changeID, store.ReadOptions{})
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	content := current.Content
	kept := make([]model.Milestone, 0, len(content.Milestones))
	found := false
	for _, existing := range content.Milestones {
		if existing.MilestoneKey == milestoneKey {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		_ = tx.Rollback()
		return nil, apperrors.NewNotFound("milestone", milestoneKey)
	}
	content.Milestones = kept

	rec, err := s.changes.Update(ctx, tx, changeID, content, expectedVersionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Milestone deleted",
		zap.String("changeID", changeID),
		zap.String("milestoneKey", milestoneKey),
	)
	pointer := rec.Pointer()
	return &pointer, nil
}

func keySet(milestones []model.Milestone) map[string]bool {
	keys := make(map[string]bool, len(milestones))
	for _, m := range milestones {
		keys[m.MilestoneKey] = true
	}
	return keys
}
