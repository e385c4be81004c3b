package entities

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/internal/store"
)

// Change statuses.
const (
	ChangeStatusDraft      = "DRAFT"
	ChangeStatusPlanned    = "PLANNED"
	ChangeStatusInProgress = "IN_PROGRESS"
	ChangeStatusComplete   = "COMPLETE"
	ChangeStatusCancelled  = "CANCELLED"
)

// ChangeContent is the full version content of a change. Changes are
// the milestone-bearing entity type: the milestone array is embedded
// in the version content and replaced wholesale with every version,
// which is exactly why milestone keys must be carried forward.
type ChangeContent struct {
	Title         string            `json:"title" validate:"required"`
	Description   string            `json:"description,omitempty"`
	Rationale     string            `json:"rationale,omitempty"`
	Status        string            `json:"status,omitempty" validate:"omitempty,oneof=DRAFT PLANNED IN_PROGRESS COMPLETE CANCELLED"`
	ImpactsIDs    []string          `json:"impactsIds,omitempty"`
	SatisfiesIDs  []string          `json:"satisfiesIds,omitempty"`
	SupersedesIDs []string          `json:"supersedesIds,omitempty"`
	DependsOnIDs  []string          `json:"dependsOnIds,omitempty"`
	Milestones    []model.Milestone `json:"milestones,omitempty"`
}

// ChangePatch is the partial payload for patch operations.
type ChangePatch struct {
	Title         model.Optional[string]            `json:"title"`
	Description   model.Optional[string]            `json:"description"`
	Rationale     model.Optional[string]            `json:"rationale"`
	Status        model.Optional[string]            `json:"status"`
	ImpactsIDs    model.Optional[[]string]          `json:"impactsIds"`
	SatisfiesIDs  model.Optional[[]string]          `json:"satisfiesIds"`
	SupersedesIDs model.Optional[[]string]          `json:"supersedesIds"`
	DependsOnIDs  model.Optional[[]string]          `json:"dependsOnIds"`
	Milestones    model.Optional[[]model.Milestone] `json:"milestones"`
}

// ChangeTraits parameterize the generic store for changes.
type ChangeTraits struct {
	validate *validator.Validate
}

// NewChangeTraits creates the change traits.
func NewChangeTraits() *ChangeTraits {
	return &ChangeTraits{validate: validator.New()}
}

func (t *ChangeTraits) EntityType() string { return TypeChange }

func (t *ChangeTraits) Validate(c ChangeContent) []string {
	violations := validationMessages(t.validate.Struct(c))

	seen := make(map[string]bool, len(c.Milestones))
	for i, m := range c.Milestones {
		prefix := fmt.Sprintf("milestones[%d]: ", i)
		violations = append(violations, m.Validate(prefix)...)
		if m.MilestoneKey != "" {
			if seen[m.MilestoneKey] {
				violations = append(violations, prefix+"duplicate milestoneKey '"+m.MilestoneKey+"'")
			}
			seen[m.MilestoneKey] = true
		}
	}
	return violations
}

// ValidateInStore resolves milestone wave references; they anchor
// content on the timeline rather than becoming relationship edges, so
// the relationship manager never sees them.
func (t *ChangeTraits) ValidateInStore(ctx context.Context, tx graph.Tx, c ChangeContent, reg *store.Registry) ([]string, error) {
	var violations []string
	for i, m := range c.Milestones {
		if m.WaveID == "" {
			continue
		}
		exists, err := reg.Exists(ctx, tx, TypeWave, m.WaveID)
		if err != nil {
			return nil, err
		}
		if !exists {
			violations = append(violations,
				fmt.Sprintf("milestones[%d]: wave '%s' does not exist", i, m.WaveID))
		}
	}
	return violations, nil
}

func (t *ChangeTraits) References(c ChangeContent) []model.Reference {
	var refs []model.Reference
	for _, id := range c.ImpactsIDs {
		refs = append(refs, model.Reference{Type: model.RelationImpacts, TargetID: id})
	}
	for _, id := range c.SatisfiesIDs {
		refs = append(refs, model.Reference{Type: model.RelationSatisfies, TargetID: id})
	}
	for _, id := range c.SupersedesIDs {
		refs = append(refs, model.Reference{Type: model.RelationSupersedes, TargetID: id})
	}
	for _, id := range c.DependsOnIDs {
		refs = append(refs, model.Reference{Type: model.RelationDependsOn, TargetID: id})
	}
	return refs
}

func (t *ChangeTraits) ReferenceSpecs() []store.ReferenceSpec {
	return []store.ReferenceSpec{
		{Relation: model.RelationImpacts, TargetType: TypeRequirement, AllowSelf: true},
		{Relation: model.RelationSatisfies, TargetType: TypeRequirement, AllowSelf: true},
		{Relation: model.RelationSupersedes, TargetType: TypeChange, AllowSelf: false},
		{Relation: model.RelationDependsOn, TargetType: TypeChange, AllowSelf: false},
	}
}

func (t *ChangeTraits) MergePatch(current ChangeContent, patch ChangePatch) (ChangeContent, error) {
	current.Title = patch.Title.Apply(current.Title)
	current.Description = patch.Description.Apply(current.Description)
	current.Rationale = patch.Rationale.Apply(current.Rationale)
	current.Status = patch.Status.Apply(current.Status)
	current.ImpactsIDs = patch.ImpactsIDs.Apply(current.ImpactsIDs)
	current.SatisfiesIDs = patch.SatisfiesIDs.Apply(current.SatisfiesIDs)
	current.SupersedesIDs = patch.SupersedesIDs.Apply(current.SupersedesIDs)
	current.DependsOnIDs = patch.DependsOnIDs.Apply(current.DependsOnIDs)
	current.Milestones = patch.Milestones.Apply(current.Milestones)
	return current, nil
}

// PrepareVersion issues milestone keys. A milestone without a key is
// new and gets one here, exactly once; milestones arriving with keys
// keep them verbatim, so an unrelated update never reassigns a key.
func (t *ChangeTraits) PrepareVersion(_ *ChangeContent, next *ChangeContent) error {
	for i := range next.Milestones {
		if next.Milestones[i].MilestoneKey == "" {
			next.Milestones[i].MilestoneKey = uuid.NewString()
		}
	}
	return nil
}

// AnchorWaveIDs returns the wave ids of all wave-bound milestones;
// the store keeps the change under fromWave filtering when the newest
// of them is at or after the reference wave.
func (t *ChangeTraits) AnchorWaveIDs(c ChangeContent) []string {
	var ids []string
	for _, m := range c.Milestones {
		if m.WaveID != "" {
			ids = append(ids, m.WaveID)
		}
	}
	return ids
}

// ChangeStore is the versioned store bound to change traits.
type ChangeStore = store.Store[ChangeContent, ChangePatch]
