package entities

import (
	"context"

	"github.com/go-playground/validator/v10"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/internal/store"
)

// RequirementContent is the full version content of a requirement.
// The reference-id arrays are resolved into relationship edges on the
// version node; they are replaced wholesale on every update.
type RequirementContent struct {
	Title          string   `json:"title" validate:"required"`
	Description    string   `json:"description,omitempty"`
	Category       string   `json:"category,omitempty"`
	RefinesIDs     []string `json:"refinesIds,omitempty"`
	StakeholderIDs []string `json:"stakeholderIds,omitempty"`
}

// RequirementPatch is the partial payload for patch operations. Every
// field distinguishes absent (keep current) from explicitly null
// (clear) from an explicit value (replace).
type RequirementPatch struct {
	Title          model.Optional[string]   `json:"title"`
	Description    model.Optional[string]   `json:"description"`
	Category       model.Optional[string]   `json:"category"`
	RefinesIDs     model.Optional[[]string] `json:"refinesIds"`
	StakeholderIDs model.Optional[[]string] `json:"stakeholderIds"`
}

// RequirementTraits parameterize the generic store for requirements.
type RequirementTraits struct {
	validate *validator.Validate
}

// NewRequirementTraits creates the requirement traits.
func NewRequirementTraits() *RequirementTraits {
	return &RequirementTraits{validate: validator.New()}
}

func (t *RequirementTraits) EntityType() string { return TypeRequirement }

func (t *RequirementTraits) Validate(c RequirementContent) []string {
	return validationMessages(t.validate.Struct(c))
}

func (t *RequirementTraits) ValidateInStore(context.Context, graph.Tx, RequirementContent, *store.Registry) ([]string, error) {
	return nil, nil
}

func (t *RequirementTraits) References(c RequirementContent) []model.Reference {
	refs := make([]model.Reference, 0, len(c.RefinesIDs)+len(c.StakeholderIDs))
	for _, id := range c.RefinesIDs {
		refs = append(refs, model.Reference{Type: model.RelationRefines, TargetID: id})
	}
	for _, id := range c.StakeholderIDs {
		refs = append(refs, model.Reference{Type: model.RelationImpacts, TargetID: id})
	}
	return refs
}

func (t *RequirementTraits) ReferenceSpecs() []store.ReferenceSpec {
	return []store.ReferenceSpec{
		{Relation: model.RelationRefines, TargetType: TypeRequirement, AllowSelf: false},
		{Relation: model.RelationImpacts, TargetType: TypeStakeholder, AllowSelf: true},
	}
}

func (t *RequirementTraits) MergePatch(current RequirementContent, patch RequirementPatch) (RequirementContent, error) {
	current.Title = patch.Title.Apply(current.Title)
	current.Description = patch.Description.Apply(current.Description)
	current.Category = patch.Category.Apply(current.Category)
	current.RefinesIDs = patch.RefinesIDs.Apply(current.RefinesIDs)
	current.StakeholderIDs = patch.StakeholderIDs.Apply(current.StakeholderIDs)
	return current, nil
}

func (t *RequirementTraits) PrepareVersion(*RequirementContent, *RequirementContent) error {
	return nil
}

// AnchorWaveIDs returns nil: requirements carry no milestones, so
// fromWave filtering never excludes them.
func (t *RequirementTraits) AnchorWaveIDs(RequirementContent) []string { return nil }

// RequirementStore is the versioned store bound to requirement traits.
type RequirementStore = store.Store[RequirementContent, RequirementPatch]
