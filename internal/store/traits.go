package store

import (
	"context"
	"fmt"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
)

// ReferenceSpec declares one reference-id array of an entity's
// content: which relation its edges carry, which entity type the ids
// must resolve to, and whether an item may target itself.
type ReferenceSpec struct {
	Relation   model.RelationType
	TargetType string
	AllowSelf  bool
}

// Traits parameterize the generic versioned store per entity type.
// C is the full version content, P the partial patch payload. A
// single store type composed with a traits value replaces the deep
// per-entity subclass hierarchies this engine descends from.
type Traits[C, P any] interface {
	// EntityType is the stable type tag carried by every item.
	EntityType() string

	// Validate performs pure field validation of a complete payload
	// and returns the itemized violations, all of them.
	Validate(content C) []string

	// ValidateInStore performs validation that needs store lookups
	// beyond relationship-target existence, such as milestone wave
	// resolution. It runs inside the mutating transaction.
	ValidateInStore(ctx context.Context, tx graph.Tx, content C, reg *Registry) ([]string, error)

	// References derives the complete outgoing reference set from the
	// payload. On update this is the full replacement set; ids
	// omitted from the payload are removed, not preserved.
	References(content C) []model.Reference

	// ReferenceSpecs declares the entity's reference arrays.
	ReferenceSpecs() []ReferenceSpec

	// MergePatch overlays a partial payload onto the current content.
	// Fields absent from the patch keep their current value; fields
	// explicitly present (null included) replace it.
	MergePatch(current C, patch P) (C, error)

	// PrepareVersion finalizes the next version's content before it
	// is persisted, given the previous version's content (nil on
	// create). This is where stable sub-entity keys are issued and
	// carried forward.
	PrepareVersion(prev *C, next *C) error

	// AnchorWaveIDs returns the wave ids anchoring the content on the
	// timeline, used for fromWave filtering. Entity types without a
	// temporal anchor return nil.
	AnchorWaveIDs(content C) []string
}

// ExistsFunc checks whether a relationship target exists. Collaborator
// stores expose exactly this and nothing more to the engine.
type ExistsFunc func(ctx context.Context, tx graph.Tx, id string) (bool, error)

// Registry maps entity type tags to their existence checks. The
// engine consults it for every submitted reference id.
type Registry struct {
	exists map[string]ExistsFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{exists: make(map[string]ExistsFunc)}
}

// Register adds the existence check for an entity type.
func (r *Registry) Register(entityType string, fn ExistsFunc) {
	r.exists[entityType] = fn
}

// Exists resolves an id against the store registered for entityType.
func (r *Registry) Exists(ctx context.Context, tx graph.Tx, entityType, id string) (bool, error) {
	fn, ok := r.exists[entityType]
	if !ok {
		return false, fmt.Errorf("store: no existence check registered for entity type '%s'", entityType)
	}
	return fn(ctx, tx, id)
}
