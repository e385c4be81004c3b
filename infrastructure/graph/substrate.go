// Package graph defines the property-graph substrate contract and its
// implementations. The substrate stores labeled nodes and typed edges
// and executes writes transactionally: a Tx stages writes and applies
// them atomically at Commit, guarded by per-node conditions.
package graph

import (
	"context"
	"errors"
)

// ErrConditionFailed is returned by Commit when a staged write's
// condition no longer holds. The store layer maps it onto its
// optimistic-lock conflict.
var ErrConditionFailed = errors.New("graph: commit condition failed")

// Node is a labeled property node. Property values are limited to
// strings, numbers, booleans and times; structured content is stored
// as an encoded string property.
type Node struct {
	ID    string
	Label string
	Props map[string]any
}

// Edge is a directed, typed edge between two nodes. An edge is keyed
// by (From, Label, To); it is never shared between transactions or
// edited after creation.
type Edge struct {
	From  string
	Label string
	To    string
	Props map[string]any
}

// Cond guards a staged node write at commit time. Exactly one of
// MustNotExist or Prop/Equals is used.
type Cond struct {
	// MustNotExist requires that no node with the staged id exists.
	MustNotExist bool
	// Prop / Equals require that the existing node carries the given
	// property value. Used for compare-and-swap on the latest pointer.
	Prop   string
	Equals any
}

// Tx is the unit-of-work handle every store operation executes in. It
// is bound to the caller identity for audit attribution. Writes are
// staged and applied atomically at Commit; reads observe committed
// state only and never block writers.
type Tx interface {
	// PutNode stages a full node write, optionally guarded by cond.
	PutNode(ctx context.Context, n Node, cond *Cond) error
	// DeleteNode stages removal of a node together with all edges
	// incident to it, in either direction, optionally guarded by cond.
	DeleteNode(ctx context.Context, id string, cond *Cond) error
	// CheckNode stages a commit-time condition check on a node the
	// transaction does not otherwise write. The commit fails with
	// ErrConditionFailed if the condition no longer holds.
	CheckNode(ctx context.Context, id string, cond Cond) error
	// PutEdge stages an edge write.
	PutEdge(ctx context.Context, e Edge) error
	// DeleteEdge stages removal of one edge.
	DeleteEdge(ctx context.Context, from, label, to string) error

	// GetNode reads a committed node. The second result reports
	// whether the node exists.
	GetNode(ctx context.Context, id string) (Node, bool, error)
	// NodesByLabel reads all committed nodes carrying the label.
	NodesByLabel(ctx context.Context, label string) ([]Node, error)
	// EdgesFrom reads committed edges leaving a node. An empty label
	// matches every edge label.
	EdgesFrom(ctx context.Context, from, label string) ([]Edge, error)
	// EdgesTo reads committed edges arriving at a node. An empty
	// label matches every edge label.
	EdgesTo(ctx context.Context, to, label string) ([]Edge, error)

	// Commit applies every staged write atomically; if any condition
	// fails, nothing is applied and ErrConditionFailed is returned.
	Commit(ctx context.Context) error
	// Rollback discards all staged writes. Safe to call after Commit.
	Rollback() error
	// UserID returns the caller identity the transaction is bound to.
	UserID() string
}

// Substrate opens transactions against the underlying graph store.
type Substrate interface {
	Begin(ctx context.Context, userID string) (Tx, error)
}
