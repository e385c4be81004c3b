// Package model defines the core value types of the versioned item
// engine: items, immutable item versions, relationship references,
// baselines, waves, milestones and the relationship audit ledger.
package model

import "time"

// Item is the stable identity of a versioned entity. The item itself
// is never content-mutated; all content lives on its versions. After
// creation an item always owns exactly one latest-version pointer.
type Item struct {
	ID              string
	EntityType      string
	CreatedAt       time.Time
	LatestVersionID string
	LatestVersion   int
}

// VersionPointer identifies one concrete version of an item. Mutating
// operations return the new pointer because the caller's previously
// held version id is stale after any successful write.
type VersionPointer struct {
	ItemID    string `json:"itemId"`
	VersionID string `json:"versionId"`
	Version   int    `json:"version"`
}

// Record is one fully resolved item version: its identity, content
// and the relationship references scoped to exactly this version.
// Records are immutable snapshots; history is a chain of them.
type Record[C any] struct {
	ItemID     string      `json:"itemId"`
	EntityType string      `json:"entityType"`
	VersionID  string      `json:"versionId"`
	Version    int         `json:"version"`
	CreatedAt  time.Time   `json:"createdAt"`
	CreatedBy  string      `json:"createdBy"`
	Content    C           `json:"content"`
	References []Reference `json:"references"`
}

// Pointer returns the version pointer of this record.
func (r *Record[C]) Pointer() VersionPointer {
	return VersionPointer{ItemID: r.ItemID, VersionID: r.VersionID, Version: r.Version}
}
