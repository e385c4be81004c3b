// Package messaging publishes best-effort notifications about
// committed writes. Publication happens after commit and never
// affects the outcome of the write it describes.
package messaging

import (
	"context"
	"time"
)

// Notification kinds.
const (
	KindVersionCreated  = "item.version.created"
	KindItemDeleted     = "item.deleted"
	KindBaselineCreated = "baseline.created"
)

// Notification describes one committed write.
type Notification struct {
	Kind       string    `json:"kind"`
	EntityType string    `json:"entityType,omitempty"`
	ItemID     string    `json:"itemId,omitempty"`
	VersionID  string    `json:"versionId,omitempty"`
	Version    int       `json:"version,omitempty"`
	BaselineID string    `json:"baselineId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher delivers notifications to an external bus.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// NopPublisher drops every notification, for local runs and tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Notification) error { return nil }
