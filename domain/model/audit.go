package model

import "time"

// AuditAction is what happened to a relationship edge.
type AuditAction string

const (
	AuditActionAdd    AuditAction = "ADD"
	AuditActionRemove AuditAction = "REMOVE"
)

// AuditEntry is one immutable record in the relationship audit
// ledger. Entries are written in the same transaction as the edge
// change they describe, so the ledger can never diverge from the
// data, and "what linked to what" is reconstructable for any point
// in time.
type AuditEntry struct {
	ID              string       `json:"id"`
	Timestamp       time.Time    `json:"timestamp"`
	UserID          string       `json:"userId"`
	Action          AuditAction  `json:"action"`
	RelationType    RelationType `json:"relationType"`
	SourceVersionID string       `json:"sourceVersionId"`
	TargetID        string       `json:"targetId"`
}
