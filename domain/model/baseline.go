package model

import "time"

// Baseline is an immutable whole-system snapshot: for every versioned
// item existing at capture time it records the version that was
// latest at that instant. Baselines have no update or delete; they
// exist solely for historical replay and auditability.
type Baseline struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	CreatedAt        time.Time         `json:"createdAt"`
	CreatedBy        string            `json:"createdBy"`
	StartsFromWaveID string            `json:"startsFromWaveId,omitempty"`
	Items            map[string]string `json:"items"` // itemID -> captured versionID
}

// VersionFor returns the version id captured for the given item, if
// the item was part of this baseline.
func (b *Baseline) VersionFor(itemID string) (string, bool) {
	versionID, ok := b.Items[itemID]
	return versionID, ok
}
