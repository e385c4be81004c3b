package model

import "fmt"

// EventType classifies what happens at a milestone.
type EventType string

const (
	EventReview      EventType = "REVIEW"
	EventApproval    EventType = "APPROVAL"
	EventPublication EventType = "PUBLICATION"
	EventEnforcement EventType = "ENFORCEMENT"
	EventSunset      EventType = "SUNSET"
)

// Valid reports whether the event type is one of the known kinds.
func (t EventType) Valid() bool {
	switch t {
	case EventReview, EventApproval, EventPublication, EventEnforcement, EventSunset:
		return true
	}
	return false
}

// Milestone is a stable-keyed sub-entity embedded in its parent's
// version content. MilestoneKey is assigned exactly once, at first
// creation, and is copied forward verbatim through every later full
// replacement of the parent version; external references (audit
// entries, deep links) depend on it never being reissued.
type Milestone struct {
	MilestoneKey string      `json:"milestoneKey"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	EventTypes   []EventType `json:"eventTypes"`
	WaveID       string      `json:"waveId,omitempty"`
}

// Validate checks milestone fields and returns itemized violations.
// The prefix names the milestone in aggregated multi-milestone reports.
func (m Milestone) Validate(prefix string) []string {
	var violations []string
	if m.Title == "" {
		violations = append(violations, prefix+"title is required")
	}
	if len(m.EventTypes) == 0 {
		violations = append(violations, prefix+"at least one event type is required")
	}
	for _, et := range m.EventTypes {
		if !et.Valid() {
			violations = append(violations, fmt.Sprintf("%sinvalid event type '%s'", prefix, et))
		}
	}
	return violations
}
