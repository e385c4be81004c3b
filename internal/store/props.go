package store

import "time"

// Node labels of the persisted shape.
const (
	labelItem        = "ITEM"
	labelItemVersion = "ITEM_VERSION"
	labelAudit       = "REL_AUDIT"
	labelBaseline    = "BASELINE"
	labelWave        = "WAVE"
	labelStakeholder = "STAKEHOLDER"
)

// Edge labels besides the five relationship kinds.
const (
	edgeLatest   = "LATEST"
	edgePrevious = "PREVIOUS"
	edgeCaptures = "CAPTURES"
	edgeAudits   = "AUDITS"
	edgeAffects  = "AFFECTS"
)

// Property values round-trip through substrate encodings that do not
// preserve Go types exactly (DynamoDB numbers come back as float64),
// so reads go through these tolerant accessors.

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propInt(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func propTime(props map[string]any, key string) time.Time {
	s := propString(props, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
