package store

// Limits caps payload and read sizes enforced by the engine. A zero
// value disables the corresponding cap.
type Limits struct {
	// MaxReferencesPerItem caps the total reference ids a single
	// version may carry across all relation kinds.
	MaxReferencesPerItem int
	// MaxMilestonesPerItem caps the embedded milestones of one item.
	MaxMilestonesPerItem int
	// MaxHistoryDepth caps how many versions a history read returns,
	// newest first.
	MaxHistoryDepth int
}

// LimitsFunc supplies the limits in force at call time, so a
// hot-reloaded configuration takes effect without restarting. A nil
// LimitsFunc disables every cap.
type LimitsFunc func() Limits

func resolveLimits(fn LimitsFunc) Limits {
	if fn == nil {
		return Limits{}
	}
	return fn()
}
