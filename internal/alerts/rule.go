// Package alerts implements the edge-triggered, confirmation-counted,
// hysteresis-protected alert state machine (spec.md §4.4) — the hardest
// single component in the system. Grounded in shape on
// original_source/rpi/lib/alerts.py's AlertTracker, but stricter per
// spec.md §9 Open Question #3: confirmation count and hysteresis are
// per-ThresholdRule fields here, not a parallel per-measure map, and the
// tracker adds the two-stage pending/counter commit the source lacks.
package alerts

// ThresholdKind is which side of a value range a rule bounds (spec.md §3).
type ThresholdKind int

const (
	Min ThresholdKind = iota
	Max
)

// ThresholdRule is one bound on a measure (spec.md §3). Invariant for paired
// MIN+MAX rules on the same measure: MIN.Value < MAX.Value, and each rule's
// hysteresis band must not overlap the other's threshold — callers (the
// config/settings layer) are responsible for enforcing that relation before
// constructing rules; the tracker itself treats each rule independently.
type ThresholdRule struct {
	Kind       ThresholdKind
	Value      int
	Hysteresis int
}

// Violated evaluates whether value breaches rule, using asymmetric
// hysteresis when the sensor is already IN_ALERT (spec.md §4.4 "Hysteresis").
// Implementers must pass the current state so the correct comparison is
// used: a plain threshold for initial activation, a hysteresis-widened one
// to decide whether an active alert clears.
func (r ThresholdRule) Violated(currentState State, value float64) bool {
	threshold := float64(r.Value)

	switch r.Kind {
	case Min:
		if currentState == InAlert {
			threshold += float64(r.Hysteresis)
		}
		return value < threshold
	case Max:
		if currentState == InAlert {
			threshold -= float64(r.Hysteresis)
		}
		return value > threshold
	default:
		return false
	}
}
