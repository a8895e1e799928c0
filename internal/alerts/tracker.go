package alerts

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/types"
)

// State is a sensor's committed alert state (spec.md §3).
type State int

const (
	OK State = iota
	InAlert
)

// ThresholdViolation describes a committed state transition, passed to the
// namespace callback (spec.md §4.4 "Callbacks"). Mirrors
// original_source/rpi/lib/alerts.py's ThresholdViolation dataclass, plus
// IsResolved since this tracker also commits resolutions explicitly.
type ThresholdViolation struct {
	Namespace     types.Namespace
	SensorName    types.SensorID
	Value         float64
	Unit          string
	Threshold     float64
	RecordingTime time.Time
	IsResolved    bool
}

// Callback is invoked synchronously on every committed transition. It must
// be cheap; heavy work belongs to the subscriber (spec.md §4.4).
type Callback func(ThresholdViolation)

// defaultConfirmationCount is K in spec.md §4.4 step 3 ("If confirmation_counter
// ≥ K (default 3), commit").
const defaultConfirmationCount = 3

type entry struct {
	state       State
	pending     State
	counter     int
}

// Tracker is the per-process alert state machine (spec.md §4.4). Safe for
// concurrent use: each sensor's readings normally arrive from a single
// polling goroutine, and every access to the state and callback maps goes
// through one mutex.
type Tracker struct {
	log               zerolog.Logger
	confirmationCount int

	mu        sync.Mutex
	entries   map[types.Key]*entry
	callbacks map[types.Namespace]Callback
}

// New creates a Tracker. confirmationCount <= 0 uses the spec default of 3.
func New(log zerolog.Logger, confirmationCount int) *Tracker {
	if confirmationCount <= 0 {
		confirmationCount = defaultConfirmationCount
	}
	return &Tracker{
		log:               log.With().Str("component", "alerts").Logger(),
		confirmationCount: confirmationCount,
		entries:           make(map[types.Key]*entry),
		callbacks:         make(map[types.Namespace]Callback),
	}
}

// RegisterCallback sets the single callback for namespace, replacing any
// previous registration.
func (t *Tracker) RegisterCallback(namespace types.Namespace, cb Callback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks[namespace] = cb
}

// Check feeds one reading's violation verdict through the state machine and
// returns the sensor's state after this call (spec.md §4.4 "Transition
// rules"). ruleViolated must come from rule.Violated(currentState, value) —
// callers fetch GetState first to get the right hysteresis comparison.
func (t *Tracker) Check(
	namespace types.Namespace,
	sensorName types.SensorID,
	value float64,
	unit string,
	threshold float64,
	ruleViolated bool,
	recordingTime time.Time,
) State {
	key := types.Key{Namespace: namespace, Sensor: sensorName}
	desired := OK
	if ruleViolated {
		desired = InAlert
	}

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &entry{state: OK, pending: OK, counter: 0}
		t.entries[key] = e
	}

	var (
		committed  bool
		newState   State
	)

	switch {
	case desired == e.state:
		e.pending = e.state
		e.counter = 0
	case desired == e.pending:
		e.counter++
	default:
		e.pending = desired
		e.counter = 1
	}
	if desired != e.state && e.counter >= t.confirmationCount {
		e.state = desired
		e.counter = 0
		committed = true
	}
	newState = e.state
	cb := t.callbacks[namespace]
	t.mu.Unlock()

	if committed {
		t.log.Info().
			Str("namespace", string(namespace)).
			Str("sensor", sensorName.String()).
			Float64("value", value).
			Bool("in_alert", newState == InAlert).
			Msg("alert state committed")

		if cb != nil {
			cb(ThresholdViolation{
				Namespace:     namespace,
				SensorName:    sensorName,
				Value:         value,
				Unit:          unit,
				Threshold:     threshold,
				RecordingTime: recordingTime,
				IsResolved:    newState == OK,
			})
		}
	}

	return newState
}

// CheckRule evaluates rule against value for (namespace, sensorName), doing
// the GetState-then-Violated-then-Check sequence callers would otherwise
// have to repeat themselves. This is the entry point pollers use.
func (t *Tracker) CheckRule(
	namespace types.Namespace,
	sensorName types.SensorID,
	value float64,
	unit string,
	rule ThresholdRule,
	recordingTime time.Time,
) State {
	current := t.GetState(namespace, sensorName)
	violated := rule.Violated(current, value)
	return t.Check(namespace, sensorName, value, unit, float64(rule.Value), violated, recordingTime)
}

// CheckRules evaluates several candidate rules for one measure (e.g. a MIN
// and a MAX bound on temperature) and checks whichever one is violated
// first, or reports no violation if none are, mirroring
// original_source/rpi/dht/audit.py's audit_reading "first match wins, else
// OK" loop.
func (t *Tracker) CheckRules(
	namespace types.Namespace,
	sensorName types.SensorID,
	value float64,
	unit string,
	rules []ThresholdRule,
	recordingTime time.Time,
) State {
	current := t.GetState(namespace, sensorName)
	for _, rule := range rules {
		if rule.Violated(current, value) {
			return t.Check(namespace, sensorName, value, unit, float64(rule.Value), true, recordingTime)
		}
	}
	return t.Check(namespace, sensorName, value, unit, 0, false, recordingTime)
}

// GetState returns a sensor's current committed state without mutating it;
// callers use this before evaluating a ThresholdRule so the rule's hysteresis
// comparison is correct.
func (t *Tracker) GetState(namespace types.Namespace, sensorName types.SensorID) State {
	key := types.Key{Namespace: namespace, Sensor: sensorName}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return OK
	}
	return e.state
}

// Reset clears state for one sensor, one namespace, or everything, when all
// arguments are respectively non-nil/nil (spec.md §4.4 "Reset" — test-only,
// never invoked in production).
func (t *Tracker) Reset(namespace *types.Namespace, sensorName *types.SensorID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if namespace == nil {
		t.entries = make(map[types.Key]*entry)
		return
	}
	if sensorName == nil {
		for k := range t.entries {
			if k.Namespace == *namespace {
				delete(t.entries, k)
			}
		}
		return
	}
	delete(t.entries, types.Key{Namespace: *namespace, Sensor: *sensorName})
}
