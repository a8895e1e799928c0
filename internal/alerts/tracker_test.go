package alerts

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpi-gardener/greenhouse/internal/types"
)

func TestThresholdRuleViolated(t *testing.T) {
	tests := []struct {
		name    string
		rule    ThresholdRule
		state   State
		value   float64
		violated bool
	}{
		{"min not violated", ThresholdRule{Kind: Min, Value: 10, Hysteresis: 2}, OK, 12, false},
		{"min violated", ThresholdRule{Kind: Min, Value: 10, Hysteresis: 2}, OK, 9, true},
		{"min in-alert hysteresis still violated", ThresholdRule{Kind: Min, Value: 10, Hysteresis: 2}, InAlert, 11, true},
		{"min in-alert hysteresis cleared", ThresholdRule{Kind: Min, Value: 10, Hysteresis: 2}, InAlert, 13, false},
		{"max not violated", ThresholdRule{Kind: Max, Value: 80, Hysteresis: 5}, OK, 70, false},
		{"max violated", ThresholdRule{Kind: Max, Value: 80, Hysteresis: 5}, OK, 85, true},
		{"max in-alert hysteresis still violated", ThresholdRule{Kind: Max, Value: 80, Hysteresis: 5}, InAlert, 77, true},
		{"max in-alert hysteresis cleared", ThresholdRule{Kind: Max, Value: 80, Hysteresis: 5}, InAlert, 74, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.violated, tt.rule.Violated(tt.state, tt.value))
		})
	}
}

func TestTrackerCheckCommitsAfterConfirmationCount(t *testing.T) {
	log := zerolog.Nop()
	tracker := New(log, 3)

	var events []ThresholdViolation
	tracker.RegisterCallback(types.NamespaceDHT, func(v ThresholdViolation) {
		events = append(events, v)
	})

	sensor := types.Named(types.MeasureTemperature)
	now := time.Now()

	// First two violated checks are only pending, not committed.
	state := tracker.Check(types.NamespaceDHT, sensor, 90, "c", 80, true, now)
	assert.Equal(t, OK, state)
	state = tracker.Check(types.NamespaceDHT, sensor, 91, "c", 80, true, now)
	assert.Equal(t, OK, state)
	require.Empty(t, events)

	// Third consecutive violated check commits the transition.
	state = tracker.Check(types.NamespaceDHT, sensor, 92, "c", 80, true, now)
	assert.Equal(t, InAlert, state)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsResolved)
	assert.Equal(t, 80.0, events[0].Threshold)
}

func TestTrackerCheckResetsCounterOnNonMatchingReading(t *testing.T) {
	log := zerolog.Nop()
	tracker := New(log, 3)

	var events []ThresholdViolation
	tracker.RegisterCallback(types.NamespaceDHT, func(v ThresholdViolation) {
		events = append(events, v)
	})

	sensor := types.Named(types.MeasureTemperature)
	now := time.Now()

	tracker.Check(types.NamespaceDHT, sensor, 90, "c", 80, true, now)
	tracker.Check(types.NamespaceDHT, sensor, 70, "c", 80, false, now) // back in range, resets pending
	state := tracker.Check(types.NamespaceDHT, sensor, 91, "c", 80, true, now)

	assert.Equal(t, OK, state)
	assert.Empty(t, events)
}

func TestTrackerCheckResolvesAfterActivation(t *testing.T) {
	log := zerolog.Nop()
	tracker := New(log, 1)

	var events []ThresholdViolation
	tracker.RegisterCallback(types.NamespacePico, func(v ThresholdViolation) {
		events = append(events, v)
	})

	sensor := types.Plant(1)
	now := time.Now()

	tracker.Check(types.NamespacePico, sensor, 10, "%", 30, true, now)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsResolved)

	tracker.Check(types.NamespacePico, sensor, 40, "%", 30, false, now)
	require.Len(t, events, 2)
	assert.True(t, events[1].IsResolved)
}

func TestTrackerCheckRule(t *testing.T) {
	log := zerolog.Nop()
	tracker := New(log, 1)
	sensor := types.Plant(1)
	rule := ThresholdRule{Kind: Min, Value: 30, Hysteresis: 5}

	state := tracker.CheckRule(types.NamespacePico, sensor, 10, "%", rule, time.Now())
	assert.Equal(t, InAlert, state)
}

func TestTrackerCheckRulesFirstViolatedWins(t *testing.T) {
	log := zerolog.Nop()
	tracker := New(log, 1)
	sensor := types.Named(types.MeasureTemperature)

	rules := []ThresholdRule{
		{Kind: Min, Value: 10, Hysteresis: 2},
		{Kind: Max, Value: 30, Hysteresis: 2},
	}

	var events []ThresholdViolation
	tracker.RegisterCallback(types.NamespaceDHT, func(v ThresholdViolation) {
		events = append(events, v)
	})

	state := tracker.CheckRules(types.NamespaceDHT, sensor, 35, "c", rules, time.Now())
	assert.Equal(t, InAlert, state)
	require.Len(t, events, 1)
	assert.Equal(t, 30.0, events[0].Threshold)
}

func TestTrackerCheckRulesNoneViolated(t *testing.T) {
	log := zerolog.Nop()
	tracker := New(log, 1)
	sensor := types.Named(types.MeasureTemperature)

	rules := []ThresholdRule{
		{Kind: Min, Value: 10, Hysteresis: 2},
		{Kind: Max, Value: 30, Hysteresis: 2},
	}

	state := tracker.CheckRules(types.NamespaceDHT, sensor, 20, "c", rules, time.Now())
	assert.Equal(t, OK, state)
}

func TestTrackerResetClearsState(t *testing.T) {
	log := zerolog.Nop()
	tracker := New(log, 1)
	sensor := types.Named(types.MeasureTemperature)

	tracker.Check(types.NamespaceDHT, sensor, 90, "c", 80, true, time.Now())
	assert.Equal(t, InAlert, tracker.GetState(types.NamespaceDHT, sensor))

	tracker.Reset(nil, nil)
	assert.Equal(t, OK, tracker.GetState(types.NamespaceDHT, sensor))
}
