package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpi-gardener/greenhouse/internal/types"
)

func TestNewAlertPayloadActivationCarriesThreshold(t *testing.T) {
	recordingTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	p := NewAlertPayload(types.NamespaceDHT, types.Named(types.MeasureTemperature), 35.5, 30, "c", recordingTime, false)

	require.NotNil(t, p.Threshold)
	assert.Equal(t, 30.0, *p.Threshold)
	assert.False(t, p.IsResolved)
	assert.Equal(t, "2026-01-02 03:04:05", p.RecordingTime)
}

func TestNewAlertPayloadResolutionNullsThreshold(t *testing.T) {
	recordingTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	p := NewAlertPayload(types.NamespaceDHT, types.Named(types.MeasureTemperature), 25.0, 30, "c", recordingTime, true)

	assert.Nil(t, p.Threshold)
	assert.True(t, p.IsResolved)
}

func TestParseRecordingTimeRoundTrips(t *testing.T) {
	recordingTime := time.Date(2026, 6, 15, 12, 30, 0, 0, time.UTC)
	payload := NewDHTReadingPayload(22.5, 55.0, recordingTime)

	parsed, err := ParseRecordingTime(payload.RecordingTime)
	require.NoError(t, err)
	assert.True(t, recordingTime.Equal(parsed))
}
