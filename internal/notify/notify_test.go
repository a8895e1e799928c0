package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpi-gardener/greenhouse/internal/alerts"
	"github.com/rpi-gardener/greenhouse/internal/types"
)

type fakeBackend struct {
	name string
	err  error
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Send(ctx context.Context, v alerts.ThresholdViolation) error {
	return f.err
}

func testViolation() alerts.ThresholdViolation {
	return alerts.ThresholdViolation{
		Namespace:     types.NamespaceDHT,
		SensorName:    types.Named(types.MeasureTemperature),
		Value:         35.5,
		Unit:          "c",
		Threshold:     30,
		RecordingTime: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		IsResolved:    false,
	}
}

func TestDispatcherSendNoBackendsIsNoOp(t *testing.T) {
	d := New(zerolog.Nop())
	err := d.Send(context.Background(), testViolation())
	assert.NoError(t, err)
}

func TestDispatcherSendAllSucceed(t *testing.T) {
	d := New(zerolog.Nop(), &fakeBackend{name: "gmail"}, &fakeBackend{name: "slack"})
	err := d.Send(context.Background(), testViolation())
	assert.NoError(t, err)
}

func TestDispatcherSendPartialFailure(t *testing.T) {
	d := New(zerolog.Nop(),
		&fakeBackend{name: "gmail", err: errors.New("smtp down")},
		&fakeBackend{name: "slack"},
	)
	err := d.Send(context.Background(), testViolation())
	require.Error(t, err)

	var partial *PartialNotificationError
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Failures, 1)
	assert.Contains(t, partial.Failures, "gmail")
	assert.Equal(t, 2, partial.Total)
	assert.Contains(t, partial.Error(), "1 of 2 backend(s) failed")
}

func TestDispatcherSendAllFail(t *testing.T) {
	d := New(zerolog.Nop(),
		&fakeBackend{name: "gmail", err: errors.New("smtp down")},
		&fakeBackend{name: "slack", err: errors.New("webhook down")},
	)
	err := d.Send(context.Background(), testViolation())
	require.Error(t, err)

	var partial *PartialNotificationError
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Failures, 2)
}

func TestSensorLabel(t *testing.T) {
	assert.Equal(t, "Temperature", SensorLabel(types.Named(types.MeasureTemperature)))
	assert.Equal(t, "Humidity", SensorLabel(types.Named(types.MeasureHumidity)))
	assert.Equal(t, "Plant 2", SensorLabel(types.Plant(2)))
}

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage(testViolation())
	assert.Contains(t, msg, "Temperature alert!")
	assert.Contains(t, msg, "35.5c")
	assert.Contains(t, msg, "30c")
}
