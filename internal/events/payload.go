package events

import (
	"time"

	"github.com/rpi-gardener/greenhouse/internal/types"
)

const recordingTimeLayout = "2006-01-02 15:04:05"

// DHTReadingPayload is the bit-exact schema published on TopicDHTReading
// (spec.md §4.3).
type DHTReadingPayload struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	RecordingTime string  `json:"recording_time"`
	EpochMS       int64   `json:"epoch"`
}

func NewDHTReadingPayload(temperature, humidity float64, recordingTime time.Time) DHTReadingPayload {
	return DHTReadingPayload{
		Temperature:   temperature,
		Humidity:      humidity,
		RecordingTime: recordingTime.UTC().Format(recordingTimeLayout),
		EpochMS:       recordingTime.UnixMilli(),
	}
}

// PicoReadingPayload is the bit-exact schema published on TopicPicoReading;
// the topic carries either a single object or an array of these (spec.md §4.3).
type PicoReadingPayload struct {
	PlantID       int     `json:"plant_id"`
	Moisture      float64 `json:"moisture"`
	RecordingTime string  `json:"recording_time"`
	EpochMS       int64   `json:"epoch"`
}

func NewPicoReadingPayload(plantID int, moisture float64, recordingTime time.Time) PicoReadingPayload {
	return PicoReadingPayload{
		PlantID:       plantID,
		Moisture:      moisture,
		RecordingTime: recordingTime.UTC().Format(recordingTimeLayout),
		EpochMS:       recordingTime.UnixMilli(),
	}
}

// AlertPayload is the bit-exact schema published on TopicAlert. Threshold is
// a pointer so it serializes to JSON null on resolution events (spec.md §3,
// §4.3 — "threshold is null on resolution events").
type AlertPayload struct {
	Namespace     types.Namespace `json:"namespace"`
	SensorName    types.SensorID  `json:"sensor_name"`
	Value         float64         `json:"value"`
	Unit          string          `json:"unit"`
	Threshold     *float64        `json:"threshold"`
	RecordingTime string          `json:"recording_time"`
	IsResolved    bool            `json:"is_resolved"`
}

// NewAlertPayload builds the wire payload for a committed tracker
// transition (spec.md §4.3, §4.4). threshold is only carried on activation;
// resolution events null it out so a dashboard client can't mistake a
// resolve for a still-active bound.
func NewAlertPayload(namespace types.Namespace, sensorName types.SensorID, value, threshold float64, unit string, recordingTime time.Time, isResolved bool) AlertPayload {
	var t *float64
	if !isResolved {
		t = &threshold
	}
	return AlertPayload{
		Namespace:     namespace,
		SensorName:    sensorName,
		Value:         value,
		Unit:          unit,
		Threshold:     t,
		RecordingTime: recordingTime.UTC().Format(recordingTimeLayout),
		IsResolved:    isResolved,
	}
}

// ParseRecordingTime parses a payload's RecordingTime field back into a
// time.Time, for consumers (such as the notifier) that need to do more
// than pass the string through.
func ParseRecordingTime(s string) (time.Time, error) {
	return time.Parse(recordingTimeLayout, s)
}

// HumidifierStatePayload is the bit-exact schema published on
// TopicHumidifierState.
type HumidifierStatePayload struct {
	IsOn          bool   `json:"is_on"`
	RecordingTime string `json:"recording_time"`
}

func NewHumidifierStatePayload(isOn bool, recordingTime time.Time) HumidifierStatePayload {
	return HumidifierStatePayload{
		IsOn:          isOn,
		RecordingTime: recordingTime.UTC().Format(recordingTimeLayout),
	}
}
