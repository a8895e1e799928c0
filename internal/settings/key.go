// Package settings implements the versioned settings store (spec.md §4.2):
// a closed SettingsKey catalog backed by the reading database, with a
// Redis-held version counter giving every process a fast, cross-process-
// invalidated local cache. Grounded on original_source/rpi/lib/db/settings.py
// for the exact freshness protocol, and on itskum47-FluxForge's
// control_plane/store/redis.go for the go-redis client wiring.
package settings

import "fmt"

// Key is the closed catalog of legal settings keys (spec.md §3). Values are
// always stored as strings; callers type them on the read side.
type Key string

const (
	KeyTempMin               Key = "threshold.temperature.min"
	KeyTempMax               Key = "threshold.temperature.max"
	KeyHumidityMin           Key = "threshold.humidity.min"
	KeyHumidityMax           Key = "threshold.humidity.max"
	KeyMoistureDefault       Key = "threshold.moisture.default"
	KeyMoisturePlant1        Key = "threshold.moisture.1"
	KeyMoisturePlant2        Key = "threshold.moisture.2"
	KeyMoisturePlant3        Key = "threshold.moisture.3"
	KeyNotificationEnabled   Key = "notification.enabled"
	KeyNotificationBackends  Key = "notification.backends"
	KeyRetentionDays         Key = "cleanup.retention_days"
)

var validKeys = map[Key]bool{
	KeyTempMin:              true,
	KeyTempMax:              true,
	KeyHumidityMin:          true,
	KeyHumidityMax:          true,
	KeyMoistureDefault:      true,
	KeyMoisturePlant1:       true,
	KeyMoisturePlant2:       true,
	KeyMoisturePlant3:       true,
	KeyNotificationEnabled:  true,
	KeyNotificationBackends: true,
	KeyRetentionDays:        true,
}

// PlantMoistureKey maps a plant number (1..3) to its settings key.
func PlantMoistureKey(plantID int) (Key, error) {
	switch plantID {
	case 1:
		return KeyMoisturePlant1, nil
	case 2:
		return KeyMoisturePlant2, nil
	case 3:
		return KeyMoisturePlant3, nil
	default:
		return "", fmt.Errorf("no moisture settings key for plant %d", plantID)
	}
}

// Validate rejects any key outside the closed catalog (spec.md §3 "Unknown
// keys are rejected").
func Validate(key Key) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown settings key %q", key)
	}
	return nil
}
