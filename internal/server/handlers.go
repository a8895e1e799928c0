package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rpi-gardener/greenhouse/internal/settings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type httpError string

func (e httpError) Error() string { return string(e) }

var errInvalidHours = httpError("hours must be between 1 and 24")

// parseHours reads the ?hours=N query parameter (spec.md §4.9 "Dashboard
// query window"), defaulting to 3 and rejecting anything out of [1, 24],
// grounded on original_source/rpi/server/validators.py and
// views/_utils.py's MIN_HOURS=1 MAX_HOURS=24 DEFAULT_HOURS=3.
func parseHours(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return 3, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if hours < 1 || hours > 24 {
		return 0, errInvalidHours
	}
	return hours, nil
}

// handleDashboard serves the combined dashboard snapshot (spec.md §4.9
// "/api/dashboard"), grounded on
// original_source/rpi/server/api/dashboard.py's get_dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHours(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	dhtData, err := getInitialDHT(ctx, s.db, since)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch dht history")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Database unavailable"})
		return
	}
	stats, err := getStatsDHT(ctx, s.db, since)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch dht stats")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Database unavailable"})
		return
	}
	latest, err := getLatestDHT(ctx, s.db)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch latest dht reading")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Database unavailable"})
		return
	}
	picoData, err := getInitialPico(ctx, s.db, since)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch pico history")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Database unavailable"})
		return
	}
	picoLatest, err := getLatestPico(ctx, s.db)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch latest pico readings")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Database unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hours":       hours,
		"data":        dhtData,
		"stats":       stats,
		"latest":      latest,
		"pico_data":   picoData,
		"pico_latest": picoLatest,
	})
}

// handleHealth reports liveness of the database and the two sensor
// streams (spec.md §4.9 "/health"), grounded on
// original_source/rpi/server/api/health.py.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbOK := true
	dbStatus := "ok"
	if err := s.db.Pragma(ctx, "user_version"); err != nil {
		dbOK = false
		dbStatus = err.Error()
	}

	dhtOK := true
	var dhtLast any
	latest, err := getLatestDHT(ctx, s.db)
	if err != nil {
		dhtOK = false
		dhtLast = err.Error()
	} else if latest == nil {
		dhtOK = false
		dhtLast = "no data"
	} else {
		dhtLast = latest.RecordingTime
	}

	picoOK := true
	var picoLast any
	picoLatest, err := getLatestPico(ctx, s.db)
	if err != nil {
		picoOK = false
		picoLast = err.Error()
	} else if len(picoLatest) == 0 {
		picoOK = false
		picoLast = "no data"
	} else {
		picoLast = picoLatest[0].RecordingTime
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !dbOK {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]any{
			"database":    map[string]any{"ok": dbOK, "status": dbStatus},
			"dht_sensor":  map[string]any{"ok": dhtOK, "last_reading": dhtLast},
			"pico_sensor": map[string]any{"ok": picoOK, "last_reading": picoLast},
		},
	})
}

// handleThresholds reports the currently effective threshold settings
// (spec.md §4.9 "/api/thresholds"), grounded on
// original_source/rpi/server/api/thresholds.py.
func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	values, err := s.store.GetAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch settings")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "settings unavailable"})
		return
	}
	reader := settings.NewReader(values)

	writeJSON(w, http.StatusOK, map[string]any{
		"temperature": map[string]int{
			"min": reader.Int(settings.KeyTempMin, s.cfg.TempMin),
			"max": reader.Int(settings.KeyTempMax, s.cfg.TempMax),
		},
		"humidity": map[string]int{
			"min": reader.Int(settings.KeyHumidityMin, s.cfg.HumidityMin),
			"max": reader.Int(settings.KeyHumidityMax, s.cfg.HumidityMax),
		},
		"moisture": map[string]int{
			"default": reader.Int(settings.KeyMoistureDefault, s.cfg.MoistureDefault),
			"1":       reader.Int(settings.KeyMoisturePlant1, s.cfg.MoistureDefault),
			"2":       reader.Int(settings.KeyMoisturePlant2, s.cfg.MoistureDefault),
			"3":       reader.Int(settings.KeyMoisturePlant3, s.cfg.MoistureDefault),
		},
	})
}
