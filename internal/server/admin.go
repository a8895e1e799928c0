package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpi-gardener/greenhouse/internal/auth"
	"github.com/rpi-gardener/greenhouse/internal/settings"
)

const (
	authRealm    = "greenhouse admin"
	authUsername = "admin"
)

// requireAuth gates the admin settings API behind HTTP Basic Auth, checked
// against the scrypt hash stored in the admin table (spec.md §4.2 "Admin
// auth"), grounded on original_source/rpi/server/auth.py's require_auth.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		storedHash, err := s.db.GetAdminPasswordHash(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("failed to load admin password hash")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "admin unavailable"})
			return
		}
		if storedHash == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "admin not configured"})
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || username != authUsername || !auth.VerifyPassword(password, storedHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// adminThresholdRange mirrors _TemperatureThreshold/_HumidityThreshold: an
// optional min/max pair, validated together.
type adminThresholdRange struct {
	Min *int `json:"min"`
	Max *int `json:"max"`
}

type adminMoistureThresholds struct {
	Default *int `json:"default"`
	Plant1  *int `json:"1"`
	Plant2  *int `json:"2"`
	Plant3  *int `json:"3"`
}

type adminThresholds struct {
	Temperature adminThresholdRange     `json:"temperature"`
	Humidity    adminThresholdRange     `json:"humidity"`
	Moisture    adminMoistureThresholds `json:"moisture"`
}

type adminNotifications struct {
	Enabled  *bool    `json:"enabled"`
	Backends []string `json:"backends"`
}

type adminCleanup struct {
	RetentionDays *int `json:"retentionDays"`
}

// adminSettingsRequest mirrors _AdminSettingsRequest (spec.md §4.9 "Admin
// settings update"), grounded on
// original_source/rpi/server/api/admin.py.
type adminSettingsRequest struct {
	Thresholds    adminThresholds    `json:"thresholds"`
	Notifications adminNotifications `json:"notifications"`
	Cleanup       adminCleanup       `json:"cleanup"`
}

func (req adminSettingsRequest) validate() []string {
	var errs []string

	if req.Thresholds.Temperature.Min != nil && (*req.Thresholds.Temperature.Min < -40 || *req.Thresholds.Temperature.Min > 80) {
		errs = append(errs, "thresholds.temperature.min: out of DHT22 bounds")
	}
	if req.Thresholds.Temperature.Max != nil && (*req.Thresholds.Temperature.Max < -40 || *req.Thresholds.Temperature.Max > 80) {
		errs = append(errs, "thresholds.temperature.max: out of DHT22 bounds")
	}
	if req.Thresholds.Temperature.Min != nil && req.Thresholds.Temperature.Max != nil &&
		*req.Thresholds.Temperature.Max <= *req.Thresholds.Temperature.Min {
		errs = append(errs, "thresholds.temperature.max: must be greater than min")
	}

	if req.Thresholds.Humidity.Min != nil && (*req.Thresholds.Humidity.Min < 0 || *req.Thresholds.Humidity.Min > 100) {
		errs = append(errs, "thresholds.humidity.min: out of bounds")
	}
	if req.Thresholds.Humidity.Max != nil && (*req.Thresholds.Humidity.Max < 0 || *req.Thresholds.Humidity.Max > 100) {
		errs = append(errs, "thresholds.humidity.max: out of bounds")
	}
	if req.Thresholds.Humidity.Min != nil && req.Thresholds.Humidity.Max != nil &&
		*req.Thresholds.Humidity.Max <= *req.Thresholds.Humidity.Min {
		errs = append(errs, "thresholds.humidity.max: must be greater than min")
	}

	for name, v := range map[string]*int{
		"thresholds.moisture.default": req.Thresholds.Moisture.Default,
		"thresholds.moisture.1":       req.Thresholds.Moisture.Plant1,
		"thresholds.moisture.2":       req.Thresholds.Moisture.Plant2,
		"thresholds.moisture.3":       req.Thresholds.Moisture.Plant3,
	} {
		if v != nil && (*v < 0 || *v > 100) {
			errs = append(errs, name+": out of bounds")
		}
	}

	for _, b := range req.Notifications.Backends {
		if b != "gmail" && b != "slack" {
			errs = append(errs, "notifications.backends: invalid backend "+strconv.Quote(b))
		}
	}

	if req.Cleanup.RetentionDays != nil && (*req.Cleanup.RetentionDays < 1 || *req.Cleanup.RetentionDays > 365) {
		errs = append(errs, "cleanup.retentionDays: must be in [1, 365]")
	}

	return errs
}

// toSettings flattens the validated request into the closed settings key
// catalog, mirroring _request_to_db_settings.
func (req adminSettingsRequest) toSettings() map[settings.Key]string {
	out := make(map[settings.Key]string)

	set := func(k settings.Key, v *int) {
		if v != nil {
			out[k] = strconv.Itoa(*v)
		}
	}
	set(settings.KeyTempMin, req.Thresholds.Temperature.Min)
	set(settings.KeyTempMax, req.Thresholds.Temperature.Max)
	set(settings.KeyHumidityMin, req.Thresholds.Humidity.Min)
	set(settings.KeyHumidityMax, req.Thresholds.Humidity.Max)
	set(settings.KeyMoistureDefault, req.Thresholds.Moisture.Default)
	set(settings.KeyMoisturePlant1, req.Thresholds.Moisture.Plant1)
	set(settings.KeyMoisturePlant2, req.Thresholds.Moisture.Plant2)
	set(settings.KeyMoisturePlant3, req.Thresholds.Moisture.Plant3)

	if req.Notifications.Enabled != nil {
		if *req.Notifications.Enabled {
			out[settings.KeyNotificationEnabled] = "1"
		} else {
			out[settings.KeyNotificationEnabled] = "0"
		}
	}
	if req.Notifications.Backends != nil {
		out[settings.KeyNotificationBackends] = strings.Join(req.Notifications.Backends, ",")
	}
	if req.Cleanup.RetentionDays != nil {
		out[settings.KeyRetentionDays] = strconv.Itoa(*req.Cleanup.RetentionDays)
	}
	return out
}

// settingsResponse renders the flat key/value map back into the structured
// shape the dashboard expects, mirroring _db_settings_to_response.
func (s *Server) settingsResponse(values map[settings.Key]string) map[string]any {
	reader := settings.NewReader(values)
	return map[string]any{
		"thresholds": map[string]any{
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
		},
		"notifications": map[string]any{
			"enabled":  reader.Bool(settings.KeyNotificationEnabled, s.cfg.NotificationEnabled),
			"backends": reader.List(settings.KeyNotificationBackends, s.cfg.NotificationBackends),
		},
		"cleanup": map[string]any{
			"retentionDays": reader.Int(settings.KeyRetentionDays, s.cfg.RetentionDays),
		},
	}
}

func (s *Server) handleGetAdminSettings(w http.ResponseWriter, r *http.Request) {
	values, err := s.store.GetAll(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch settings")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "settings unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, s.settingsResponse(values))
}

func (s *Server) handleUpdateAdminSettings(w http.ResponseWriter, r *http.Request) {
	var req adminSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if errs := req.validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	updates := req.toSettings()
	var (
		values map[settings.Key]string
		err    error
	)
	if len(updates) > 0 {
		values, err = s.store.SetBatch(r.Context(), updates)
	} else {
		values, err = s.store.GetAll(r.Context())
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to update settings")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "settings unavailable"})
		return
	}

	s.log.Info().Int("count", len(updates)).Msg("admin settings updated")
	writeJSON(w, http.StatusOK, s.settingsResponse(values))
}
