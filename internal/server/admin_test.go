package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rpi-gardener/greenhouse/internal/settings"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestAdminSettingsRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     adminSettingsRequest
		wantErr bool
	}{
		{
			name: "valid full request",
			req: adminSettingsRequest{
				Thresholds: adminThresholds{
					Temperature: adminThresholdRange{Min: intPtr(10), Max: intPtr(35)},
					Humidity:    adminThresholdRange{Min: intPtr(30), Max: intPtr(70)},
					Moisture:    adminMoistureThresholds{Default: intPtr(40)},
				},
				Notifications: adminNotifications{Enabled: boolPtr(true), Backends: []string{"gmail", "slack"}},
				Cleanup:       adminCleanup{RetentionDays: intPtr(30)},
			},
			wantErr: false,
		},
		{
			name:    "empty request is valid (no-op update)",
			req:     adminSettingsRequest{},
			wantErr: false,
		},
		{
			name: "temperature min below DHT22 bound",
			req: adminSettingsRequest{
				Thresholds: adminThresholds{Temperature: adminThresholdRange{Min: intPtr(-41)}},
			},
			wantErr: true,
		},
		{
			name: "temperature max must exceed min",
			req: adminSettingsRequest{
				Thresholds: adminThresholds{Temperature: adminThresholdRange{Min: intPtr(30), Max: intPtr(20)}},
			},
			wantErr: true,
		},
		{
			name: "humidity out of bounds",
			req: adminSettingsRequest{
				Thresholds: adminThresholds{Humidity: adminThresholdRange{Min: intPtr(-5)}},
			},
			wantErr: true,
		},
		{
			name: "moisture threshold out of bounds",
			req: adminSettingsRequest{
				Thresholds: adminThresholds{Moisture: adminMoistureThresholds{Plant1: intPtr(150)}},
			},
			wantErr: true,
		},
		{
			name: "unknown notification backend",
			req: adminSettingsRequest{
				Notifications: adminNotifications{Backends: []string{"carrier-pigeon"}},
			},
			wantErr: true,
		},
		{
			name: "retention days out of range",
			req: adminSettingsRequest{
				Cleanup: adminCleanup{RetentionDays: intPtr(400)},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.req.validate()
			if tt.wantErr {
				assert.NotEmpty(t, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestAdminSettingsRequestToSettingsOnlyTouchesSuppliedFields(t *testing.T) {
	req := adminSettingsRequest{
		Thresholds: adminThresholds{
			Temperature: adminThresholdRange{Min: intPtr(5)},
		},
	}

	out := req.toSettings()

	assert.Equal(t, "5", out[settings.KeyTempMin])
	assert.NotContains(t, out, settings.KeyTempMax)
	assert.NotContains(t, out, settings.KeyHumidityMin)
	assert.NotContains(t, out, settings.KeyRetentionDays)
}

func TestAdminSettingsRequestToSettingsNotificationsEnabledFalse(t *testing.T) {
	req := adminSettingsRequest{
		Notifications: adminNotifications{Enabled: boolPtr(false)},
	}

	out := req.toSettings()
	assert.Equal(t, "0", out[settings.KeyNotificationEnabled])
}
