package config

import (
	"fmt"
	"strconv"
	"strings"

	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration, sourced from the environment
// (with an optional local .env for development).
type Config struct {
	// Server
	Port    int
	DevMode bool

	// Database
	DatabasePath    string
	DBQueryTimeout  int // seconds
	DBPoolSize      int // server-mode pool size
	MockSensorMode  bool

	// Polling
	PollingFrequencySec int

	// Thresholds (defaults; live values are read through the settings store)
	TempMin     int
	TempMax     int
	HumidityMin int
	HumidityMax int
	MoistureDefault int
	HysteresisTemp     int
	HysteresisHumidity int
	HysteresisMoisture int
	ConfirmationCount  int

	// Retention
	RetentionDays int

	// Notifications
	NotificationEnabled  bool
	NotificationBackends []string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	SMTPFrom             string
	SMTPTo               string
	WebhookURL           string

	// Broker / event bus
	BrokerURL string

	// Admin
	AdminInitialPassword string

	// Display
	OLEDEnabled bool
	LCDEnabled  bool

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvAsInt("GREENHOUSE_PORT", 8080),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		DatabasePath:   getEnv("DATABASE_PATH", "./data/greenhouse.db"),
		DBQueryTimeout: getEnvAsInt("DB_QUERY_TIMEOUT_SEC", 5),
		DBPoolSize:     getEnvAsInt("DB_POOL_SIZE", 5),
		MockSensorMode: getEnvAsBool("MOCK_SENSOR_MODE", false),

		PollingFrequencySec: getEnvAsInt("POLLING_FREQUENCY_SEC", 2),

		TempMin:     getEnvAsInt("THRESHOLD_TEMPERATURE_MIN", 10),
		TempMax:     getEnvAsInt("THRESHOLD_TEMPERATURE_MAX", 30),
		HumidityMin: getEnvAsInt("THRESHOLD_HUMIDITY_MIN", 40),
		HumidityMax: getEnvAsInt("THRESHOLD_HUMIDITY_MAX", 70),
		MoistureDefault: getEnvAsInt("THRESHOLD_MOISTURE_DEFAULT", 30),

		HysteresisTemp:     getEnvAsInt("HYSTERESIS_TEMPERATURE", 1),
		HysteresisHumidity: getEnvAsInt("HYSTERESIS_HUMIDITY", 2),
		HysteresisMoisture: getEnvAsInt("HYSTERESIS_MOISTURE", 2),
		ConfirmationCount:  getEnvAsInt("ALERT_CONFIRMATION_COUNT", 3),

		RetentionDays: getEnvAsInt("RETENTION_DAYS", 7),

		NotificationEnabled:  getEnvAsBool("NOTIFICATION_ENABLED", false),
		NotificationBackends: getEnvAsSlice("NOTIFICATION_BACKENDS", []string{"gmail"}),
		SMTPHost:             getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:             getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
		SMTPTo:               getEnv("SMTP_TO", ""),
		WebhookURL:           getEnv("WEBHOOK_URL", ""),

		BrokerURL: getEnv("BROKER_URL", "redis://localhost:6379/0"),

		AdminInitialPassword: getEnv("ADMIN_INITIAL_PASSWORD", ""),

		OLEDEnabled: getEnvAsBool("OLED_ENABLED", true),
		LCDEnabled:  getEnvAsBool("LCD_ENABLED", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that must hold at startup; violations are a
// configuration-class error (spec.md §7): the process exits non-zero rather
// than limping along with an inconsistent threshold relation.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.TempMin >= c.TempMax {
		return fmt.Errorf("THRESHOLD_TEMPERATURE_MIN must be < THRESHOLD_TEMPERATURE_MAX")
	}
	if c.HumidityMin >= c.HumidityMax {
		return fmt.Errorf("THRESHOLD_HUMIDITY_MIN must be < THRESHOLD_HUMIDITY_MAX")
	}
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("RETENTION_DAYS must be in [1, 365]")
	}
	if c.NotificationEnabled {
		for _, b := range c.NotificationBackends {
			switch b {
			case "gmail", "slack":
			default:
				return fmt.Errorf("unknown notification backend %q", b)
			}
			if b == "gmail" && (c.SMTPUsername == "" || c.SMTPPassword == "") {
				return fmt.Errorf("gmail backend enabled but SMTP_USERNAME/SMTP_PASSWORD not set")
			}
			if b == "slack" && c.WebhookURL == "" {
				return fmt.Errorf("slack backend enabled but WEBHOOK_URL not set")
			}
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
