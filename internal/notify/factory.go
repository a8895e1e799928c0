package notify

import (
	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/config"
)

// FromConfig builds a Dispatcher from the resolved notification settings
// (spec.md §4.8 "Configuration"), grounded on
// original_source/rpi/lib/notifications.py's get_notifier factory. Unknown
// backend names are logged and skipped rather than rejected, matching the
// source.
func FromConfig(log zerolog.Logger, cfg *config.Config) *Dispatcher {
	if !cfg.NotificationEnabled {
		return New(log)
	}

	var backends []Backend
	for _, name := range cfg.NotificationBackends {
		switch name {
		case "gmail":
			backends = append(backends, NewGmailBackend(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPTo))
		case "slack":
			backends = append(backends, NewSlackBackend(log, cfg.WebhookURL))
		default:
			log.Warn().Str("backend", name).Msg("unknown notification backend, skipping")
		}
	}

	return New(log, backends...)
}
