package humidifier

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggingPlug is a Plug that only logs, for environments with no physical
// smart plug attached (spec.md §4.7 "concrete smart-plug driver is out of
// scope").
type LoggingPlug struct {
	log zerolog.Logger
}

func NewLoggingPlug(log zerolog.Logger) *LoggingPlug {
	return &LoggingPlug{log: log.With().Str("component", "humidifier-plug").Logger()}
}

func (p *LoggingPlug) On(ctx context.Context) error {
	p.log.Info().Msg("humidifier plug: ON")
	return nil
}

func (p *LoggingPlug) Off(ctx context.Context) error {
	p.log.Info().Msg("humidifier plug: OFF")
	return nil
}
