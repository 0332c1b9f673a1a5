package remote

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggingControl is a Control that only logs the command, standing in for a
// real group/device sync protocol. It always succeeds.
type LoggingControl struct {
	log zerolog.Logger
}

// NewLoggingControl builds a Control that logs every command at info level.
func NewLoggingControl(log zerolog.Logger) *LoggingControl {
	return &LoggingControl{log: log}
}

func (c *LoggingControl) Send(_ context.Context, cmd Command) error {
	c.log.Info().Stringer("command", cmd).Msg("remote control command")
	return nil
}
