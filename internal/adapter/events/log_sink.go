package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes every message to the log. Used when no broker is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("sink", "log").Logger()}
}

func (s *LogSink) Write(_ context.Context, msg Message) error {
	s.log.Info().
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		RawJSON("event", msg.Value).
		Msg("domain event")
	return nil
}

func (s *LogSink) Close() error { return nil }
