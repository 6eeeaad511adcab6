package logsink

import "github.com/rs/zerolog"

// Zerolog forwards entries to a structured logger
type Zerolog struct {
	logger zerolog.Logger
}

func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

func (s *Zerolog) Append(entry Entry) error {
	var lvl zerolog.Level
	switch entry.Level {
	case Warn:
		lvl = zerolog.WarnLevel
	case Error:
		lvl = zerolog.ErrorLevel
	default:
		lvl = zerolog.InfoLevel
	}

	s.logger.WithLevel(lvl).Time("logged_at", entry.Time).Msg(entry.Message)
	return nil
}
