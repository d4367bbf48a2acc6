package notify

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stumble/whittle/pkg/passes"
)

// LogNotifier writes pass events to a zerolog logger. Process start/finish
// events are logged at debug level, progress at info.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier - uses the global logger.
func NewLogNotifier() *LogNotifier {
	return NewLogNotifierWith(log.Logger)
}

// NewLogNotifierWith -
func NewLogNotifierWith(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements passes.Notifier
func (l *LogNotifier) Notify(e passes.Event) {
	var ev *zerolog.Event
	switch e.Kind {
	case passes.EventProgress:
		ev = l.logger.Info()
	default:
		ev = l.logger.Debug()
	}
	if e.PID != 0 {
		ev = ev.Int("pid", e.PID)
	}
	ev.Str("pass", e.Pass).
		Str("target", e.Target.Path()).
		Str("event", e.Kind.String()).
		Msg(e.Detail)
}

// Canceled implements passes.Notifier
func (l *LogNotifier) Canceled() bool {
	return false
}
