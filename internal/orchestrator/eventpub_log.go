package orchestrator

import "github.com/rs/zerolog"

// LogPublisher writes every event as a debug line.
type LogPublisher struct{ log zerolog.Logger }

func NewLogPublisher(log zerolog.Logger) *LogPublisher { return &LogPublisher{log: log} }

func (p *LogPublisher) Publish(e Event) {
	ev := p.log.Debug().Str("event", e.Name)
	if e.Model != "" {
		ev = ev.Str("model", e.Model)
	}
	ev.Fields(e.Fields).Msg("orchestrator event")
}
