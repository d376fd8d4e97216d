package orchestrator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogPublisherWritesDebugLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf).Level(zerolog.DebugLevel))
	p.Publish(Event{Name: EventLoad, Model: "sd21", Fields: map[string]any{"backend": "standard"}})
	out := buf.String()
	for _, want := range []string{`"event":"load"`, `"model":"sd21"`, `"backend":"standard"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
}
