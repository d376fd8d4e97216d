package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "diffusiond.log")
	log, closer := New(Options{Level: "info", File: path, Stderr: &buf})
	log.Debug().Msg("hidden")
	log.Info().Str("model", "sd").Msg("loaded")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug line leaked at info level")
	}
	if !strings.Contains(buf.String(), `"model":"sd"`) {
		t.Fatalf("stderr output %q", buf.String())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"message":"loaded"`) {
		t.Fatalf("file output %q", b)
	}
}

func TestFileWriterDefaults(t *testing.T) {
	fw := NewFileWriter(Options{File: "x.log"})
	if fw.MaxSize != DefaultMaxSizeMB || fw.MaxBackups != DefaultMaxBackups || fw.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("defaults not applied: %+v", fw)
	}
}
