package httpapi

import (
	"testing"

	"diffusiond/internal/results"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("expected default 32MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("expected default 32MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetGenerateTimeoutSeconds_NormalizesNegativeToZero(t *testing.T) {
	defer SetGenerateTimeoutSeconds(0)
	SetGenerateTimeoutSeconds(-5)
	if generateTimeout != 0 {
		t.Fatalf("expected 0, got %d", generateTimeout)
	}
	SetGenerateTimeoutSeconds(3)
	if generateTimeout != 3 {
		t.Fatalf("expected 3, got %d", generateTimeout)
	}
}

func TestSetAutosaveDefaults_EmptyFormatIsPNG(t *testing.T) {
	defer SetAutosaveDefaults("", results.FormatPNG)
	SetAutosaveDefaults("/tmp/out", "")
	if defaultSaveDir != "/tmp/out" || defaultSaveFormat != results.FormatPNG {
		t.Fatalf("got %q %q", defaultSaveDir, defaultSaveFormat)
	}
}
