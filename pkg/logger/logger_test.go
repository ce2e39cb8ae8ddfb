package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var out, errOut bytes.Buffer

	l := NewLoggerTo(&out, &errOut, "warn")

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	if strings.Contains(out.String(), "debug line") || strings.Contains(out.String(), "info line") {
		t.Error("levels below warn must be suppressed")
	}

	if !strings.Contains(out.String(), "WARN: warn line") {
		t.Errorf("warn line missing from output: %q", out.String())
	}

	if !strings.Contains(errOut.String(), "ERROR: error line") {
		t.Errorf("error line missing from error output: %q", errOut.String())
	}

	if strings.Contains(out.String(), "error line") {
		t.Error("errors must go to the error writer only")
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var out, errOut bytes.Buffer

	l := NewLoggerTo(&out, &errOut, "verbose")

	l.Debug("debug line")
	l.Info("info line")

	if strings.Contains(out.String(), "debug line") {
		t.Error("debug must be suppressed at the fallback level")
	}

	if !strings.Contains(out.String(), "info line") {
		t.Error("info must pass at the fallback level")
	}
}

func TestKeyvalFormatting(t *testing.T) {
	got := formatMsg("Load assigned", "loadID", "lod-abc12345", "attempt", 2)

	if got != "Load assigned loadID=lod-abc12345 attempt=2" {
		t.Errorf("got %q", got)
	}
}

func TestDanglingKey(t *testing.T) {
	got := formatMsg("Load assigned", "loadID")

	if got != "Load assigned loadID=missing" {
		t.Errorf("got %q", got)
	}
}
