package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewAppliesLevelAndFormat(t *testing.T) {
	log := New(Config{Level: "debug", Format: "json"})
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	Component(log, "refresh").WithField("waiters", 3).Info("refresh settled")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["component"] != "refresh" || line["msg"] != "refresh settled" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	if got := New(Config{Level: "chatty"}).GetLevel(); got != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %s", got)
	}
}

func TestComponentWithNilLogger(t *testing.T) {
	entry := Component(nil, "x")
	entry.Info("dropped")
	if entry.Data["component"] != "x" {
		t.Fatalf("missing component field: %v", entry.Data)
	}
}
