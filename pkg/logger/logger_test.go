package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Service: "stamp", Output: &buf})

	log.WithField("component", "renderer").
		WithError(errors.New("boom")).
		Info("render failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}

	want := map[string]string{
		"service":   "stamp",
		"component": "renderer",
		"error":     "boom",
		"message":   "render failed",
		"level":     "info",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Debug("hidden")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}

	log.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("expected warn message to be written")
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.WithFields(map[string]interface{}{"a": 1}).Error("nothing")
}
