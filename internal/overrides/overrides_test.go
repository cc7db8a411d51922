package overrides

import (
	"os"
	"path/filepath"
	"testing"

	"authsignal/pkg/models"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "nope.json"))
	if len(got) != 0 {
		t.Fatalf("missing file should yield empty set, got %v", got)
	}
}

func TestLoadValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	body := `{"ab12cd34ef56": {"status": "reviewed", "note": "change ticket OPS-77"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := Load(path)
	ov, ok := got["ab12cd34ef56"]
	if !ok || ov.Status != models.StatusReviewed || ov.Note != "change ticket OPS-77" {
		t.Fatalf("unexpected overrides: %v", got)
	}
}

func TestParseRejectsUnknownStatus(t *testing.T) {
	if _, err := Parse([]byte(`{"x": {"status": "escalated"}}`)); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestLoadMalformedFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := Load(path); len(got) != 0 {
		t.Fatalf("malformed file should yield empty set, got %v", got)
	}
}
