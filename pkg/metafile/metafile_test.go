package metafile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "projects_2026-01-02_15-04-05_v1.0.0.zip")

	want := &Content{
		Version:      "v1.0.0",
		RunID:        "run-1234",
		TimestampUTC: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Mode:         "archive",
		Format:       "zip",
		Files:        42,
		Bytes:        1 << 20,
	}
	if err := Write(artifact, want); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	got, err := Read(artifact)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if got.RunID != want.RunID || got.Mode != want.Mode || got.Files != want.Files ||
		got.Bytes != want.Bytes || !got.TimestampUTC.Equal(want.TimestampUTC) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestReadCorruptSidecar(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "projects.zip")
	if err := os.WriteFile(PathFor(artifact), []byte("{broken"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if _, err := Read(artifact); err == nil {
		t.Error("Read() succeeded on corrupt sidecar")
	}
}

func TestRemove(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "projects")
	if err := Write(artifact, &Content{RunID: "x"}); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := Remove(artifact); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := os.Stat(PathFor(artifact)); !os.IsNotExist(err) {
		t.Error("sidecar still present after Remove()")
	}
	// Removing a missing sidecar is not an error.
	if err := Remove(artifact); err != nil {
		t.Errorf("Remove() on missing sidecar failed: %v", err)
	}
}
