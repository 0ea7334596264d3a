package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fernwoodlabs/fw-backup/pkg/flagparse"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() with missing file returned error: %v", err)
	}
	defaults := NewDefault()
	if cfg.TimeFormat != defaults.TimeFormat || cfg.BufferSizeKB != defaults.BufferSizeKB {
		t.Errorf("Load() with missing file did not return defaults: %+v", cfg)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw-backup.config.json")

	want := NewDefault()
	want.SourceFolder = "/data/projects"
	want.DestinationFolder = "/mnt/backups"
	want.CompressBackup = true
	want.BackupIntervalDays = 3

	if err := Save(path, want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.SourceFolder != want.SourceFolder ||
		got.DestinationFolder != want.DestinationFolder ||
		got.CompressBackup != want.CompressBackup ||
		got.BackupIntervalDays != want.BackupIntervalDays {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestSaveUsesStableKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw-backup.config.json")

	if err := Save(path, NewDefault()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config back failed: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved config is not valid JSON: %v", err)
	}
	for _, key := range []string{"source_folder", "destination_folder", "compress_backup", "backup_interval_days"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("saved config is missing key %q", key)
		}
	}
}

func TestLoadCorruptFileRewritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw-backup.config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing corrupt config failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() with corrupt file returned error: %v", err)
	}
	if cfg.TimeFormat != NewDefault().TimeFormat {
		t.Errorf("Load() with corrupt file did not return defaults: %+v", cfg)
	}

	// The corrupt file must have been replaced with a parseable one.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rewritten config failed: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Errorf("rewritten config is not valid JSON: %v", err)
	}
}

func TestValidate(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	t.Run("valid config passes", func(t *testing.T) {
		cfg := NewDefault()
		cfg.SourceFolder = srcDir
		cfg.DestinationFolder = dstDir
		if err := cfg.Validate(true); err != nil {
			t.Errorf("Validate() failed for valid config: %v", err)
		}
	})

	t.Run("missing source fails", func(t *testing.T) {
		cfg := NewDefault()
		cfg.SourceFolder = filepath.Join(srcDir, "does-not-exist")
		cfg.DestinationFolder = dstDir
		if err := cfg.Validate(true); err == nil {
			t.Error("Validate() passed for non-existent source")
		}
	})

	t.Run("file source fails", func(t *testing.T) {
		filePath := filepath.Join(srcDir, "afile.txt")
		if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		cfg := NewDefault()
		cfg.SourceFolder = filePath
		cfg.DestinationFolder = dstDir
		if err := cfg.Validate(true); err == nil {
			t.Error("Validate() passed for file source")
		}
	})

	t.Run("empty destination fails", func(t *testing.T) {
		cfg := NewDefault()
		cfg.SourceFolder = srcDir
		cfg.DestinationFolder = ""
		if err := cfg.Validate(true); err == nil {
			t.Error("Validate() passed for empty destination")
		}
	})

	t.Run("bad buffer fails", func(t *testing.T) {
		cfg := NewDefault()
		cfg.SourceFolder = srcDir
		cfg.DestinationFolder = dstDir
		cfg.BufferSizeKB = 0
		if err := cfg.Validate(true); err == nil {
			t.Error("Validate() passed for zero buffer size")
		}
	})

	t.Run("bad glob fails", func(t *testing.T) {
		cfg := NewDefault()
		cfg.SourceFolder = srcDir
		cfg.DestinationFolder = dstDir
		cfg.ExcludeFiles = []string{"[unclosed"}
		if err := cfg.Validate(true); err == nil {
			t.Error("Validate() passed for invalid glob pattern")
		}
	})

	t.Run("source check skipped", func(t *testing.T) {
		cfg := NewDefault()
		cfg.SourceFolder = filepath.Join(srcDir, "does-not-exist")
		cfg.DestinationFolder = dstDir
		if err := cfg.Validate(false); err != nil {
			t.Errorf("Validate(false) failed: %v", err)
		}
	})
}

func TestMergeConfigWithFlags(t *testing.T) {
	base := NewDefault()
	base.SourceFolder = "/base/src"
	base.DestinationFolder = "/base/dst"

	setFlags := map[string]any{
		"source":   "/flag/src",
		"compress": true,
		"dry-run":  true,
	}

	merged := MergeConfigWithFlags(flagparse.Backup, base, setFlags)
	if merged.SourceFolder != "/flag/src" {
		t.Errorf("source not overridden: %q", merged.SourceFolder)
	}
	if merged.DestinationFolder != "/base/dst" {
		t.Errorf("unset destination changed: %q", merged.DestinationFolder)
	}
	if !merged.CompressBackup {
		t.Error("compress not overridden")
	}
	if !merged.Runtime.DryRun {
		t.Error("dry-run not carried into runtime config")
	}
}
