package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/fernwoodlabs/fw-backup/pkg/config"
)

func writeSourceTree(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "projects")
	for rel, content := range map[string]string{
		"a.txt":        "alpha",
		"nested/b.txt": "beta",
	} {
		path := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	return src
}

func TestRunInitWritesConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "fw-backup.config.json")
	src := t.TempDir()
	dst := t.TempDir()

	flagMap := map[string]any{
		"config": configPath,
		"source": src,
		"target": dst,
		"force":  true,
	}
	if err := RunInit(context.Background(), flagMap); err != nil {
		t.Fatalf("RunInit() failed: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("loading written config failed: %v", err)
	}
	if cfg.SourceFolder == "" || cfg.DestinationFolder == "" {
		t.Errorf("config missing paths: %+v", cfg)
	}
}

func TestRunInitRequiresSource(t *testing.T) {
	flagMap := map[string]any{
		"config": filepath.Join(t.TempDir(), "fw-backup.config.json"),
		"target": t.TempDir(),
		"force":  true,
	}
	if err := RunInit(context.Background(), flagMap); err == nil {
		t.Error("RunInit() succeeded without a source")
	}
}

func TestRunBackupEndToEnd(t *testing.T) {
	src := writeSourceTree(t)
	dst := filepath.Join(t.TempDir(), "backups")
	configPath := filepath.Join(t.TempDir(), "fw-backup.config.json")

	cfg := config.NewDefault()
	cfg.SourceFolder = src
	cfg.DestinationFolder = dst
	cfg.CompressBackup = true
	cfg.LogFile = "" // keep the test sandboxed
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	flagMap := map[string]any{"config": configPath}
	if err := RunBackup(context.Background(), flagMap); err != nil {
		t.Fatalf("RunBackup() failed: %v", err)
	}

	entries, err := CollectBackups(dst)
	if err != nil {
		t.Fatalf("CollectBackups() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("found %d backups, want 1", len(entries))
	}
	if entries[0].Meta.Files != 2 {
		t.Errorf("recorded %d files, want 2", entries[0].Meta.Files)
	}

	// The artifact itself must be a readable zip.
	reader, err := zip.OpenReader(filepath.Join(dst, entries[0].ArtifactName))
	if err != nil {
		t.Fatalf("artifact is not a valid zip: %v", err)
	}
	reader.Close()
}

func TestRunBackupFlagOverridesConfig(t *testing.T) {
	src := writeSourceTree(t)
	dst := filepath.Join(t.TempDir(), "backups")
	configPath := filepath.Join(t.TempDir(), "fw-backup.config.json")

	cfg := config.NewDefault()
	cfg.SourceFolder = filepath.Join(t.TempDir(), "wrong-source")
	cfg.DestinationFolder = dst
	cfg.LogFile = ""
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	// The -source flag must win over the persisted value.
	flagMap := map[string]any{"config": configPath, "source": src}
	if err := RunBackup(context.Background(), flagMap); err != nil {
		t.Fatalf("RunBackup() with flag override failed: %v", err)
	}
}

func TestRunBackupMissingSourceFails(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "backups")
	configPath := filepath.Join(t.TempDir(), "fw-backup.config.json")

	cfg := config.NewDefault()
	cfg.SourceFolder = filepath.Join(t.TempDir(), "does-not-exist")
	cfg.DestinationFolder = dst
	cfg.LogFile = ""
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := RunBackup(context.Background(), map[string]any{"config": configPath}); err == nil {
		t.Error("RunBackup() succeeded with missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("failed run created the destination directory")
	}
}

func TestCollectBackupsMissingDirIsEmpty(t *testing.T) {
	entries, err := CollectBackups(filepath.Join(t.TempDir(), "nowhere"))
	if err != nil {
		t.Fatalf("CollectBackups() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("found %d entries in missing dir", len(entries))
	}
}

func TestRunVersion(t *testing.T) {
	if err := RunVersion(context.Background(), nil); err != nil {
		t.Errorf("RunVersion() failed: %v", err)
	}
}
