package pathcopy

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// makeSourceTree builds a small tree with nested directories and a symlink.
func makeSourceTree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()

	mustWrite := func(rel, content string) {
		t.Helper()
		path := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("setup mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("setup write failed: %v", err)
		}
	}

	mustWrite("readme.txt", "hello")
	mustWrite("docs/guide.md", "guide content")
	mustWrite("docs/images/logo.bin", "\x00\x01\x02")
	mustWrite("src/main.go", "package main")
	if err := os.MkdirAll(filepath.Join(src, "empty"), 0755); err != nil {
		t.Fatalf("setup mkdir failed: %v", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Symlink("readme.txt", filepath.Join(src, "readme.link")); err != nil {
			t.Fatalf("setup symlink failed: %v", err)
		}
	}
	return src
}

func TestCopyReproducesTree(t *testing.T) {
	src := makeSourceTree(t)
	dst := filepath.Join(t.TempDir(), "copy")

	c := NewPathCopier(64)
	var m Metrics
	if err := c.Copy(context.Background(), src, dst, &Plan{}, &m); err != nil {
		t.Fatalf("Copy() failed: %v", err)
	}

	for _, rel := range []string{"readme.txt", "docs/guide.md", "docs/images/logo.bin", "src/main.go"} {
		want, err := os.ReadFile(filepath.Join(src, rel))
		if err != nil {
			t.Fatalf("reading source %s failed: %v", rel, err)
		}
		got, err := os.ReadFile(filepath.Join(dst, rel))
		if err != nil {
			t.Fatalf("copied file %s missing: %v", rel, err)
		}
		if string(got) != string(want) {
			t.Errorf("content mismatch for %s", rel)
		}

		srcInfo, _ := os.Stat(filepath.Join(src, rel))
		dstInfo, _ := os.Stat(filepath.Join(dst, rel))
		if !srcInfo.ModTime().Equal(dstInfo.ModTime()) {
			t.Errorf("mod time not preserved for %s", rel)
		}
	}

	info, err := os.Stat(filepath.Join(dst, "empty"))
	if err != nil || !info.IsDir() {
		t.Errorf("empty directory not reproduced: %v", err)
	}

	if runtime.GOOS != "windows" {
		target, err := os.Readlink(filepath.Join(dst, "readme.link"))
		if err != nil {
			t.Fatalf("symlink not reproduced: %v", err)
		}
		if target != "readme.txt" {
			t.Errorf("symlink target = %q, want %q", target, "readme.txt")
		}
	}

	if m.FilesCopied.Load() != 4 {
		t.Errorf("FilesCopied = %d, want 4", m.FilesCopied.Load())
	}
	if m.BytesWritten.Load() == 0 {
		t.Error("BytesWritten = 0")
	}
}

func TestCopyExclusions(t *testing.T) {
	src := makeSourceTree(t)
	dst := filepath.Join(t.TempDir(), "copy")

	c := NewPathCopier(64)
	p := &Plan{
		ExcludeFiles: []string{"*.md"},
		ExcludeDirs:  []string{"images"},
	}
	var m Metrics
	if err := c.Copy(context.Background(), src, dst, p, &m); err != nil {
		t.Fatalf("Copy() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dst, "docs", "guide.md")); !os.IsNotExist(err) {
		t.Error("excluded file was copied")
	}
	if _, err := os.Stat(filepath.Join(dst, "docs", "images")); !os.IsNotExist(err) {
		t.Error("excluded directory was copied")
	}
	if _, err := os.Stat(filepath.Join(dst, "readme.txt")); err != nil {
		t.Errorf("non-excluded file missing: %v", err)
	}
	if m.FilesExcluded.Load() != 1 {
		t.Errorf("FilesExcluded = %d, want 1", m.FilesExcluded.Load())
	}
	if m.DirsExcluded.Load() != 1 {
		t.Errorf("DirsExcluded = %d, want 1", m.DirsExcluded.Load())
	}
}

func TestCopyDryRunWritesNothing(t *testing.T) {
	src := makeSourceTree(t)
	dst := filepath.Join(t.TempDir(), "copy")

	c := NewPathCopier(64)
	var m Metrics
	if err := c.Copy(context.Background(), src, dst, &Plan{DryRun: true}, &m); err != nil {
		t.Fatalf("Copy() failed: %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("dry run created the target directory")
	}
	if m.FilesCopied.Load() == 0 {
		t.Error("dry run did not count files")
	}
}

func TestCopyCanceledContext(t *testing.T) {
	src := makeSourceTree(t)
	dst := filepath.Join(t.TempDir(), "copy")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewPathCopier(64)
	if err := c.Copy(ctx, src, dst, &Plan{}, nil); err == nil {
		t.Error("Copy() ignored canceled context")
	}
}

func TestCopyMissingSourceFails(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "copy")

	c := NewPathCopier(64)
	err := c.Copy(context.Background(), filepath.Join(t.TempDir(), "missing"), dst, &Plan{}, nil)
	if err == nil {
		t.Fatal("Copy() succeeded with missing source")
	}
}

func TestExclusionSetMatching(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		relPath  string
		want     bool
	}{
		{"basename literal anywhere", []string{"node_modules"}, "src/node_modules", true},
		{"full path literal", []string{"build/output"}, "build/output", true},
		{"full path literal elsewhere", []string{"build/output"}, "src/build/output", false},
		{"basename glob", []string{"*.tmp"}, "deep/nested/file.tmp", true},
		{"case insensitive", []string{"Thumbs.db"}, "photos/thumbs.DB", true},
		{"no match", []string{"*.tmp", "cache"}, "src/main.go", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := makeExclusionSet(tt.patterns)
			key := normalizeExclusionPattern(tt.relPath)
			base := normalizeExclusionPattern(filepath.Base(tt.relPath))
			if got := set.matches(key, base); got != tt.want {
				t.Errorf("matches(%q) = %v, want %v", tt.relPath, got, tt.want)
			}
		})
	}
}
