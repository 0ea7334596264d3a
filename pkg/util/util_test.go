package util

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestExpandPath(t *testing.T) {
	t.Run("No Tilde", func(t *testing.T) {
		got, err := ExpandPath("/var/data")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "/var/data" {
			t.Errorf("expected path to be returned unchanged, got %s", got)
		}
	})

	t.Run("Tilde Prefix", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skipf("cannot determine home directory: %v", err)
		}

		got, err := ExpandPath("~/backups")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := filepath.Join(home, "backups")
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})
}

func TestExpandedAbsPath(t *testing.T) {
	got, err := ExpandedAbsPath("some/relative/dir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected an absolute path, got %s", got)
	}
}

func TestNormalizePath(t *testing.T) {
	key := NormalizePath(filepath.Join("a", "b", "c.txt"))
	if key != "a/b/c.txt" {
		t.Errorf("expected normalized key a/b/c.txt, got %s", key)
	}
}

func TestInvertMap(t *testing.T) {
	m := map[int]string{1: "one", 2: "two"}
	inv := InvertMap(m)
	if inv["one"] != 1 || inv["two"] != 2 {
		t.Errorf("expected inverted map, got %v", inv)
	}
}

func TestMergeAndDeduplicate(t *testing.T) {
	merged := MergeAndDeduplicate([]string{"a", "b"}, []string{"b", "c"}, nil)
	slices.Sort(merged)
	want := []string{"a", "b", "c"}
	if !slices.Equal(merged, want) {
		t.Errorf("expected %v, got %v", want, merged)
	}
}

func TestWithUserWritePermission(t *testing.T) {
	if got := WithUserWritePermission(0444); got&PermUserWrite == 0 {
		t.Errorf("expected owner-write bit to be set, got %o", got)
	}
}
