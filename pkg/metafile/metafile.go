// Package metafile reads and writes the sidecar metadata record placed next
// to every backup artifact. The sidecar lives outside the artifact so a copied
// tree stays byte-for-byte identical to its source and an archive contains
// only source entries.
package metafile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// MetaFileSuffix is appended to the artifact path to form the sidecar path,
// e.g. "projects_2026-01-02_15-04-05_v1.0.0.zip.fw-meta.json".
const MetaFileSuffix = ".fw-meta.json"

// Content is the persisted metadata of a single completed backup run.
type Content struct {
	Version      string    `json:"version"`
	RunID        string    `json:"run_id"`
	TimestampUTC time.Time `json:"timestamp_utc"`
	Mode         string    `json:"mode"`
	Format       string    `json:"format,omitempty"`
	Files        int64     `json:"files"`
	Bytes        int64     `json:"bytes"`
}

// PathFor returns the sidecar path for a given artifact path.
func PathFor(artifactPath string) string {
	return artifactPath + MetaFileSuffix
}

// Write creates or overwrites the sidecar for the given artifact.
func Write(artifactPath string, content *Content) error {
	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata to JSON: %w", err)
	}
	path := PathFor(artifactPath)
	if err := os.WriteFile(path, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write metadata file %s: %w", path, err)
	}
	return nil
}

// Read loads the sidecar for the given artifact.
func Read(artifactPath string) (Content, error) {
	path := PathFor(artifactPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return Content{}, fmt.Errorf("failed to read metadata file %s: %w", path, err)
	}
	var content Content
	if err := json.Unmarshal(data, &content); err != nil {
		return Content{}, fmt.Errorf("metadata file %s is corrupt: %w", path, err)
	}
	return content, nil
}

// Remove deletes the sidecar for the given artifact if it exists.
func Remove(artifactPath string) error {
	if err := os.Remove(PathFor(artifactPath)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
