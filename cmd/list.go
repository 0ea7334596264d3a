package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fernwoodlabs/fw-backup/pkg/config"
	"github.com/fernwoodlabs/fw-backup/pkg/flagparse"
	"github.com/fernwoodlabs/fw-backup/pkg/metafile"
	"github.com/fernwoodlabs/fw-backup/pkg/plog"
)

// backupEntry pairs an artifact with its metadata for listing.
type backupEntry struct {
	ArtifactName string
	Meta         metafile.Content
}

// RunList handles the logic for the list command. It scans the destination
// directory for metadata sidecars and prints the runs, newest first.
func RunList(ctx context.Context, flagMap map[string]any) error {
	configPath, _ := flagMap["config"].(string)

	loadedConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	runConfig := config.MergeConfigWithFlags(flagparse.List, loadedConfig, flagMap)

	// The source is irrelevant for listing; only the destination matters.
	if err := runConfig.Validate(false); err != nil {
		return err
	}
	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	entries, err := CollectBackups(runConfig.DestinationFolder)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No backups found in %s\n", runConfig.DestinationFolder)
		return nil
	}

	fmt.Printf("Backups in %s:\n", runConfig.DestinationFolder)
	for _, e := range entries {
		fmt.Printf("  %-50s  %s  %-7s  %6d files  %10d bytes\n",
			e.ArtifactName,
			e.Meta.TimestampUTC.Format("2006-01-02 15:04:05 UTC"),
			e.Meta.Mode,
			e.Meta.Files,
			e.Meta.Bytes,
		)
	}
	return nil
}

// CollectBackups reads all metadata sidecars in dir, sorted newest first.
// A missing directory yields an empty list, not an error.
func CollectBackups(dir string) ([]backupEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read destination directory %s: %w", dir, err)
	}

	var entries []backupEntry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), metafile.MetaFileSuffix) {
			continue
		}
		artifactName := strings.TrimSuffix(de.Name(), metafile.MetaFileSuffix)
		meta, err := metafile.Read(filepath.Join(dir, artifactName))
		if err != nil {
			plog.Warn("Skipping unreadable metadata sidecar", "file", de.Name(), "error", err)
			continue
		}
		entries = append(entries, backupEntry{ArtifactName: artifactName, Meta: meta})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Meta.TimestampUTC.After(entries[j].Meta.TimestampUTC)
	})
	return entries, nil
}
