package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fernwoodlabs/fw-backup/pkg/buildinfo"
	"github.com/fernwoodlabs/fw-backup/pkg/flagparse"
	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// ConfigFileName is the default name of the configuration file, looked up in
// the working directory unless overridden with the -config flag.
const ConfigFileName = "fw-backup.config.json"

// RuntimeConfig holds per-run options that are never persisted.
type RuntimeConfig struct {
	DryRun bool
}

// Config is the flat preference record persisted to disk. The four original
// keys (source_folder, destination_folder, compress_backup,
// backup_interval_days) keep their exact names for compatibility with existing
// config files.
type Config struct {
	Version            string        `json:"version"`
	SourceFolder       string        `json:"source_folder"`
	DestinationFolder  string        `json:"destination_folder"`
	CompressBackup     bool          `json:"compress_backup"`
	BackupIntervalDays int           `json:"backup_interval_days"` // Accepted and persisted; scheduling itself is out of scope.
	LogLevel           string        `json:"log_level"`
	LogFile            string        `json:"log_file"`
	CompressionFormat  string        `json:"compression_format"`
	CompressionLevel   string        `json:"compression_level"`
	TimeFormat         string        `json:"time_format"`
	VersionTag         string        `json:"version_tag"`
	ExcludeFiles       []string      `json:"exclude_files"`
	ExcludeDirs        []string      `json:"exclude_dirs"`
	BufferSizeKB       int           `json:"buffer_size_kb"`
	Runtime            RuntimeConfig `json:"-"` // Never added to config file
}

// NewDefault creates and returns a Config struct with sensible default values.
func NewDefault() Config {
	return Config{
		Version:            buildinfo.Version,
		SourceFolder:       "", // Intentionally empty to force user configuration.
		DestinationFolder:  "", // Intentionally empty to force user configuration.
		CompressBackup:     false,
		BackupIntervalDays: 7,
		LogLevel:           "info",
		LogFile:            filepath.Join("logs", "fw-backup.log"),
		CompressionFormat:  "zip",     // Deflate zip is the canonical archive mode.
		CompressionLevel:   "default", //
		TimeFormat:         "2006-01-02_15-04-05",
		VersionTag:         "v1.0.0",
		ExcludeFiles:       []string{}, // Empty by default so a copy reproduces the tree exactly.
		ExcludeDirs:        []string{},
		BufferSizeKB:       256, // Default to 256KB buffer. Keep it between 64KB-4MB
	}
}

// Load attempts to load the configuration from the given path. A missing file
// is a normal case and yields the defaults. A corrupt file is replaced on disk
// with the defaults, which are then returned; this mirrors how the preference
// record has always behaved and keeps the application startable.
func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigFileName
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil // Config file doesn't exist, which is a normal case.
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", path, err)
	}
	defer file.Close()

	plog.Debug("Loading configuration", "path", path)

	// Start with default values, then overwrite with the file's content.
	// This makes the config loading resilient to missing fields in the JSON file.
	config := NewDefault()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		plog.Warn("Config file is corrupt, replacing it with defaults", "path", path, "error", err)
		defaults := NewDefault()
		if saveErr := Save(path, defaults); saveErr != nil {
			plog.Warn("Could not rewrite corrupt config file", "path", path, "error", saveErr)
		}
		return defaults, nil
	}

	// At this point the config would have been migrated if needed, so override
	// the version in the struct.
	if config.Version != buildinfo.Version {
		config.Version = buildinfo.Version
	}
	return config, nil
}

// Save creates or overwrites the configuration file at the given path.
func Save(path string, config Config) error {
	if path == "" {
		path = ConfigFileName
	}

	jsonData, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", path)
	return nil
}

// Validate checks the configuration for logical errors and inconsistencies.
// Paths are expanded and cleaned in place so callers can use them directly.
// When checkSource is true, the source must be an existing directory.
func (c *Config) Validate(checkSource bool) error {
	// --- Strict Path Validation (Fail-Fast) ---
	if checkSource && c.SourceFolder == "" {
		return errors.New("source path cannot be empty")
	}
	if c.DestinationFolder == "" {
		return errors.New("destination path cannot be empty")
	}

	var err error

	// --- Validate Source Path ---
	if c.SourceFolder != "" {
		c.SourceFolder, err = util.ExpandedAbsPath(c.SourceFolder)
		if err != nil {
			return fmt.Errorf("could not expand source path: %w", err)
		}

		if checkSource {
			info, err := os.Stat(c.SourceFolder)
			if os.IsNotExist(err) {
				return fmt.Errorf("source path '%s' does not exist", c.SourceFolder)
			}
			if err != nil {
				return fmt.Errorf("cannot access source path '%s': %w", c.SourceFolder, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("source path '%s' is not a directory", c.SourceFolder)
			}
		}
	}

	// --- Validate Destination Path ---
	c.DestinationFolder, err = util.ExpandedAbsPath(c.DestinationFolder)
	if err != nil {
		return fmt.Errorf("could not expand destination path: %w", err)
	}

	// --- Validate Engine Settings ---
	if c.BufferSizeKB <= 0 {
		return errors.New("buffer_size_kb must be greater than 0")
	}
	if c.BackupIntervalDays < 0 {
		return errors.New("backup_interval_days cannot be negative")
	}
	if c.TimeFormat == "" {
		return errors.New("time_format cannot be empty")
	}
	if c.VersionTag == "" {
		return errors.New("version_tag cannot be empty")
	}

	if err := validateGlobPatterns("exclude_files", c.ExcludeFiles); err != nil {
		return err
	}
	if err := validateGlobPatterns("exclude_dirs", c.ExcludeDirs); err != nil {
		return err
	}
	return nil
}

// LogSummary prints a user-friendly summary of the configuration.
func (c *Config) LogSummary() {
	logArgs := []any{
		"log_level", c.LogLevel,
		"source", c.SourceFolder,
		"destination", c.DestinationFolder,
		"compress", c.CompressBackup,
		"dry_run", c.Runtime.DryRun,
		"buffer_size_kb", c.BufferSizeKB,
	}
	if c.CompressBackup {
		logArgs = append(logArgs, "format", c.CompressionFormat, "level", c.CompressionLevel)
	}
	if c.LogFile != "" {
		logArgs = append(logArgs, "log_file", c.LogFile)
	}
	if len(c.ExcludeFiles) > 0 {
		logArgs = append(logArgs, "exclude_files", c.ExcludeFiles)
	}
	if len(c.ExcludeDirs) > 0 {
		logArgs = append(logArgs, "exclude_dirs", c.ExcludeDirs)
	}
	plog.Info("Configuration loaded", logArgs...)
}

// validateGlobPatterns checks if a list of strings are valid glob patterns.
func validateGlobPatterns(fieldName string, patterns []string) error {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid glob pattern for %s: %q - %w", fieldName, pattern, err)
		}
	}
	return nil
}

// MergeConfigWithFlags overlays the configuration values from flags on top of a
// base configuration. It iterates over the setFlags map, which contains only
// the flags explicitly provided by the user on the command line.
func MergeConfigWithFlags(command flagparse.Command, base Config, setFlags map[string]any) Config {
	merged := base

	for name, value := range setFlags {
		switch name {
		case "source":
			merged.SourceFolder = value.(string)
		case "target":
			merged.DestinationFolder = value.(string)
		case "compress":
			merged.CompressBackup = value.(bool)
		case "compression-format":
			merged.CompressionFormat = value.(string)
		case "compression-level":
			merged.CompressionLevel = value.(string)
		case "log-level":
			merged.LogLevel = value.(string)
		case "log-file":
			merged.LogFile = value.(string)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "exclude-files":
			merged.ExcludeFiles = value.([]string)
		case "exclude-dirs":
			merged.ExcludeDirs = value.([]string)
		case "buffer-size-kb":
			merged.BufferSizeKB = value.(int)
		case "config", "force":
			// Handled by the command layer, not part of the record.
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name, "command", command.String())
		}
	}
	return merged
}
