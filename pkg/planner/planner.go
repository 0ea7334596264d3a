// Package planner translates a validated configuration into the concrete plan
// a backup run executes. All format and level strings are parsed here, so the
// engine only ever sees typed values.
package planner

import (
	"fmt"

	"github.com/fernwoodlabs/fw-backup/pkg/config"
	"github.com/fernwoodlabs/fw-backup/pkg/patharchive"
	"github.com/fernwoodlabs/fw-backup/pkg/pathcopy"
	"github.com/fernwoodlabs/fw-backup/pkg/preflight"
)

// Naming controls how artifact names are generated.
type Naming struct {
	// TimeFormat is a Go reference-time layout for the artifact timestamp.
	TimeFormat string
	// VersionTag is the static suffix appended after the timestamp.
	VersionTag string
}

// BackupPlan is the full recipe for one backup run.
type BackupPlan struct {
	Mode   Mode
	DryRun bool
	Naming Naming

	Preflight *preflight.Plan
	Copy      *pathcopy.Plan
	Archive   *patharchive.Plan
}

// GenerateBackupPlan builds a BackupPlan from a validated configuration.
func GenerateBackupPlan(cfg config.Config) (*BackupPlan, error) {
	plan := &BackupPlan{
		Mode:   Copy,
		DryRun: cfg.Runtime.DryRun,
		Naming: Naming{
			TimeFormat: cfg.TimeFormat,
			VersionTag: cfg.VersionTag,
		},
		Preflight: &preflight.Plan{
			SourceAccessible:   true,
			TargetAccessible:   true,
			TargetWriteable:    true,
			PathNesting:        true,
			EnsureTargetExists: true,
			DryRun:             cfg.Runtime.DryRun,
		},
	}

	if cfg.CompressBackup {
		plan.Mode = Archive

		format, err := patharchive.ParseFormat(cfg.CompressionFormat)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		level, err := patharchive.ParseLevel(cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		plan.Archive = &patharchive.Plan{
			Format: format,
			Level:  level,
			DryRun: cfg.Runtime.DryRun,
		}
		return plan, nil
	}

	plan.Copy = &pathcopy.Plan{
		ExcludeFiles: cfg.ExcludeFiles,
		ExcludeDirs:  cfg.ExcludeDirs,
		DryRun:       cfg.Runtime.DryRun,
	}
	return plan, nil
}
