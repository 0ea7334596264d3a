package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fernwoodlabs/fw-backup/pkg/buildinfo"
	"github.com/fernwoodlabs/fw-backup/pkg/config"
	"github.com/fernwoodlabs/fw-backup/pkg/engine"
	"github.com/fernwoodlabs/fw-backup/pkg/flagparse"
	"github.com/fernwoodlabs/fw-backup/pkg/patharchive"
	"github.com/fernwoodlabs/fw-backup/pkg/pathcopy"
	"github.com/fernwoodlabs/fw-backup/pkg/planner"
	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/preflight"
)

// RunBackup handles the logic for the main backup execution.
func RunBackup(ctx context.Context, flagMap map[string]any) error {
	configPath, _ := flagMap["config"].(string)

	// Load config from the working directory (or -config), or use defaults.
	loadedConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config to get the final run config.
	runConfig := config.MergeConfigWithFlags(flagparse.Backup, loadedConfig, flagMap)

	// CRITICAL: Validate the config for the run
	if err := runConfig.Validate(true); err != nil {
		return err
	}

	// Set the global log level based on the final configuration.
	plog.SetLevel(plog.LevelFromString(runConfig.LogLevel))

	// Attach the append-only log file for this run.
	if runConfig.LogFile != "" {
		detach, err := plog.AddFile(runConfig.LogFile)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() {
			if err := detach(); err != nil {
				plog.Warn("Failed to close log file", "error", err)
			}
		}()
	}

	// Log the Summary
	runConfig.LogSummary()

	// Create the runner and feed it with our leaf workers
	runner := engine.NewRunner(
		preflight.NewValidator(),
		pathcopy.NewPathCopier(runConfig.BufferSizeKB),
		patharchive.NewPathArchiver(runConfig.BufferSizeKB),
	)

	// Get the Plan
	backupPlan, err := planner.GenerateBackupPlan(runConfig)
	if err != nil {
		return err
	}

	// Execute the plan. The engine collapses every failure into the result.
	result := runner.ExecuteBackup(ctx, runConfig.SourceFolder, runConfig.DestinationFolder, backupPlan)
	if !result.Success {
		return fmt.Errorf("backup failed: %s", result.Error)
	}

	plog.Info(buildinfo.Name+" finished successfully.", "files", result.Files, "duration", result.Duration.Round(time.Millisecond).String())
	return nil
}
