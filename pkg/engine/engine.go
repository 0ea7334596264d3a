// Package engine orchestrates a full backup run: preflight validation, target
// locking, overwrite of the previous artifact for the same day, the copy or
// archive itself, and the sidecar metadata record.
//
// The engine never returns an error to its caller. Every internal failure,
// including a panic in a worker package, is converted into a Result with
// Success set to false. The boundary above the engine only has to look at
// that one flag.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fernwoodlabs/fw-backup/pkg/buildinfo"
	"github.com/fernwoodlabs/fw-backup/pkg/lockfile"
	"github.com/fernwoodlabs/fw-backup/pkg/metafile"
	"github.com/fernwoodlabs/fw-backup/pkg/patharchive"
	"github.com/fernwoodlabs/fw-backup/pkg/pathcopy"
	"github.com/fernwoodlabs/fw-backup/pkg/planner"
	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/preflight"
)

// Result is the outcome of one backup run.
type Result struct {
	RunID        string
	Mode         planner.Mode
	ArtifactPath string
	Files        int64
	Bytes        int64
	Duration     time.Duration
	Success      bool
	Error        string
}

// Validator runs preflight checks before any filesystem mutation.
type Validator interface {
	Run(ctx context.Context, absSourcePath, absTargetBasePath string, p *preflight.Plan) error
}

// Copier reproduces a source tree at a target path.
type Copier interface {
	Copy(ctx context.Context, absSourcePath, absTargetPath string, p *pathcopy.Plan, m *pathcopy.Metrics) error
}

// Archiver compresses a source tree into an archive file.
type Archiver interface {
	Archive(ctx context.Context, absSourcePath, absArchiveFilePath string, p *patharchive.Plan, m *patharchive.Metrics) error
}

// Runner executes backup plans with injected workers.
type Runner struct {
	validator Validator
	copier    Copier
	archiver  Archiver
}

// NewRunner creates a Runner from its three workers.
func NewRunner(v Validator, c Copier, a Archiver) *Runner {
	return &Runner{validator: v, copier: c, archiver: a}
}

// ExecuteBackup runs one backup from start to finish and reports the outcome
// as a Result. It never returns an error; failures are carried in the Result.
func (r *Runner) ExecuteBackup(ctx context.Context, absSourcePath, absTargetBasePath string, p *planner.BackupPlan) (result Result) {
	startTime := time.Now()

	result = Result{
		RunID: uuid.NewString(),
		Mode:  p.Mode,
	}

	// A panic anywhere below must not escape the engine boundary.
	defer func() {
		if rec := recover(); rec != nil {
			result.Success = false
			result.Error = fmt.Sprintf("internal error: %v", rec)
		}
		result.Duration = time.Since(startTime)
		r.logCompletion(absSourcePath, absTargetBasePath, &result)
	}()

	if err := r.execute(ctx, absSourcePath, absTargetBasePath, p, &result); err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}

	result.Success = true
	return result
}

func (r *Runner) execute(ctx context.Context, absSourcePath, absTargetBasePath string, p *planner.BackupPlan, result *Result) error {
	// Check for cancellation at the very beginning.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	timestamp := time.Now()

	// Run Preflight Validation
	if err := r.validator.Run(ctx, absSourcePath, absTargetBasePath, p.Preflight); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	// Acquire Lock on Target Directory. A held lock means another run is
	// already writing into this destination; that counts as a failed run.
	releaseLock, err := r.acquireTargetLock(absTargetBasePath, p.DryRun)
	if err != nil {
		return err
	}
	defer releaseLock()

	artifactPath := r.artifactPath(absSourcePath, absTargetBasePath, timestamp, p)
	result.ArtifactPath = artifactPath

	plog.Info("Starting backup", "source", absSourcePath, "artifact", artifactPath, "mode", p.Mode.String())

	// Overwrite semantics: a previous artifact with the same name is removed,
	// never duplicated.
	if err := r.removePriorArtifact(artifactPath, p.DryRun); err != nil {
		return err
	}

	switch p.Mode {
	case planner.Archive:
		var m patharchive.Metrics
		if err := r.archiver.Archive(ctx, absSourcePath, artifactPath, p.Archive, &m); err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}
		result.Files = m.EntriesProcessed.Load()
		result.Bytes = m.BytesWritten.Load()
	default:
		var m pathcopy.Metrics
		if err := r.copier.Copy(ctx, absSourcePath, artifactPath, p.Copy, &m); err != nil {
			return fmt.Errorf("copy failed: %w", err)
		}
		result.Files = m.FilesCopied.Load()
		result.Bytes = m.BytesWritten.Load()
	}

	return r.writeMetafile(artifactPath, p, result)
}

// artifactPath derives the artifact name from the source basename, the local
// run timestamp and the static version tag.
func (r *Runner) artifactPath(absSourcePath, absTargetBasePath string, timestamp time.Time, p *planner.BackupPlan) string {
	name := fmt.Sprintf("%s_%s_%s",
		filepath.Base(absSourcePath),
		timestamp.Format(p.Naming.TimeFormat),
		p.Naming.VersionTag,
	)
	if p.Mode == planner.Archive {
		name += p.Archive.Format.Extension()
	}
	return filepath.Join(absTargetBasePath, name)
}

// removePriorArtifact deletes an existing artifact of the same name along
// with its metadata sidecar.
func (r *Runner) removePriorArtifact(artifactPath string, dryRun bool) error {
	if _, err := os.Lstat(artifactPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot inspect existing artifact %s: %w", artifactPath, err)
	}

	if dryRun {
		plog.Info("[DRY RUN] Would remove existing artifact", "path", artifactPath)
		return nil
	}

	plog.Info("Removing existing artifact", "path", artifactPath)
	if err := os.RemoveAll(artifactPath); err != nil {
		return fmt.Errorf("failed to remove existing artifact %s: %w", artifactPath, err)
	}
	if err := metafile.Remove(artifactPath); err != nil {
		return fmt.Errorf("failed to remove metadata of %s: %w", artifactPath, err)
	}
	return nil
}

func (r *Runner) writeMetafile(artifactPath string, p *planner.BackupPlan, result *Result) error {
	if p.DryRun {
		plog.Debug("[DRY RUN] Would write metadata sidecar", "path", metafile.PathFor(artifactPath))
		return nil
	}
	content := &metafile.Content{
		Version:      buildinfo.Version,
		RunID:        result.RunID,
		TimestampUTC: time.Now().UTC(),
		Mode:         p.Mode.String(),
		Files:        result.Files,
		Bytes:        result.Bytes,
	}
	if p.Mode == planner.Archive {
		content.Format = p.Archive.Format.String()
	}
	if err := metafile.Write(artifactPath, content); err != nil {
		return fmt.Errorf("backup succeeded but metadata write failed: %w", err)
	}
	return nil
}

// acquireTargetLock acquires a file lock in the target directory and returns
// a release function. In dry-run mode no lock file is written.
func (r *Runner) acquireTargetLock(absTargetBasePath string, dryRun bool) (func(), error) {
	if dryRun {
		return func() {}, nil
	}

	appID := fmt.Sprintf("fw-backup:%s", absTargetBasePath)

	plog.Debug("Attempting to acquire lock", "path", absTargetBasePath)
	lock, err := lockfile.Acquire(absTargetBasePath, appID)
	if err != nil {
		var lockErr *lockfile.ErrLockActive
		if errors.As(err, &lockErr) {
			return nil, fmt.Errorf("another backup is already running for this target: %w", err)
		}
		return nil, fmt.Errorf("failed to acquire target lock: %w", err)
	}

	return func() {
		if err := lock.Release(); err != nil {
			plog.Warn("Failed to release target lock", "error", err)
		}
	}, nil
}

// logCompletion emits the one-line summary every run ends with, success or not.
func (r *Runner) logCompletion(absSourcePath, absTargetBasePath string, result *Result) {
	status := "SUCCESS"
	if !result.Success {
		status = "FAILED"
	}
	args := []any{
		"status", status,
		"run_id", result.RunID,
		"source", absSourcePath,
		"target", absTargetBasePath,
		"mode", result.Mode.String(),
		"files", result.Files,
		"duration", result.Duration.Round(time.Millisecond).String(),
	}
	if result.Error != "" {
		args = append(args, "error", result.Error)
	}
	if result.Success {
		plog.Info("Backup completed", args...)
	} else {
		plog.Error("Backup failed", args...)
	}
}
