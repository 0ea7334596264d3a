// Package preflight provides validation checks that run before a backup
// begins. The checks are stateless and idempotent, with the exception of the
// writability check and target creation, which touch the filesystem.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// Validator runs the checks selected by a Plan.
type Validator struct{}

// NewValidator creates a preflight validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Run executes all checks enabled in the plan, in a fixed order, and returns
// the first failure. In dry-run mode filesystem-modifying checks are skipped.
func (v *Validator) Run(ctx context.Context, absSourcePath, absTargetBasePath string, p *Plan) error {
	if p == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if p.SourceAccessible {
		if err := CheckBackupSourceAccessible(absSourcePath); err != nil {
			return err
		}
	}
	if p.PathNesting {
		if err := CheckPathNesting(absSourcePath, absTargetBasePath); err != nil {
			return err
		}
	}
	if p.TargetAccessible {
		if err := CheckBackupTargetAccessible(absTargetBasePath); err != nil {
			return err
		}
	}
	if p.TargetWriteable {
		if p.DryRun {
			plog.Debug("[DRY RUN] Skipping target write check", "target", absTargetBasePath)
		} else if err := CheckBackupTargetWritable(absTargetBasePath); err != nil {
			return err
		}
	} else if p.EnsureTargetExists && !p.DryRun {
		if err := os.MkdirAll(absTargetBasePath, util.UserWritableDirPerms); err != nil {
			return fmt.Errorf("failed to create target directory %s: %w", absTargetBasePath, err)
		}
	}
	return nil
}

// CheckBackupSourceAccessible validates that the source path exists and is a directory.
func CheckBackupSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source directory %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}

	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}

	return nil
}

// CheckPathNesting rejects configurations where one path contains the other,
// which would make the backup recurse into its own output.
func CheckPathNesting(absSourcePath, absTargetBasePath string) error {
	src := filepath.Clean(absSourcePath)
	dst := filepath.Clean(absTargetBasePath)
	if src == dst {
		return fmt.Errorf("source and target are the same directory: %s", src)
	}
	if strings.HasPrefix(dst+string(filepath.Separator), src+string(filepath.Separator)) {
		return fmt.Errorf("target %s is nested inside source %s", dst, src)
	}
	if strings.HasPrefix(src+string(filepath.Separator), dst+string(filepath.Separator)) {
		return fmt.Errorf("source %s is nested inside target %s", src, dst)
	}
	return nil
}

// CheckBackupTargetAccessible performs pre-flight checks to ensure the backup target is usable.
// It provides more user-friendly errors than letting os.MkdirAll fail.
//
// The checks include:
//  1. On Windows, verifies that the drive or network share (e.g., "Z:", "\\Server\Share") exists.
//  2. If the target path exists, confirms it is a directory.
//  3. If the target path does not exist, confirms its deepest existing ancestor is accessible.
//  4. On Unix, if the path looks like a mount point, it verifies the device is actually mounted
//     to prevent writing to a "ghost" directory on the root filesystem.
func CheckBackupTargetAccessible(targetPath string) error {
	// --- 1. Check if the Volume/Drive exists, windows only ---
	if err := checkVolumeExists(targetPath); err != nil {
		return err
	}

	// --- 2. Check existence and type ---
	info, err := os.Stat(targetPath)
	if os.IsNotExist(err) {
		// Target doesn't exist yet. Walk up to the deepest existing ancestor
		// and validate that instead; if /mnt/backup/projects doesn't exist,
		// is /mnt/backup actually mounted?
		ancestor := targetPath
		for {
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				break // Hit root
			}
			ancestor = parent
			if _, err := os.Stat(ancestor); err == nil {
				break
			}
		}
		return validateMountPoint(ancestor)
	} else if err != nil {
		return fmt.Errorf("cannot access target path: %w", err)
	}

	// --- 3. The Target Path Exists ---
	if !info.IsDir() {
		return fmt.Errorf("target path exists but is not a directory: %s", targetPath)
	}

	return validateMountPoint(targetPath)
}

// CheckBackupTargetWritable ensures the target directory can be created and is writable
// by performing filesystem modifications.
func CheckBackupTargetWritable(targetPath string) error {
	// Ensure the destination directory can be created.
	if err := os.MkdirAll(targetPath, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create target directory %s: %w", targetPath, err)
	}

	// Perform a thorough write check by creating and deleting a temporary file.
	tempFile := filepath.Join(targetPath, ".fw-backup-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("target directory %s is not writable: %w", targetPath, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}
