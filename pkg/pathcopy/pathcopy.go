// Package pathcopy reproduces a source directory tree at a target path. The
// walk is sequential and deterministic: entries are visited in the lexical
// order of filepath.WalkDir, and the target ends up with the same directories,
// files, symlinks, permissions and file modification times as the source.
package pathcopy

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/pool"
	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// Plan holds the per-run options of a copy operation.
type Plan struct {
	ExcludeFiles []string
	ExcludeDirs  []string

	// Global Flags
	DryRun bool
}

// Copier copies directory trees using pooled I/O buffers.
type Copier struct {
	ioBufferPool *pool.FixedBufferPool
	ioBufferSize int64
}

// NewPathCopier creates a Copier with the given I/O buffer size.
func NewPathCopier(bufferSizeKB int) *Copier {
	size := int64(bufferSizeKB) * 1024
	return &Copier{
		ioBufferPool: pool.NewFixedBuffer(size),
		ioBufferSize: size,
	}
}

// Copy replicates absSourcePath at absTargetPath. The target directory itself
// is created; pre-existing content under it is the caller's concern. The walk
// aborts on the first error or on context cancellation.
func (c *Copier) Copy(ctx context.Context, absSourcePath, absTargetPath string, p *Plan, m *Metrics) error {
	excludeFiles := makeExclusionSet(p.ExcludeFiles)
	excludeDirs := makeExclusionSet(p.ExcludeDirs)

	return filepath.WalkDir(absSourcePath, func(srcPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk failed at %s: %w", srcPath, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(absSourcePath, srcPath)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", srcPath, err)
		}
		trgPath := filepath.Join(absTargetPath, relPath)

		relPathKey := normalizeExclusionPattern(relPath)
		relPathBasename := normalizeExclusionPattern(d.Name())

		if d.IsDir() {
			if relPath != "." && excludeDirs.matches(relPathKey, relPathBasename) {
				plog.Debug("Excluding directory", "path", relPath)
				m.AddDirsExcluded(1)
				return filepath.SkipDir
			}
			return c.copyDir(srcPath, trgPath, d, p, m)
		}

		if excludeFiles.matches(relPathKey, relPathBasename) {
			plog.Debug("Excluding file", "path", relPath)
			m.AddFilesExcluded(1)
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			return c.copySymlink(srcPath, trgPath, p, m)
		}
		if !d.Type().IsRegular() {
			// Sockets, devices and pipes cannot be meaningfully copied.
			plog.Warn("Skipping irregular file", "path", relPath, "mode", d.Type().String())
			return nil
		}
		return c.copyFile(srcPath, trgPath, p, m)
	})
}

func (c *Copier) copyDir(srcPath, trgPath string, d fs.DirEntry, p *Plan, m *Metrics) error {
	m.AddEntriesProcessed(1)
	if p.DryRun {
		plog.Debug("[DRY RUN] Would create directory", "path", trgPath)
		return nil
	}
	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", srcPath, err)
	}
	// Keep the source permissions but guarantee we can write into and
	// traverse the copy while the walk is still filling it.
	perm := util.WithUserExecutePermission(util.WithUserWritePermission(info.Mode().Perm()))
	if err := os.MkdirAll(trgPath, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", trgPath, err)
	}
	m.AddDirsCreated(1)
	return nil
}

func (c *Copier) copySymlink(srcPath, trgPath string, p *Plan, m *Metrics) error {
	m.AddEntriesProcessed(1)
	target, err := os.Readlink(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read symlink %s: %w", srcPath, err)
	}
	if p.DryRun {
		plog.Debug("[DRY RUN] Would create symlink", "path", trgPath, "target", target)
		return nil
	}
	if err := os.Symlink(target, trgPath); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", trgPath, err)
	}
	return nil
}

// copyFile copies a single regular file. It writes to a temporary file in the
// destination directory first and renames it into place, so a partial write
// never appears under the final name.
func (c *Copier) copyFile(srcPath, trgPath string, p *Plan, m *Metrics) error {
	m.AddEntriesProcessed(1)
	if p.DryRun {
		plog.Debug("[DRY RUN] Would copy file", "source", srcPath, "target", trgPath)
		m.AddFilesCopied(1)
		return nil
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcPath, err)
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", srcPath, err)
	}

	trgDir := filepath.Dir(trgPath)
	out, err := os.CreateTemp(trgDir, "fw-backup-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", trgDir, err)
	}
	tempPath := out.Name()
	// If the rename succeeds, tempPath is cleared and this becomes a no-op.
	defer func() {
		if tempPath != "" {
			os.Remove(tempPath)
		}
	}()

	bufPtr := c.ioBufferPool.Get()
	defer c.ioBufferPool.Put(bufPtr)

	written, err := io.CopyBuffer(out, in, *bufPtr)
	if err != nil {
		out.Close()
		return fmt.Errorf("failed to copy content from %s to %s: %w", srcPath, tempPath, err)
	}

	if err := out.Chmod(srcInfo.Mode()); err != nil {
		out.Close()
		return fmt.Errorf("failed to set permissions on temporary file %s: %w", tempPath, err)
	}

	// Close flushes data to disk. It must happen before Chtimes because
	// closing might update the modification time.
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file %s: %w", tempPath, err)
	}
	if err := os.Chtimes(tempPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return fmt.Errorf("failed to set timestamps on %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, trgPath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", tempPath, err)
	}
	tempPath = ""

	m.AddFilesCopied(1)
	m.AddBytesWritten(written)
	return nil
}
