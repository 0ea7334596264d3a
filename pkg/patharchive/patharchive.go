// Package patharchive compresses a source directory tree into a single
// archive artifact. The walk is sequential; the archive is written to a
// temporary file in the destination directory and renamed into place, so a
// partial archive never appears under the final name.
package patharchive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/pool"
)

// Plan holds the per-run options of an archive operation.
type Plan struct {
	Format Format
	Level  Level

	// Global Flags
	DryRun bool
}

// compressor writes one archive format.
type compressor interface {
	writeArchive(ctx context.Context, absSourcePath string, targetF *os.File, bufferPool *pool.FixedBufferPool, m *Metrics) error
}

// Archiver creates archive artifacts using pooled I/O buffers.
type Archiver struct {
	ioBufferPool *pool.FixedBufferPool
}

// NewPathArchiver creates an Archiver with the given I/O buffer size.
func NewPathArchiver(bufferSizeKB int) *Archiver {
	return &Archiver{
		ioBufferPool: pool.NewFixedBuffer(int64(bufferSizeKB) * 1024),
	}
}

// Archive compresses absSourcePath into an archive at absArchiveFilePath.
// The archive's entries are the source's files and symlinks, keyed by their
// slash-separated path relative to the source root.
func (a *Archiver) Archive(ctx context.Context, absSourcePath, absArchiveFilePath string, p *Plan, m *Metrics) (retErr error) {
	if p.DryRun {
		plog.Debug("[DRY RUN] Would create archive", "source", absSourcePath, "archive", absArchiveFilePath, "format", p.Format)
		return nil
	}

	var c compressor
	switch p.Format {
	case Zip:
		c = &zipCompressor{level: p.Level}
	case TarGz, TarZst:
		c = &tarCompressor{compression: p.Format, level: p.Level}
	default:
		return fmt.Errorf("unsupported archive format: %s", p.Format)
	}

	// 1. Create Temp File
	targetF, err := os.CreateTemp(filepath.Dir(absArchiveFilePath), "fw-backup-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempName := targetF.Name()

	// Ensure cleanup on error
	defer func() {
		if retErr != nil {
			targetF.Close()
			os.Remove(tempName)
		}
	}()

	// 2. Write Archive Content
	if err := c.writeArchive(ctx, absSourcePath, targetF, a.ioBufferPool, m); err != nil {
		return err
	}

	// 3. Close explicitly
	if err := targetF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 4. Atomic Rename
	if err := os.Rename(tempName, absArchiveFilePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	return nil
}
