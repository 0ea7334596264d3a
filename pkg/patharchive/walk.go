package patharchive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fernwoodlabs/fw-backup/pkg/plog"
	"github.com/fernwoodlabs/fw-backup/pkg/pool"
	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// walkAndArchive walks the source tree in lexical order and feeds every file
// and symlink to the format-specific callbacks. Directories themselves carry
// no content and are not written as entries.
func walkAndArchive(
	ctx context.Context,
	absSourcePath string,
	bufferPool *pool.FixedBufferPool,
	m *Metrics,
	addFile func(absSourcePathEntry, relTargetPathKey string, info os.FileInfo, buf []byte) error,
	addSymlink func(absSourcePathEntry, relTargetPathKey string, info os.FileInfo) error,
) error {
	return filepath.WalkDir(absSourcePath, func(absSourcePathEntry string, d os.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", absSourcePathEntry, err)
		}

		relTargetPathKey, err := filepath.Rel(absSourcePath, absSourcePathEntry)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", absSourcePathEntry, err)
		}
		relTargetPathKey = util.NormalizePath(relTargetPathKey)

		if info.Mode()&os.ModeSymlink != 0 {
			plog.Notice("ADD", "file", relTargetPathKey)
			m.AddEntriesProcessed(1)
			return addSymlink(absSourcePathEntry, relTargetPathKey, info)
		}
		if !info.Mode().IsRegular() {
			plog.Warn("Skipping irregular file", "path", relTargetPathKey, "mode", info.Mode().String())
			return nil
		}

		plog.Notice("ADD", "file", relTargetPathKey)
		m.AddEntriesProcessed(1)

		bufPtr := bufferPool.Get()
		defer bufferPool.Put(bufPtr)
		return addFile(absSourcePathEntry, relTargetPathKey, info, *bufPtr)
	})
}
