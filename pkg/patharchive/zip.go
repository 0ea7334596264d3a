package patharchive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/fernwoodlabs/fw-backup/pkg/pool"
)

type zipCompressor struct {
	level Level
}

func (c *zipCompressor) writeArchive(ctx context.Context, absSourcePath string, targetF *os.File, bufferPool *pool.FixedBufferPool, m *Metrics) (retErr error) {
	mw := &metricWriter{w: targetF, m: m}
	bufWriter := bufio.NewWriter(mw)

	zipWriter := zip.NewWriter(bufWriter)
	zipWriter.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		var lvl int
		switch c.level {
		case Fastest:
			lvl = flate.BestSpeed
		case Better:
			lvl = 6 // Good balance
		case Best:
			lvl = flate.BestCompression
		default:
			lvl = flate.DefaultCompression
		}
		return flate.NewWriter(out, lvl)
	})

	// Robust cleanup
	defer func() {
		if err := zipWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("zip writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	return walkAndArchive(ctx, absSourcePath, bufferPool, m, func(absSrcPath, relPath string, info os.FileInfo, buf []byte) error {
		// Add File Logic
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to create zip header for %s: %w", relPath, err)
		}
		header.Name = relPath
		header.Method = zip.Deflate

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create entry for %s: %w", relPath, err)
		}

		fileToZip, err := os.Open(absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", absSrcPath, err)
		}
		defer fileToZip.Close()

		// Ensure the file we opened is the same one we discovered in the walk.
		// This prevents attacks where a file is swapped for a symlink after discovery.
		if openedInfo, err := fileToZip.Stat(); err != nil {
			return fmt.Errorf("failed to stat opened file %s: %w", absSrcPath, err)
		} else if !os.SameFile(info, openedInfo) {
			return fmt.Errorf("file changed during backup (possible security attack): %s", absSrcPath)
		}

		mr := &metricReader{r: fileToZip, m: m}
		_, err = io.CopyBuffer(writer, mr, buf)
		return err
	}, func(absSrcPath, relPath string, info os.FileInfo) error {
		// Add Symlink Logic
		target, err := os.Readlink(absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to read link target for %s: %w", absSrcPath, err)
		}
		m.AddBytesRead(int64(len(target)))

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to create zip header for %s: %w", relPath, err)
		}
		header.Name = relPath
		header.Method = zip.Store // Symlinks are stored, not compressed

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create entry for %s: %w", relPath, err)
		}
		_, err = writer.Write([]byte(target))
		return err
	})
}
