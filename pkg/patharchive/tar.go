package patharchive

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/fernwoodlabs/fw-backup/pkg/pool"
)

type tarCompressor struct {
	compression Format
	level       Level
}

func (c *tarCompressor) writeArchive(ctx context.Context, absSourcePath string, targetF *os.File, bufferPool *pool.FixedBufferPool, m *Metrics) (retErr error) {
	mw := &metricWriter{w: targetF, m: m}
	bufWriter := bufio.NewWriter(mw)

	var compressedWriter io.WriteCloser
	if c.compression == TarZst {
		var encoderLevel zstd.EncoderLevel
		switch c.level {
		case Fastest:
			encoderLevel = zstd.SpeedFastest
		case Better:
			encoderLevel = zstd.SpeedBetterCompression
		case Best:
			encoderLevel = zstd.SpeedBestCompression
		default:
			encoderLevel = zstd.SpeedDefault
		}

		zstdWriter, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(encoderLevel))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	} else {
		var lvl int
		switch c.level {
		case Fastest:
			lvl = pgzip.BestSpeed
		case Better:
			lvl = 6 // Good balance
		case Best:
			lvl = pgzip.BestCompression
		default:
			lvl = pgzip.DefaultCompression
		}
		pgzipWriter, err := pgzip.NewWriterLevel(bufWriter, lvl)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressedWriter = pgzipWriter
	}

	tarWriter := tar.NewWriter(compressedWriter)

	// Robust cleanup
	defer func() {
		if err := tarWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	return walkAndArchive(ctx, absSourcePath, bufferPool, m, func(absSrcPath, relPath string, info os.FileInfo, buf []byte) error {
		// Add File Logic
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", absSrcPath, err)
		}
		header.Name = relPath

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", relPath, err)
		}

		fileToTar, err := os.Open(absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", absSrcPath, err)
		}
		defer fileToTar.Close()

		// Ensure the file we opened is the same one we discovered in the walk.
		// This prevents attacks where a file is swapped for a symlink after discovery.
		if openedInfo, err := fileToTar.Stat(); err != nil {
			return fmt.Errorf("failed to stat opened file %s: %w", absSrcPath, err)
		} else if !os.SameFile(info, openedInfo) {
			return fmt.Errorf("file changed during backup (possible security attack): %s", absSrcPath)
		}

		mr := &metricReader{r: fileToTar, m: m}
		_, err = io.CopyBuffer(tarWriter, mr, buf)
		return err
	}, func(absSrcPath, relPath string, info os.FileInfo) error {
		// Add Symlink Logic
		target, err := os.Readlink(absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to read link target for %s: %w", absSrcPath, err)
		}
		m.AddBytesRead(int64(len(target)))

		header, err := tar.FileInfoHeader(info, target)
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", relPath, err)
		}
		header.Name = relPath

		return tarWriter.WriteHeader(header)
	})
}
