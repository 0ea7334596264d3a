package patharchive

import (
	"io"
	"sync/atomic"
)

// Metrics collects counters for one archive run. All methods are nil-safe so
// the caller can pass nil to disable collection.
type Metrics struct {
	EntriesProcessed atomic.Int64
	BytesRead        atomic.Int64
	BytesWritten     atomic.Int64
}

func (m *Metrics) AddEntriesProcessed(n int64) {
	if m != nil {
		m.EntriesProcessed.Add(n)
	}
}

func (m *Metrics) AddBytesRead(n int64) {
	if m != nil {
		m.BytesRead.Add(n)
	}
}

func (m *Metrics) AddBytesWritten(n int64) {
	if m != nil {
		m.BytesWritten.Add(n)
	}
}

// metricWriter counts compressed bytes on their way to the archive file.
type metricWriter struct {
	w io.Writer
	m *Metrics
}

func (mw *metricWriter) Write(p []byte) (int, error) {
	n, err := mw.w.Write(p)
	mw.m.AddBytesWritten(int64(n))
	return n, err
}

// metricReader counts source bytes as they are read for compression.
type metricReader struct {
	r io.Reader
	m *Metrics
}

func (mr *metricReader) Read(p []byte) (int, error) {
	n, err := mr.r.Read(p)
	mr.m.AddBytesRead(int64(n))
	return n, err
}
