package pathcopy

import "sync/atomic"

// Metrics collects counters for one copy run. All methods are nil-safe so the
// caller can pass nil to disable collection.
type Metrics struct {
	EntriesProcessed atomic.Int64
	FilesCopied      atomic.Int64
	FilesExcluded    atomic.Int64
	DirsCreated      atomic.Int64
	DirsExcluded     atomic.Int64
	BytesWritten     atomic.Int64
}

func (m *Metrics) AddEntriesProcessed(n int64) {
	if m != nil {
		m.EntriesProcessed.Add(n)
	}
}

func (m *Metrics) AddFilesCopied(n int64) {
	if m != nil {
		m.FilesCopied.Add(n)
	}
}

func (m *Metrics) AddFilesExcluded(n int64) {
	if m != nil {
		m.FilesExcluded.Add(n)
	}
}

func (m *Metrics) AddDirsCreated(n int64) {
	if m != nil {
		m.DirsCreated.Add(n)
	}
}

func (m *Metrics) AddDirsExcluded(n int64) {
	if m != nil {
		m.DirsExcluded.Add(n)
	}
}

func (m *Metrics) AddBytesWritten(n int64) {
	if m != nil {
		m.BytesWritten.Add(n)
	}
}
