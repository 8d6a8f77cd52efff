package io

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/exp/mmap"
)

// ErrTruncated is returned by Refresh when the file became smaller than
// what was mapped before.
var ErrTruncated = errors.New("file truncated")

// MappedFile provides memory-mapped read access to a file. The mapping is
// replaced when the file grows, so readers and Refresh are serialized.
type MappedFile struct {
	mu     sync.RWMutex
	reader *mmap.ReaderAt
	size   int64
	path   string
}

// OpenMapped opens a file with memory mapping
func OpenMapped(path string) (*MappedFile, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	return &MappedFile{
		reader: reader,
		size:   int64(reader.Len()),
		path:   path,
	}, nil
}

// ReadAt reads len(p) bytes at offset
func (m *MappedFile) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.reader == nil {
		return 0, os.ErrClosed
	}
	return m.reader.ReadAt(p, off)
}

// Size returns the mapped size
func (m *MappedFile) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Path returns the file path
func (m *MappedFile) Path() string {
	return m.path
}

// Close closes the memory mapping
func (m *MappedFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reader == nil {
		return nil
	}
	err := m.reader.Close()
	m.reader = nil
	return err
}

// Refresh re-maps the file if it has grown and reports whether it did.
// A shrunken file is remapped as well and reported with ErrTruncated.
func (m *MappedFile) Refresh() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reader == nil {
		return false, os.ErrClosed
	}

	newSize := info.Size()
	if newSize == m.size {
		return false, nil
	}

	reader, err := mmap.Open(m.path)
	if err != nil {
		return false, fmt.Errorf("remap %s: %w", m.path, err)
	}
	m.reader.Close()

	oldSize := m.size
	m.reader = reader
	m.size = int64(reader.Len())
	if m.size < oldSize {
		return true, ErrTruncated
	}
	return true, nil
}

// ReadRange reads bytes from start to end
func (m *MappedFile) ReadRange(start, end int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.reader == nil {
		return nil, os.ErrClosed
	}
	if end > m.size {
		end = m.size
	}
	if start >= end {
		return nil, nil
	}

	buf := make([]byte, end-start)
	if _, err := m.reader.ReadAt(buf, start); err != nil {
		return nil, err
	}
	return buf, nil
}
