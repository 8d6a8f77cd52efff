package index

import (
	"bytes"
	"fmt"
	"sync"

	lviewio "github.com/TimelordUK/lview/internal/io"
	"github.com/TimelordUK/lview/pkg/logformat"
)

const chunkSize = 64 * 1024

// Entry describes one physical line
type Entry struct {
	Offset    int64
	Continued bool // belongs to the message started by an earlier line
}

// ScanResult describes what a Scan added. Lines from Start on are new or
// re-read; Rollback counts the lines that were dropped and re-read because
// they were incomplete on the previous scan.
type ScanResult struct {
	Start    int
	Rollback int
}

// LineIndex stores the byte offset and continuation flag of each line
type LineIndex struct {
	mu        sync.RWMutex
	file      *lviewio.MappedFile
	entries   []Entry
	end       int64 // bytes indexed so far
	partial   bool  // last entry has no trailing newline yet
	continued logformat.ContinuationFunc
}

// New creates an empty index over file. Nothing is read until Scan.
func New(file *lviewio.MappedFile, continued logformat.ContinuationFunc) *LineIndex {
	if continued == nil {
		continued = logformat.NoContinuation
	}
	return &LineIndex{
		file:      file,
		continued: continued,
	}
}

// Scan indexes everything between the last indexed byte and the current
// end of the mapping. A trailing partial line from the previous scan is
// dropped and read again.
func (idx *LineIndex) Scan() (ScanResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	res := ScanResult{Start: len(idx.entries)}
	pos := idx.end
	if idx.partial {
		last := idx.entries[len(idx.entries)-1]
		idx.entries = idx.entries[:len(idx.entries)-1]
		idx.partial = false
		pos = last.Offset
		res.Start--
		res.Rollback = 1
	}

	size := idx.file.Size()
	buf := make([]byte, chunkSize)
	for pos < size {
		n := len(buf)
		if pos+int64(n) > size {
			n = int(size - pos)
		}
		read, err := idx.file.ReadAt(buf[:n], pos)
		if err != nil && read < n {
			return res, fmt.Errorf("read %s at %d: %w", idx.file.Path(), pos, err)
		}

		chunk := buf[:n]
		consumed := 0
		for {
			nl := bytes.IndexByte(chunk[consumed:], '\n')
			if nl < 0 {
				break
			}
			idx.add(pos+int64(consumed), chunk[consumed:consumed+nl])
			consumed += nl + 1
		}

		atEOF := pos+int64(n) == size
		switch {
		case atEOF && consumed < n:
			idx.add(pos+int64(consumed), chunk[consumed:])
			idx.partial = true
			consumed = n
		case consumed == 0:
			// a single line longer than the buffer
			buf = make([]byte, len(buf)*2)
			continue
		}
		pos += int64(consumed)
	}
	idx.end = size

	return res, nil
}

func (idx *LineIndex) add(offset int64, content []byte) {
	cont := len(idx.entries) > 0 && idx.continued(bytes.TrimRight(content, "\r"))
	idx.entries = append(idx.entries, Entry{Offset: offset, Continued: cont})
}

// Reset forgets everything indexed so far
func (idx *LineIndex) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = nil
	idx.end = 0
	idx.partial = false
}

// LineCount returns the total number of lines
func (idx *LineIndex) LineCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Partial reports whether the last line is still missing its newline
func (idx *LineIndex) Partial() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.partial
}

// Continued reports whether line continues an earlier message
func (idx *LineIndex) Continued(lineNum int) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if lineNum < 0 || lineNum >= len(idx.entries) {
		return false
	}
	return idx.entries[lineNum].Continued
}

func (idx *LineIndex) bounds(lineNum int) (int64, int64, bool) {
	if lineNum < 0 || lineNum >= len(idx.entries) {
		return 0, 0, false
	}
	start := idx.entries[lineNum].Offset
	end := idx.end
	if lineNum+1 < len(idx.entries) {
		end = idx.entries[lineNum+1].Offset
	}
	return start, end, true
}

// GetLine returns the content of line at given index (0-based), without
// the line terminator
func (idx *LineIndex) GetLine(lineNum int) ([]byte, error) {
	idx.mu.RLock()
	start, end, ok := idx.bounds(lineNum)
	idx.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("line %d out of range", lineNum)
	}

	content, err := idx.file.ReadRange(start, end)
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(content, "\r\n"), nil
}

// GetLines returns up to count lines starting at start
func (idx *LineIndex) GetLines(start, count int) ([][]byte, error) {
	total := idx.LineCount()
	if start < 0 {
		start = 0
	}
	if start >= total {
		return nil, nil
	}
	if start+count > total {
		count = total - start
	}

	lines := make([][]byte, count)
	for i := 0; i < count; i++ {
		line, err := idx.GetLine(start + i)
		if err != nil {
			return nil, err
		}
		lines[i] = line
	}
	return lines, nil
}

// ByteOffset returns the byte offset of a line, or -1
func (idx *LineIndex) ByteOffset(lineNum int) int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	start, _, ok := idx.bounds(lineNum)
	if !ok {
		return -1
	}
	return start
}
