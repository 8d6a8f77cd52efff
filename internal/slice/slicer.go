package slice

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/TimelordUK/lview/internal/source"
)

// Info describes an exported slice
type Info struct {
	SourcePath string // file the rows came from
	CachePath  string // where they were written
	StartRow   int    // first visible row, inclusive
	EndRow     int    // last visible row, exclusive
	Lines      int    // rows written
}

// Slicer writes ranges of visible rows to files
type Slicer struct {
	fs       afero.Fs
	cacheDir string
}

// NewSlicer creates a slicer writing under dir on fs
func NewSlicer(fs afero.Fs, dir string) *Slicer {
	return &Slicer{fs: fs, cacheDir: dir}
}

// SliceRange writes visible rows [start, end) of p to a new file named
// after name. end is clamped to the row count.
func (s *Slicer) SliceRange(p source.LineProvider, name string, start, end int) (*Info, error) {
	if start < 0 {
		start = 0
	}
	if end > p.LineCount() {
		end = p.LineCount()
	}
	if start >= end {
		return nil, fmt.Errorf("invalid range: %d-%d", start, end)
	}

	if err := s.fs.MkdirAll(s.cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create slice dir: %w", err)
	}
	file, err := afero.TempFile(s.fs, s.cacheDir, fmt.Sprintf("lview-slice-%d-%d-*-%s", start, end, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create slice file: %w", err)
	}
	cachePath := file.Name()

	n, err := WriteRows(file, p, start, end)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.fs.Remove(cachePath)
		return nil, err
	}

	return &Info{
		SourcePath: name,
		CachePath:  cachePath,
		StartRow:   start,
		EndRow:     end,
		Lines:      n,
	}, nil
}

// WriteRows copies visible rows [start, end) of p to w, one per line, and
// returns how many were written.
func WriteRows(w io.Writer, p source.LineProvider, start, end int) (int, error) {
	const batch = 512

	bw := bufio.NewWriter(w)
	written := 0
	for row := start; row < end; row += batch {
		lines, err := p.GetLines(row, min(batch, end-row))
		if err != nil {
			return written, fmt.Errorf("failed to read row %d: %w", row, err)
		}
		for _, line := range lines {
			if _, err := bw.Write(line.Content); err != nil {
				return written, fmt.Errorf("failed to write row: %w", err)
			}
			if err := bw.WriteByte('\n'); err != nil {
				return written, fmt.Errorf("failed to write newline: %w", err)
			}
			written++
		}
		if len(lines) == 0 {
			break
		}
	}
	return written, bw.Flush()
}

// Cleanup removes a slice's file
func (s *Slicer) Cleanup(info *Info) error {
	if info == nil || info.CachePath == "" {
		return nil
	}
	return s.fs.Remove(info.CachePath)
}
