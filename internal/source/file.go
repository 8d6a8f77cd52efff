package source

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/TimelordUK/lview/internal/config"
	"github.com/TimelordUK/lview/internal/index"
	lviewio "github.com/TimelordUK/lview/internal/io"
	"github.com/TimelordUK/lview/pkg/logformat"
)

// ErrClosed is returned when a closed file is asked to rebuild its index.
var ErrClosed = errors.New("file source closed")

const defaultSampleLines = 10

// RebuildResult reports what a RebuildIndex pass found
type RebuildResult int

const (
	NoChange RebuildResult = iota
	NewLines
	// NewOrder means line numbers seen before may now refer to other
	// content, e.g. after the file was truncated and rewritten.
	NewOrder
)

func (r RebuildResult) String() string {
	switch r {
	case NewLines:
		return "new-lines"
	case NewOrder:
		return "new-order"
	}
	return "no-change"
}

// LineObserver is told about every line a rebuild pass indexes.
//
// A pass that found data calls Restart once, NewLine for each new or
// re-read line in order, then EOF. Restart's rollback is the number of
// lines from the end of the previous pass that are being read again.
// Reset replaces Restart when the file was truncated.
type LineObserver interface {
	Restart(f *FileSource, rollback int)
	NewLine(f *FileSource, line int, content []byte)
	EOF(f *FileSource)
	Reset(f *FileSource)
}

// Option configures a FileSource
type Option func(*FileSource)

// WithContinuation sets how continuation lines are recognised
func WithContinuation(fn logformat.ContinuationFunc) Option {
	return func(s *FileSource) { s.continued = fn }
}

// WithDetector enables structured format detection over the first
// sampleLines lines.
func WithDetector(d logformat.Detector, sampleLines int) Option {
	return func(s *FileSource) {
		s.detector = d
		if sampleLines > 0 {
			s.sampleLines = sampleLines
		}
	}
}

// WithFs sets the filesystem used for existence checks
func WithFs(fs afero.Fs) Option {
	return func(s *FileSource) { s.fs = fs }
}

// ConfigOptions derives message grouping and format detection from cfg
func ConfigOptions(cfg *config.Config) []Option {
	opts := []Option{
		WithContinuation(logformat.PrefixContinuation(cfg.Messages.ContinuationPrefixes...)),
	}
	if cfg.Messages.DetectJSON {
		opts = append(opts, WithDetector(logformat.JSONDetector{MinLines: 2}, defaultSampleLines))
	}
	return opts
}

// FileSource provides lines from a single growing file
type FileSource struct {
	file      *lviewio.MappedFile
	lineIndex *index.LineIndex
	path      string
	fs        afero.Fs
	continued logformat.ContinuationFunc

	observer LineObserver

	detector    logformat.Detector
	sampleLines int
	format      logformat.Format
	detected    bool

	closed bool
}

// NewFileSource opens path and indexes its current content
func NewFileSource(path string, opts ...Option) (*FileSource, error) {
	s := &FileSource{
		path:        path,
		fs:          afero.NewOsFs(),
		sampleLines: defaultSampleLines,
	}
	for _, opt := range opts {
		opt(s)
	}

	file, err := lviewio.OpenMapped(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.file = file
	s.lineIndex = index.New(file, s.continued)

	if _, err := s.lineIndex.Scan(); err != nil {
		file.Close()
		return nil, err
	}
	s.detectFormat()

	return s, nil
}

// Path returns the file path
func (s *FileSource) Path() string {
	return s.path
}

// LineCount returns total number of physical lines
func (s *FileSource) LineCount() int {
	return s.lineIndex.LineCount()
}

// ReadLine returns the raw bytes of a physical line
func (s *FileSource) ReadLine(idx int) ([]byte, error) {
	return s.lineIndex.GetLine(idx)
}

// LineLength returns the length in bytes of a physical line
func (s *FileSource) LineLength(idx int) (int, error) {
	content, err := s.lineIndex.GetLine(idx)
	if err != nil {
		return 0, err
	}
	return len(content), nil
}

// IsContinued reports whether a line continues an earlier message
func (s *FileSource) IsContinued(idx int) bool {
	return s.lineIndex.Continued(idx)
}

// GetLine returns line at index
func (s *FileSource) GetLine(idx int) (*Line, error) {
	content, err := s.lineIndex.GetLine(idx)
	if err != nil {
		return nil, err
	}

	return &Line{
		Content:       content,
		OriginalIndex: idx,
	}, nil
}

// GetLines returns a range of lines
func (s *FileSource) GetLines(start, count int) ([]*Line, error) {
	rawLines, err := s.lineIndex.GetLines(start, count)
	if err != nil {
		return nil, err
	}

	lines := make([]*Line, len(rawLines))
	for i, content := range rawLines {
		lines[i] = &Line{
			Content:       content,
			OriginalIndex: start + i,
		}
	}
	return lines, nil
}

// SetObserver installs the observer fed by RebuildIndex and ReobserveFrom
func (s *FileSource) SetObserver(o LineObserver) {
	s.observer = o
}

// Format returns the detected structured format, if any
func (s *FileSource) Format() logformat.Format {
	return s.format
}

// Exists reports whether the file is still present on disk
func (s *FileSource) Exists() bool {
	ok, err := afero.Exists(s.fs, s.path)
	return err == nil && ok
}

// IsClosed reports whether Close was called
func (s *FileSource) IsClosed() bool {
	return s.closed
}

// Close releases the mapping
func (s *FileSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// RebuildIndex picks up bytes appended since the last pass and feeds the
// affected lines to the observer. Errors are I/O faults; callers treat
// them as the file having been closed.
func (s *FileSource) RebuildIndex() (RebuildResult, error) {
	if s.closed {
		return NoChange, ErrClosed
	}

	grew, err := s.file.Refresh()
	truncated := errors.Is(err, lviewio.ErrTruncated)
	if err != nil && !truncated {
		return NoChange, fmt.Errorf("refresh %s: %w", s.path, err)
	}
	if !grew {
		return NoChange, nil
	}

	result := NewLines
	if truncated {
		s.lineIndex.Reset()
		result = NewOrder
	}

	res, err := s.lineIndex.Scan()
	if err != nil {
		return NoChange, err
	}

	if s.observer != nil {
		if truncated {
			s.observer.Reset(s)
		} else {
			s.observer.Restart(s, res.Rollback)
		}
		if err := s.observe(res.Start); err != nil {
			return NoChange, err
		}
	}
	s.detectFormat()

	return result, nil
}

// ReobserveFrom replays lines [start, LineCount) through the observer
// followed by EOF.
func (s *FileSource) ReobserveFrom(start int) error {
	if s.observer == nil {
		return nil
	}
	return s.observe(start)
}

func (s *FileSource) observe(start int) error {
	total := s.lineIndex.LineCount()
	for i := start; i < total; i++ {
		content, err := s.lineIndex.GetLine(i)
		if err != nil {
			return fmt.Errorf("read %s line %d: %w", s.path, i, err)
		}
		s.observer.NewLine(s, i, content)
	}
	s.observer.EOF(s)
	return nil
}

func (s *FileSource) detectFormat() {
	if s.detector == nil || s.detected {
		return
	}
	sample, err := s.lineIndex.GetLines(0, s.sampleLines)
	if err != nil || len(sample) == 0 {
		return
	}
	s.format = s.detector.Detect(sample)
	if s.format != logformat.FormatText || len(sample) >= s.sampleLines {
		s.detected = true
	}
}
