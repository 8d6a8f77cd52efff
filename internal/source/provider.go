package source

import (
	"time"

	"github.com/TimelordUK/lview/pkg/logformat"
)

// SourceInfo identifies where a line came from
type SourceInfo struct {
	Path  string
	Index int // position of the file in a multi-file view
}

// Line represents a single line with optional metadata
type Line struct {
	Content       []byte
	Timestamp     *time.Time
	Level         logformat.Level
	Source        *SourceInfo
	OriginalIndex int // physical line number in the file
}

// LineProvider is the core abstraction for accessing lines.
// The viewport only interacts with this interface.
type LineProvider interface {
	// LineCount returns total number of lines
	LineCount() int

	// GetLine returns line at index (0-based)
	GetLine(index int) (*Line, error)

	// GetLines returns a range of lines efficiently
	GetLines(start, count int) ([]*Line, error)
}
