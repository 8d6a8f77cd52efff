package filter

import (
	"fmt"
	"sort"
)

// MaxFilters is the width of a line mask and the most filters a Set holds.
const MaxFilters = 32

// File is what filters and their state need to know about the file whose
// lines they classify.
type File interface {
	Path() string
	LineCount() int
}

// State is the per-file filter state. Every array is indexed by a filter's
// index; mask and the visible-line index are indexed by physical line.
type State struct {
	file File

	mask []uint32

	// filterCount is the number of lines a filter has finalized. It is the
	// write cursor into mask and the rollback boundary.
	filterCount [MaxFilters]int
	filterHits  [MaxFilters]int

	// accumulation for the message in progress
	messageMatched  [MaxFilters]bool
	linesForMessage [MaxFilters]int

	// the previous message, kept so its finalization can be undone
	lastMessageMatched  [MaxFilters]bool
	lastLinesForMessage [MaxFilters]int

	// physical lines that passed the enabled filters, ascending
	index []int
}

// NewState returns empty state for file
func NewState(file File) *State {
	return &State{file: file}
}

// File returns the file this state describes
func (s *State) File() File {
	return s.file
}

// Resize makes room in the mask for n lines. It never shrinks.
func (s *State) Resize(n int) {
	if n <= len(s.mask) {
		return
	}
	if n <= cap(s.mask) {
		s.mask = s.mask[:n]
		return
	}
	grown := make([]uint32, n, n+n/2)
	copy(grown, s.mask)
	s.mask = grown
}

// Clear drops everything, as if no line had been seen
func (s *State) Clear() {
	file := s.file
	*s = State{file: file}
}

// ClearFilter forgets everything filter i has recorded
func (s *State) ClearFilter(i int) {
	bit := ^(uint32(1) << uint(i))
	for line := range s.mask {
		s.mask[line] &= bit
	}
	s.filterCount[i] = 0
	s.filterHits[i] = 0
	s.messageMatched[i] = false
	s.linesForMessage[i] = 0
	s.lastMessageMatched[i] = false
	s.lastLinesForMessage[i] = 0
}

// Mask returns the combined match bits of a physical line
func (s *State) Mask(line int) uint32 {
	if line < 0 || line >= len(s.mask) {
		return 0
	}
	return s.mask[line]
}

// MaskLen returns the number of lines the mask has room for
func (s *State) MaskLen() int { return len(s.mask) }

func (s *State) FilterCount(i int) int         { return s.filterCount[i] }
func (s *State) FilterHits(i int) int          { return s.filterHits[i] }
func (s *State) MessageMatched(i int) bool     { return s.messageMatched[i] }
func (s *State) LinesForMessage(i int) int     { return s.linesForMessage[i] }
func (s *State) LastMessageMatched(i int) bool { return s.lastMessageMatched[i] }
func (s *State) LastLinesForMessage(i int) int { return s.lastLinesForMessage[i] }

// Index returns the visible physical lines. Callers must not modify it.
func (s *State) Index() []int {
	return s.index
}

// IndexLen returns how many lines are visible
func (s *State) IndexLen() int {
	return len(s.index)
}

// IndexAt maps a visible row to its physical line
func (s *State) IndexAt(row int) (int, bool) {
	if row < 0 || row >= len(s.index) {
		return 0, false
	}
	return s.index[row], true
}

// RowFor returns the visible row showing physical line, or -1
func (s *State) RowFor(line int) int {
	row := sort.SearchInts(s.index, line)
	if row < len(s.index) && s.index[row] == line {
		return row
	}
	return -1
}

// TruncateIndex drops visible entries for physical lines >= line
func (s *State) TruncateIndex(line int) {
	s.index = s.index[:sort.SearchInts(s.index, line)]
}

// AppendIndex records physical line as visible. Lines must be appended in
// ascending order.
func (s *State) AppendIndex(line int) {
	if n := len(s.index); n > 0 && s.index[n-1] >= line {
		panic(fmt.Sprintf("filter: visible index out of order: %d after %d", line, s.index[n-1]))
	}
	s.index = append(s.index, line)
}

func (s *State) totalLines() int {
	if s.file == nil {
		return len(s.mask)
	}
	return s.file.LineCount()
}

func (s *State) path() string {
	if s.file == nil {
		return ""
	}
	return s.file.Path()
}
