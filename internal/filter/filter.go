// Package filter decides which physical lines of a file are visible under a
// stack of include and exclude filters.
//
// Filters classify whole messages: a line that starts a message and the
// continuation lines after it share one decision. A filter buffers the
// lines of the message in progress and only writes them into the line mask
// once the next message starts (or the file's current end is reached), so
// the newest message can be reopened when more of it arrives.
package filter

import (
	"fmt"
)

// Kind says what an enabled filter does with the lines it matches
type Kind int

const (
	Include Kind = iota
	Exclude
)

func (k Kind) String() string {
	if k == Exclude {
		return "out"
	}
	return "in"
}

// Predicate is the match capability behind a filter
type Predicate interface {
	// Matches must not have side effects. It is called for continuation
	// lines as well as message starts.
	Matches(file File, line int, content []byte) bool
	// ID identifies the predicate within a Set, e.g. the pattern text.
	ID() string
}

// commander is implemented by predicates that serialise to something other
// than filter-in / filter-out.
type commander interface {
	Command(kind Kind) string
}

// Filter is a predicate registered in a Set. Its index is the bit it owns
// in every line mask.
type Filter struct {
	index   int
	kind    Kind
	enabled bool
	pred    Predicate
}

func (f *Filter) Index() int           { return f.index }
func (f *Filter) Kind() Kind           { return f.kind }
func (f *Filter) Enabled() bool        { return f.enabled }
func (f *Filter) ID() string           { return f.pred.ID() }
func (f *Filter) Predicate() Predicate { return f.pred }

func (f *Filter) bit() uint32 {
	return uint32(1) << uint(f.index)
}

// Matches evaluates the predicate for one physical line
func (f *Filter) Matches(file File, line int, content []byte) bool {
	return f.pred.Matches(file, line, content)
}

// Command renders the filter as the command that recreates it
func (f *Filter) Command() string {
	if c, ok := f.pred.(commander); ok {
		return c.Command(f.kind)
	}
	if f.kind == Exclude {
		return "filter-out " + f.ID()
	}
	return "filter-in " + f.ID()
}

func (f *Filter) String() string {
	return fmt.Sprintf("%d:%s:%s", f.index, f.kind, f.ID())
}

// AddLine feeds one physical line. A line that is not a continuation
// closes the previous message first.
func (f *Filter) AddLine(st *State, line int, continued bool, content []byte) {
	matched := f.Matches(st.file, line, content)

	if !continued {
		f.EndOfMessage(st)
	}

	i := f.index
	st.messageMatched[i] = st.messageMatched[i] || matched
	st.linesForMessage[i]++
}

// EndOfMessage writes the buffered message into the mask: every line of it
// gets the same bit.
func (f *Filter) EndOfMessage(st *State) {
	i := f.index
	matched := st.messageMatched[i]
	var bit uint32
	if matched {
		bit = f.bit()
	}

	total := st.totalLines()
	for n := 0; n < st.linesForMessage[i]; n++ {
		line := st.filterCount[i]
		if line >= total {
			panic(f.invariant(st, "end-of-message",
				fmt.Sprintf("finalizing line %d of a file with %d lines", line, total)))
		}
		st.Resize(line + 1)
		st.mask[line] |= bit
		st.filterCount[i]++
		if matched {
			st.filterHits[i]++
		}
	}

	st.lastMessageMatched[i] = matched
	st.lastLinesForMessage[i] = st.linesForMessage[i]
	st.messageMatched[i] = false
	st.linesForMessage[i] = 0
}

// RevertToLast undoes the most recent EndOfMessage and puts that message
// back in progress, minus the rollback trailing lines that are going to be
// read again.
func (f *Filter) RevertToLast(st *State, rollback int) {
	i := f.index
	if st.linesForMessage[i] != 0 {
		panic(f.invariant(st, "revert",
			fmt.Sprintf("%d lines still accumulating", st.linesForMessage[i])))
	}

	st.messageMatched[i] = st.lastMessageMatched[i]
	st.linesForMessage[i] = st.lastLinesForMessage[i]

	keep := ^f.bit()
	for n := 0; n < st.linesForMessage[i]; n++ {
		if st.messageMatched[i] {
			st.filterHits[i]--
		}
		st.filterCount[i]--
		st.mask[st.filterCount[i]] &= keep
	}

	if st.linesForMessage[i] > 0 {
		if st.linesForMessage[i] < rollback {
			panic(f.invariant(st, "revert",
				fmt.Sprintf("rollback of %d lines exceeds the %d buffered", rollback, st.linesForMessage[i])))
		}
		st.linesForMessage[i] -= rollback
	}
	if st.linesForMessage[i] == 0 {
		st.messageMatched[i] = false
	}

	// the snapshot has been consumed
	st.lastMessageMatched[i] = false
	st.lastLinesForMessage[i] = 0
}

func (f *Filter) invariant(st *State, op, detail string) *InvariantError {
	i := f.index
	return &InvariantError{
		Op:              op,
		Filter:          i,
		FilterID:        f.ID(),
		File:            st.path(),
		TotalLines:      st.totalLines(),
		FilterCount:     st.filterCount[i],
		FilterHits:      st.filterHits[i],
		LinesForMessage: st.linesForMessage[i],
		Detail:          detail,
	}
}

// InvariantError describes a broken rescan/rollback protocol. It is raised
// with panic: the state it was found in cannot be trusted.
type InvariantError struct {
	Op              string
	Filter          int
	FilterID        string
	File            string
	TotalLines      int
	FilterCount     int
	FilterHits      int
	LinesForMessage int
	Detail          string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("filter invariant violated in %s: %s (filter %d %q, file %q, lines=%d count=%d hits=%d buffered=%d)",
		e.Op, e.Detail, e.Filter, e.FilterID, e.File, e.TotalLines, e.FilterCount, e.FilterHits, e.LinesForMessage)
}
