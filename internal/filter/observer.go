package filter

import (
	"github.com/TimelordUK/lview/internal/source"
)

// Observer feeds a file's lines through the enabled filters of a Set and
// keeps that file's State. It is installed as the file's line observer.
type Observer struct {
	set   *Set
	file  *source.FileSource
	state *State

	// generation of the Set the state was built against
	generation uint64

	active    []*Filter
	activeGen uint64

	// lines observed so far
	seen int
	// earliest line reopened by the last Restart/Reset, -1 if none
	rescanFrom int
}

// NewObserver creates an observer with empty state. Call Rebuild to
// classify lines the file already has.
func NewObserver(set *Set, file *source.FileSource) *Observer {
	return &Observer{
		set:        set,
		file:       file,
		state:      NewState(file),
		generation: set.Generation(),
		rescanFrom: -1,
	}
}

func (o *Observer) State() *State            { return o.state }
func (o *Observer) File() *source.FileSource { return o.file }

// Stale reports whether the filter stack changed since the state was built
func (o *Observer) Stale() bool {
	return o.generation != o.set.Generation()
}

// Restart reopens the last finalized message of every enabled filter.
func (o *Observer) Restart(_ *source.FileSource, rollback int) {
	o.seen -= rollback
	if o.seen < 0 {
		o.seen = 0
	}
	from := o.seen
	for _, f := range o.enabled() {
		f.RevertToLast(o.state, rollback)
		if c := o.state.filterCount[f.index]; c < from {
			from = c
		}
	}
	o.markRescan(from)
}

// NewLine runs one physical line through the enabled filters that have
// not finalized it yet.
func (o *Observer) NewLine(f *source.FileSource, line int, content []byte) {
	o.state.Resize(f.LineCount())
	continued := f.IsContinued(line)
	for _, flt := range o.enabled() {
		if line >= o.state.filterCount[flt.index] {
			flt.AddLine(o.state, line, continued, content)
		}
	}
	if line+1 > o.seen {
		o.seen = line + 1
	}
}

// EOF finalizes the message in progress.
func (o *Observer) EOF(_ *source.FileSource) {
	for _, f := range o.enabled() {
		f.EndOfMessage(o.state)
	}
}

// Reset forgets everything; the file was rewritten from the start.
func (o *Observer) Reset(_ *source.FileSource) {
	o.state.Clear()
	o.seen = 0
	o.markRescan(0)
}

func (o *Observer) markRescan(line int) {
	if o.rescanFrom < 0 || line < o.rescanFrom {
		o.rescanFrom = line
	}
}

// TakeRescanFrom returns and clears the earliest line whose visibility may
// have changed since the last call.
func (o *Observer) TakeRescanFrom() (int, bool) {
	from := o.rescanFrom
	o.rescanFrom = -1
	return from, from >= 0
}

// Excluded reports whether line is hidden under the given masks
func (o *Observer) Excluded(in, out uint32, line int) bool {
	return Excluded(o.state.Mask(line), in, out)
}

// UpdateIndex recomputes visibility for physical lines from line on.
func (o *Observer) UpdateIndex(from int) {
	in, out := o.set.EnabledMasks()
	o.state.TruncateIndex(from)
	total := o.file.LineCount()
	for line := from; line < total; line++ {
		if o.Excluded(in, out, line) {
			continue
		}
		o.state.AppendIndex(line)
	}
}

// Rebuild throws the state away and classifies every line of the file
// again under the current filter stack.
func (o *Observer) Rebuild() error {
	o.state.Clear()
	o.seen = 0
	o.rescanFrom = -1
	o.generation = o.set.Generation()
	if err := o.file.ReobserveFrom(0); err != nil {
		return err
	}
	o.rescanFrom = -1
	o.UpdateIndex(0)
	return nil
}

// enabled caches the Set's enabled filters; this runs once per line.
func (o *Observer) enabled() []*Filter {
	if o.active == nil || o.activeGen != o.set.Generation() {
		o.active = o.set.Enabled()
		if o.active == nil {
			o.active = []*Filter{}
		}
		o.activeGen = o.set.Generation()
	}
	return o.active
}

// MinCount returns the smallest number of finalized lines over the enabled
// filters, capped at max.
func (o *Observer) MinCount(max int) int {
	min := max
	for _, f := range o.enabled() {
		if c := o.state.filterCount[f.index]; c < min {
			min = c
		}
	}
	return min
}
