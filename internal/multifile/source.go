// Package multifile manages the ordered set of files shown together in one
// view. The front file is the current one: its filtered index drives every
// row query.
package multifile

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TimelordUK/lview/internal/filter"
	"github.com/TimelordUK/lview/internal/search"
	"github.com/TimelordUK/lview/internal/source"
	"github.com/TimelordUK/lview/pkg/logformat"
)

var (
	ErrUnknownFile = errors.New("file not in view")
	ErrNoFile      = errors.New("no current file")
	ErrRowRange    = errors.New("row out of range")
)

// Callback is told what a Rescan did to individual files
type Callback interface {
	// ClosedFile is called after a file that went away or failed to read
	// was dropped from the view.
	ClosedFile(f *source.FileSource)
	// PromoteFile hands over a file recognised as a structured format. It
	// has been dropped from the view but not closed.
	PromoteFile(f *source.FileSource, format logformat.Format)
	// ScannedFile is called for every file that is still in the view after
	// its scan.
	ScannedFile(f *source.FileSource)
}

// Listener is the viewer side of the source
type Listener interface {
	// ReloadData means row numbers may refer to other lines now
	ReloadData()
	// RedoSearch means search results of the current file are stale
	RedoSearch()
	// SearchNewData asks for physical lines [from, to) of f to be searched
	SearchNewData(f *source.FileSource, from, to int)
}

type entry struct {
	file *source.FileSource
	obs  *filter.Observer
	job  *search.Job
}

// Option configures a Source
type Option func(*Source)

// WithListener sets the viewer hooks
func WithListener(l Listener) Option {
	return func(s *Source) { s.listener = l }
}

// WithLogger sets the diagnostic logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Source) { s.log = log }
}

// Source is the ordered collection of files sharing one filter stack
type Source struct {
	filters  *filter.Set
	files    []*source.FileSource
	entries  map[*source.FileSource]*entry
	listener Listener
	log      zerolog.Logger
}

// New creates an empty view over the given filter stack
func New(filters *filter.Set, opts ...Option) *Source {
	s := &Source{
		filters: filters,
		entries: make(map[*source.FileSource]*entry),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetListener replaces the viewer hooks; nil removes them
func (s *Source) SetListener(l Listener) {
	s.listener = l
}

// Filters returns the shared filter stack
func (s *Source) Filters() *filter.Set {
	return s.filters
}

// Add attaches filter state to f, classifies its current lines and appends
// it to the end of the list. It does not become current unless the view
// was empty.
func (s *Source) Add(f *source.FileSource) error {
	if _, ok := s.entries[f]; ok {
		return nil
	}
	obs := filter.NewObserver(s.filters, f)
	f.SetObserver(obs)
	if err := obs.Rebuild(); err != nil {
		f.SetObserver(nil)
		return fmt.Errorf("index %s: %w", f.Path(), err)
	}

	s.entries[f] = &entry{file: f, obs: obs}
	s.files = append(s.files, f)
	s.log.Debug().Str("file", f.Path()).Int("lines", f.LineCount()).Msg("file added")
	if len(s.files) == 1 {
		s.reload()
	}
	return nil
}

// Remove drops f and its filter state. The file is not closed.
func (s *Source) Remove(f *source.FileSource) error {
	if !s.detach(f) {
		return fmt.Errorf("%w: %s", ErrUnknownFile, f.Path())
	}
	return nil
}

func (s *Source) detach(f *source.FileSource) bool {
	e, ok := s.entries[f]
	if !ok {
		return false
	}
	if e.job != nil {
		e.job.Cancel()
	}
	f.SetObserver(nil)
	delete(s.entries, f)

	wasFront := s.files[0] == f
	for i, cur := range s.files {
		if cur == f {
			s.files = append(s.files[:i], s.files[i+1:]...)
			break
		}
	}
	if wasFront {
		s.ensureFresh()
		s.reload()
	}
	return true
}

// RotateLeft makes the second file current and moves the current one to
// the back.
func (s *Source) RotateLeft() {
	if len(s.files) <= 1 {
		return
	}
	front := s.files[0]
	copy(s.files, s.files[1:])
	s.files[len(s.files)-1] = front
	s.frontChanged()
}

// RotateRight makes the last file current
func (s *Source) RotateRight() {
	if len(s.files) <= 1 {
		return
	}
	back := s.files[len(s.files)-1]
	copy(s.files[1:], s.files[:len(s.files)-1])
	s.files[0] = back
	s.frontChanged()
}

// ToFront makes f current. It returns false when f is not in the view.
func (s *Source) ToFront(f *source.FileSource) bool {
	for i, cur := range s.files {
		if cur != f {
			continue
		}
		if i > 0 {
			copy(s.files[1:i+1], s.files[:i])
			s.files[0] = f
		}
		s.frontChanged()
		return true
	}
	return false
}

func (s *Source) frontChanged() {
	s.ensureFresh()
	s.reload()
	if s.listener != nil {
		s.listener.RedoSearch()
	}
}

// ensureFresh rebuilds the current file's state if the filter stack moved
// on since it was built.
func (s *Source) ensureFresh() {
	e := s.current()
	if e == nil || !e.obs.Stale() {
		return
	}
	if err := e.obs.Rebuild(); err != nil {
		s.log.Warn().Err(err).Str("file", e.file.Path()).Msg("rebuild failed")
	}
}

func (s *Source) reload() {
	if s.listener != nil {
		s.listener.ReloadData()
	}
}

func (s *Source) current() *entry {
	if len(s.files) == 0 {
		return nil
	}
	return s.entries[s.files[0]]
}

// Current returns the front file, or nil
func (s *Source) Current() *source.FileSource {
	if len(s.files) == 0 {
		return nil
	}
	return s.files[0]
}

// Files returns the files in view order
func (s *Source) Files() []*source.FileSource {
	out := make([]*source.FileSource, len(s.files))
	copy(out, s.files)
	return out
}

func (s *Source) Len() int { return len(s.files) }

func (s *Source) Contains(f *source.FileSource) bool {
	_, ok := s.entries[f]
	return ok
}

// State returns the filter state of f, or nil
func (s *Source) State(f *source.FileSource) *filter.State {
	if e, ok := s.entries[f]; ok {
		return e.obs.State()
	}
	return nil
}

// LineCount returns the number of visible rows of the current file
func (s *Source) LineCount() int {
	e := s.current()
	if e == nil {
		return 0
	}
	return e.obs.State().IndexLen()
}

// OriginalLineNumber maps a visible row to its physical line, or -1
func (s *Source) OriginalLineNumber(row int) int {
	e := s.current()
	if e == nil {
		return -1
	}
	line, ok := e.obs.State().IndexAt(row)
	if !ok {
		return -1
	}
	return line
}

// FilteredIndexFor maps a physical line of the current file to its
// visible row, or -1 when it is hidden.
func (s *Source) FilteredIndexFor(line int) int {
	e := s.current()
	if e == nil {
		return -1
	}
	return e.obs.State().RowFor(line)
}

func (s *Source) resolve(row int) (*entry, int, error) {
	e := s.current()
	if e == nil {
		return nil, 0, ErrNoFile
	}
	line, ok := e.obs.State().IndexAt(row)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %d of %d", ErrRowRange, row, e.obs.State().IndexLen())
	}
	return e, line, nil
}

// ValueForLine returns the content of visible row n
func (s *Source) ValueForLine(row int) ([]byte, error) {
	e, line, err := s.resolve(row)
	if err != nil {
		return nil, err
	}
	return e.file.ReadLine(line)
}

// LengthForLine returns the byte length of visible row n
func (s *Source) LengthForLine(row int) (int, error) {
	e, line, err := s.resolve(row)
	if err != nil {
		return 0, err
	}
	return e.file.LineLength(line)
}

// GetLine returns visible row n of the current file
func (s *Source) GetLine(row int) (*source.Line, error) {
	e, line, err := s.resolve(row)
	if err != nil {
		return nil, err
	}
	content, err := e.file.ReadLine(line)
	if err != nil {
		return nil, err
	}
	return &source.Line{
		Content:       content,
		Source:        &source.SourceInfo{Path: e.file.Path()},
		OriginalIndex: line,
	}, nil
}

// GetLines returns up to count visible rows starting at start
func (s *Source) GetLines(start, count int) ([]*source.Line, error) {
	total := s.LineCount()
	if start < 0 || start >= total || count <= 0 {
		return nil, nil
	}
	end := min(start+count, total)

	lines := make([]*source.Line, 0, end-start)
	for row := start; row < end; row++ {
		line, err := s.GetLine(row)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// OnFiltersChanged rebuilds the current file from its first line under
// the current filter stack. Other files are rebuilt when they are next
// scanned or brought to the front.
func (s *Source) OnFiltersChanged() {
	e := s.current()
	if e != nil {
		if err := e.obs.Rebuild(); err != nil {
			s.log.Warn().Err(err).Str("file", e.file.Path()).Msg("rebuild failed")
		}
		s.log.Debug().
			Str("file", e.file.Path()).
			Int("visible", e.obs.State().IndexLen()).
			Uint64("generation", s.filters.Generation()).
			Msg("filters changed")
	}
	s.reload()
	if s.listener != nil {
		s.listener.RedoSearch()
	}
}

// FilteredCount returns how many lines of the current file are hidden
func (s *Source) FilteredCount() int {
	e := s.current()
	if e == nil {
		return 0
	}
	return e.file.LineCount() - e.obs.State().IndexLen()
}

// FilteredCountFor returns how many lines of the current file filter i
// matched.
func (s *Source) FilteredCountFor(i int) int {
	e := s.current()
	if e == nil || i < 0 || i >= filter.MaxFilters {
		return 0
	}
	return e.obs.State().FilterHits(i)
}

// Attach associates a running search with f. A previous search is
// cancelled, as is this one when f leaves the view.
func (s *Source) Attach(f *source.FileSource, job *search.Job) error {
	e, ok := s.entries[f]
	if !ok {
		if job != nil {
			job.Cancel()
		}
		return fmt.Errorf("%w: %s", ErrUnknownFile, f.Path())
	}
	if e.job != nil && e.job != job {
		e.job.Cancel()
	}
	e.job = job
	return nil
}

// Rescan picks up new data in every file. Files that went away or fail to
// read are dropped, files recognised as a structured format are handed to
// cb. It reports whether the current view changed.
func (s *Source) Rescan(cb Callback) bool {
	if cb == nil {
		cb = nopCallback{}
	}
	front := s.Current()
	changed := false

	for _, f := range s.Files() {
		e := s.entries[f]
		if e == nil {
			continue
		}

		if f.IsClosed() || !f.Exists() {
			s.log.Info().Str("file", f.Path()).Msg("file closed")
			s.closeFile(f)
			cb.ClosedFile(f)
			continue
		}

		if e.obs.Stale() {
			if err := e.obs.Rebuild(); err != nil {
				s.log.Warn().Err(err).Str("file", f.Path()).Msg("rebuild failed, closing")
				s.closeFile(f)
				cb.ClosedFile(f)
				continue
			}
			if f == front {
				changed = true
			}
		}

		res, err := f.RebuildIndex()
		if err != nil {
			s.log.Warn().Err(err).Str("file", f.Path()).Msg("read failed, closing")
			s.closeFile(f)
			cb.ClosedFile(f)
			continue
		}

		if format := f.Format(); format != logformat.FormatText {
			s.log.Info().Str("file", f.Path()).Str("format", string(format)).Msg("promoting file")
			s.detach(f)
			cb.PromoteFile(f, format)
			continue
		}

		if res != source.NoChange {
			from, ok := e.obs.TakeRescanFrom()
			if !ok {
				from = 0
			}
			e.obs.UpdateIndex(from)
			s.log.Debug().
				Str("file", f.Path()).
				Stringer("result", res).
				Int("from", from).
				Int("lines", f.LineCount()).
				Int("visible", e.obs.State().IndexLen()).
				Msg("rescanned")

			if f == s.Current() {
				changed = true
				if res == source.NewOrder {
					s.reload()
					if s.listener != nil {
						s.listener.RedoSearch()
					}
				} else if s.listener != nil {
					s.listener.SearchNewData(f, from, f.LineCount())
				}
			}
		}
		cb.ScannedFile(f)
	}

	if s.Current() != front {
		changed = true
	}
	return changed
}

func (s *Source) closeFile(f *source.FileSource) {
	s.detach(f)
	if err := f.Close(); err != nil {
		s.log.Debug().Err(err).Str("file", f.Path()).Msg("close")
	}
}

// Close drops every file and closes it
func (s *Source) Close() error {
	var errs []error
	for _, f := range s.Files() {
		s.detach(f)
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopCallback struct{}

func (nopCallback) ClosedFile(*source.FileSource)                    {}
func (nopCallback) PromoteFile(*source.FileSource, logformat.Format) {}
func (nopCallback) ScannedFile(*source.FileSource)                   {}
