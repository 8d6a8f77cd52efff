package filter

import (
	"errors"
	"fmt"
)

var (
	ErrCapacity  = errors.New("filter limit reached")
	ErrNotFound  = errors.New("no such filter")
	ErrDuplicate = errors.New("filter already exists")
)

// Set is the ordered filter stack shared by every file in a view.
//
// Mutations are not synchronised; they must happen between rescans. Each
// mutation bumps the generation so per-file state built for an older stack
// can be recognised and rebuilt.
type Set struct {
	filters    []*Filter
	used       uint32 // bits owned by registered filters
	generation uint64
}

func NewSet() *Set {
	return &Set{}
}

// Register adds an enabled filter on the lowest free bit. Nothing changes
// when the set is full or the predicate's ID is already registered.
func (s *Set) Register(kind Kind, pred Predicate) (*Filter, error) {
	if s.Get(pred.ID()) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, pred.ID())
	}
	index := -1
	for i := 0; i < MaxFilters; i++ {
		if s.used&(uint32(1)<<uint(i)) == 0 {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrCapacity
	}

	f := &Filter{index: index, kind: kind, enabled: true, pred: pred}
	s.filters = append(s.filters, f)
	s.used |= f.bit()
	s.generation++
	return f, nil
}

// Unregister removes f and frees its bit. Every file's state must be
// rebuilt afterwards.
func (s *Set) Unregister(f *Filter) error {
	for i, cur := range s.filters {
		if cur == f {
			s.filters = append(s.filters[:i], s.filters[i+1:]...)
			s.used &^= f.bit()
			s.generation++
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, f.ID())
}

// Get returns the filter with the given ID, or nil
func (s *Set) Get(id string) *Filter {
	for _, f := range s.filters {
		if f.ID() == id {
			return f
		}
	}
	return nil
}

// SetEnabled toggles a filter and reports whether anything changed
func (s *Set) SetEnabled(f *Filter, enabled bool) bool {
	if f.enabled == enabled {
		return false
	}
	f.enabled = enabled
	s.generation++
	return true
}

// Filters returns the filters in registration order
func (s *Set) Filters() []*Filter {
	out := make([]*Filter, len(s.filters))
	copy(out, s.filters)
	return out
}

// Enabled returns the enabled filters in registration order
func (s *Set) Enabled() []*Filter {
	var out []*Filter
	for _, f := range s.filters {
		if f.enabled {
			out = append(out, f)
		}
	}
	return out
}

func (s *Set) Len() int           { return len(s.filters) }
func (s *Set) Empty() bool        { return len(s.filters) == 0 }
func (s *Set) Full() bool         { return len(s.filters) >= MaxFilters }
func (s *Set) Generation() uint64 { return s.generation }

// EnabledMasks returns the bits of the enabled include and exclude filters
func (s *Set) EnabledMasks() (in, out uint32) {
	for _, f := range s.filters {
		if !f.enabled {
			continue
		}
		if f.kind == Exclude {
			out |= f.bit()
		} else {
			in |= f.bit()
		}
	}
	return in, out
}

// Excluded applies the visibility rule to one line mask: a line is hidden
// when include filters are active and none of them matched it, or when an
// active exclude filter matched it.
func Excluded(mask, in, out uint32) bool {
	filteredIn := in == 0 || mask&in != 0
	filteredOut := mask&out != 0
	return !filteredIn || filteredOut
}
