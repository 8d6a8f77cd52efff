// Package command implements the filter commands typed at the ':' prompt
// and stored in the config file.
package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TimelordUK/lview/internal/filter"
	"github.com/TimelordUK/lview/pkg/logformat"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingArg     = errors.New("missing argument")
)

// Result describes a command that succeeded
type Result struct {
	Message string
	// Changed means the filter stack was modified and the view has to be
	// rebuilt.
	Changed bool
}

// Runner executes commands against one filter stack
type Runner struct {
	set    *filter.Set
	levels *logformat.LevelDetector
	times  *logformat.TimestampParser
}

func NewRunner(set *filter.Set, levels *logformat.LevelDetector, times *logformat.TimestampParser) *Runner {
	if levels == nil {
		levels = logformat.NewLevelDetector(nil)
	}
	if times == nil {
		times = logformat.NewTimestampParser()
	}
	return &Runner{set: set, levels: levels, times: times}
}

// Names lists the commands Exec understands
func Names() []string {
	return []string{
		"filter-in", "filter-out",
		"filter-level", "filter-out-level", "filter-time",
		"enable-filter", "disable-filter", "delete-filter",
	}
}

// Exec parses and runs one command line
func (r *Runner) Exec(line string) (Result, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "filter-in":
		return r.addRegex(filter.Include, arg)
	case "filter-out":
		return r.addRegex(filter.Exclude, arg)
	case "filter-level":
		return r.addLevel(filter.Include, arg)
	case "filter-out-level":
		return r.addLevel(filter.Exclude, arg)
	case "filter-time":
		return r.addTime(arg)
	case "enable-filter":
		return r.toggle(arg, true)
	case "disable-filter":
		return r.toggle(arg, false)
	case "delete-filter":
		return r.delete(arg)
	case "":
		return Result{}, fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}
	return Result{}, fmt.Errorf("%w -- %s", ErrUnknownCommand, name)
}

func (r *Runner) addRegex(kind filter.Kind, pattern string) (Result, error) {
	if pattern == "" {
		return Result{}, fmt.Errorf("%w: expecting a regular expression to filter", ErrMissingArg)
	}
	if res, done, err := r.reissue(kind, pattern); done {
		return res, err
	}
	pred, err := filter.NewRegex(pattern)
	if err != nil {
		return Result{}, err
	}
	return r.register(kind, pred)
}

func (r *Runner) addLevel(kind filter.Kind, arg string) (Result, error) {
	if arg == "" {
		return Result{}, fmt.Errorf("%w: expecting a log level", ErrMissingArg)
	}
	level, ok := logformat.ParseLevel(arg)
	if !ok {
		return Result{}, fmt.Errorf("invalid log level -- %s", arg)
	}
	pred := filter.NewMinLevel(level, r.levels)
	if res, done, err := r.reissue(kind, pred.ID()); done {
		return res, err
	}
	return r.register(kind, pred)
}

func (r *Runner) addTime(arg string) (Result, error) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return Result{}, fmt.Errorf("%w: expecting FROM and TO times (%s, or - for open)", ErrMissingArg, filter.TimeLayout)
	}
	from, err := parseBound(fields[0])
	if err != nil {
		return Result{}, err
	}
	to, err := parseBound(fields[1])
	if err != nil {
		return Result{}, err
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return Result{}, fmt.Errorf("empty time range -- %s", arg)
	}
	pred := filter.NewTimeRange(from, to, r.times)
	if res, done, err := r.reissue(filter.Include, pred.ID()); done {
		return res, err
	}
	return r.register(filter.Include, pred)
}

func parseBound(s string) (time.Time, error) {
	if s == "-" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(filter.TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time -- %s", s)
	}
	return t, nil
}

// reissue handles a filter command for an ID that is already registered:
// the same kind enables it, the other kind is refused.
func (r *Runner) reissue(kind filter.Kind, id string) (Result, bool, error) {
	f := r.set.Get(id)
	if f == nil {
		return Result{}, false, nil
	}
	if f.Kind() != kind {
		return Result{}, true, fmt.Errorf("%w as %s -- %s", filter.ErrDuplicate, f.Command(), id)
	}
	if r.set.SetEnabled(f, true) {
		return Result{Message: "info: filter enabled", Changed: true}, true, nil
	}
	return Result{Message: "info: filter already enabled"}, true, nil
}

func (r *Runner) register(kind filter.Kind, pred filter.Predicate) (Result, error) {
	if _, err := r.set.Register(kind, pred); err != nil {
		if errors.Is(err, filter.ErrCapacity) {
			return Result{}, fmt.Errorf("%w, try combining filters with a pipe symbol (e.g. foo|bar)", err)
		}
		return Result{}, err
	}
	return Result{Message: "info: filter now active", Changed: true}, nil
}

func (r *Runner) lookup(id string) (*filter.Filter, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: expecting a filter", ErrMissingArg)
	}
	f := r.set.Get(id)
	if f == nil {
		return nil, fmt.Errorf("%w -- %s", filter.ErrNotFound, id)
	}
	return f, nil
}

func (r *Runner) toggle(id string, enabled bool) (Result, error) {
	f, err := r.lookup(id)
	if err != nil {
		return Result{}, err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	if !r.set.SetEnabled(f, enabled) {
		return Result{Message: "info: filter already " + state}, nil
	}
	return Result{Message: "info: filter " + state, Changed: true}, nil
}

func (r *Runner) delete(id string) (Result, error) {
	f, err := r.lookup(id)
	if err != nil {
		return Result{}, err
	}
	if err := r.set.Unregister(f); err != nil {
		return Result{}, err
	}
	return Result{Message: "info: deleted filter", Changed: true}, nil
}

// Restore runs saved command lines, e.g. from the config file. Every line
// is attempted; the errors are joined.
func (r *Runner) Restore(lines []string) (bool, error) {
	changed := false
	var errs []error
	for _, line := range lines {
		res, err := r.Exec(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("%q: %w", line, err))
			continue
		}
		changed = changed || res.Changed
	}
	return changed, errors.Join(errs...)
}

// Save renders the filter stack as command lines that recreate it
func Save(set *filter.Set) []string {
	var out []string
	for _, f := range set.Filters() {
		out = append(out, f.Command())
		if !f.Enabled() {
			out = append(out, "disable-filter "+f.ID())
		}
	}
	return out
}
