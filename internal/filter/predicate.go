package filter

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/TimelordUK/lview/pkg/logformat"
)

// DefaultMatchTimeout bounds a single regex evaluation
const DefaultMatchTimeout = 250 * time.Millisecond

// Regex matches lines against a case-insensitive regular expression
type Regex struct {
	pattern string
	re      *regexp2.Regexp
}

// NewRegex compiles pattern. Matching ignores case.
func NewRegex(pattern string) (*Regex, error) {
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	re.MatchTimeout = DefaultMatchTimeout
	return &Regex{pattern: pattern, re: re}, nil
}

func (r *Regex) ID() string { return r.pattern }

// Matches reports a match; a timed-out evaluation counts as no match.
func (r *Regex) Matches(_ File, _ int, content []byte) bool {
	ok, err := r.re.MatchString(string(content))
	return err == nil && ok
}

// Substring matches lines containing a fixed string
type Substring struct {
	text []byte
	fold bool
}

// NewSubstring returns a substring predicate; fold ignores ASCII case.
func NewSubstring(text string, fold bool) *Substring {
	s := &Substring{text: []byte(text), fold: fold}
	if fold {
		s.text = bytes.ToLower(s.text)
	}
	return s
}

func (s *Substring) ID() string { return string(s.text) }

func (s *Substring) Matches(_ File, _ int, content []byte) bool {
	if s.fold {
		content = bytes.ToLower(content)
	}
	return bytes.Contains(content, s.text)
}

// MinLevel matches lines whose detected level is at least min
type MinLevel struct {
	min      logformat.Level
	detector *logformat.LevelDetector
}

func NewMinLevel(min logformat.Level, detector *logformat.LevelDetector) *MinLevel {
	return &MinLevel{min: min, detector: detector}
}

func (m *MinLevel) ID() string { return "level>=" + m.min.String() }

func (m *MinLevel) Matches(_ File, _ int, content []byte) bool {
	return m.detector.Detect(content) >= m.min
}

func (m *MinLevel) Command(kind Kind) string {
	if kind == Exclude {
		return "filter-out-level " + m.min.String()
	}
	return "filter-level " + m.min.String()
}

// TimeLayout is the layout used for time bounds in commands
const TimeLayout = "2006-01-02T15:04:05"

// TimeRange matches lines whose timestamp falls in [from, to). A zero
// bound is open. Lines without a timestamp never match; as filters see
// whole messages, continuation lines follow their first line.
type TimeRange struct {
	from, to time.Time
	parser   *logformat.TimestampParser
}

func NewTimeRange(from, to time.Time, parser *logformat.TimestampParser) *TimeRange {
	return &TimeRange{from: from, to: to, parser: parser}
}

func (r *TimeRange) ID() string {
	return "time:" + formatBound(r.from) + ".." + formatBound(r.to)
}

func (r *TimeRange) Matches(_ File, _ int, content []byte) bool {
	ts := r.parser.Parse(content)
	if ts == nil {
		return false
	}
	if !r.from.IsZero() && ts.Before(r.from) {
		return false
	}
	if !r.to.IsZero() && !ts.Before(r.to) {
		return false
	}
	return true
}

func (r *TimeRange) Command(Kind) string {
	return "filter-time " + formatBound(r.from) + " " + formatBound(r.to)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(TimeLayout)
}
