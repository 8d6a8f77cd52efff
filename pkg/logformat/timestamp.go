package logformat

import (
	"regexp"
	"strconv"
	"time"
)

const (
	layoutUnix   = "unix"
	layoutUnixMs = "unix_ms"
)

// TimestampParser detects and parses timestamps from log lines
type TimestampParser struct {
	patterns []timestampPattern
	now      func() time.Time
}

type timestampPattern struct {
	regex   *regexp.Regexp
	layouts []string
}

// NewTimestampParser creates a parser with common timestamp formats
func NewTimestampParser() *TimestampParser {
	return &TimestampParser{
		now: time.Now,
		patterns: []timestampPattern{
			// 2024-01-15T10:30:45.123Z, 2024-01-15T10:30:45+00:00
			{
				regex:   regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))`),
				layouts: []string{time.RFC3339Nano},
			},
			// 2024-01-15T10:30:45.123 (no zone)
			{
				regex:   regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?)`),
				layouts: []string{"2006-01-02T15:04:05.999999999"},
			},
			// 2024-01-15 10:30:45.123 and [2024-01-15 10:30:45]
			{
				regex:   regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d+)?)`),
				layouts: []string{"2006-01-02 15:04:05.999999999"},
			},
			// 15/Jan/2024:10:30:45 +0000
			{
				regex:   regexp.MustCompile(`(\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})`),
				layouts: []string{"02/Jan/2006:15:04:05 -0700"},
			},
			// Jan 15 10:30:45
			{
				regex:   regexp.MustCompile(`([A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2})`),
				layouts: []string{"Jan _2 15:04:05"},
			},
			{
				regex:   regexp.MustCompile(`^(\d{13})(?:\D|$)`),
				layouts: []string{layoutUnixMs},
			},
			{
				regex:   regexp.MustCompile(`^(\d{10})(?:\D|$)`),
				layouts: []string{layoutUnix},
			},
			// 10:30:45.123, assume today
			{
				regex:   regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}(?:\.\d+)?)`),
				layouts: []string{"15:04:05.999999999"},
			},
		},
	}
}

// Parse attempts to extract a timestamp from a log line
func (p *TimestampParser) Parse(content []byte) *time.Time {
	for _, pattern := range p.patterns {
		m := pattern.regex.FindSubmatch(content)
		if len(m) < 2 {
			continue
		}
		if t, ok := p.parseWith(string(m[1]), pattern.layouts); ok {
			return &t
		}
	}
	return nil
}

func (p *TimestampParser) parseWith(value string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		switch layout {
		case layoutUnix, layoutUnixMs:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return time.Time{}, false
			}
			if layout == layoutUnix {
				return time.Unix(n, 0), true
			}
			return time.UnixMilli(n), true
		}

		t, err := time.ParseInLocation(layout, value, time.Local)
		if err != nil {
			continue
		}
		now := p.now()
		switch layout {
		case "15:04:05.999999999":
			t = time.Date(now.Year(), now.Month(), now.Day(),
				t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
		case "Jan _2 15:04:05":
			t = time.Date(now.Year(), t.Month(), t.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, time.Local)
		}
		return t, true
	}
	return time.Time{}, false
}

// FormatTime formats a timestamp for display
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04:05")
}
