package logformat

import (
	"bytes"
	"strings"

	"github.com/TimelordUK/lview/internal/config"
)

// Level represents a log severity level
type Level int

const (
	LevelUnknown Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelUnknown: "unknown",
	LevelTrace:   "trace",
	LevelDebug:   "debug",
	LevelInfo:    "info",
	LevelWarn:    "warn",
	LevelError:   "error",
	LevelFatal:   "fatal",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel maps a level name to a Level. Accepts the common aliases.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "trc":
		return LevelTrace, true
	case "debug", "dbg":
		return LevelDebug, true
	case "info", "inf":
		return LevelInfo, true
	case "warn", "warning", "wrn":
		return LevelWarn, true
	case "error", "err":
		return LevelError, true
	case "fatal", "ftl", "critical", "crit":
		return LevelFatal, true
	}
	return LevelUnknown, false
}

// LevelDetector detects log levels from line content
type LevelDetector struct {
	// most severe first
	order    []Level
	patterns map[Level][][]byte
}

// NewLevelDetector creates a detector from config; nil means the default
// patterns.
func NewLevelDetector(cfg *config.LogLevelConfig) *LevelDetector {
	if cfg == nil {
		cfg = &config.DefaultConfig().LogLevels
	}
	d := &LevelDetector{
		order:    []Level{LevelFatal, LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace},
		patterns: make(map[Level][][]byte),
	}
	add := func(level Level, pats []string) {
		for _, p := range pats {
			d.patterns[level] = append(d.patterns[level], []byte(p))
		}
	}
	add(LevelTrace, cfg.TracePatterns)
	add(LevelDebug, cfg.DebugPatterns)
	add(LevelInfo, cfg.InfoPatterns)
	add(LevelWarn, cfg.WarnPatterns)
	add(LevelError, cfg.ErrorPatterns)
	add(LevelFatal, cfg.FatalPatterns)
	return d
}

// Detect returns the log level for a line. Fatal is checked first so
// that "FATAL ERROR" is not reported as an error.
func (d *LevelDetector) Detect(content []byte) Level {
	for _, level := range d.order {
		for _, pattern := range d.patterns[level] {
			if bytes.Contains(content, pattern) {
				return level
			}
		}
	}
	return LevelUnknown
}
