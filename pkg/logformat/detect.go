package logformat

import (
	"bytes"
	"encoding/json"
)

// Format names a structured log format. The zero value means plain text.
type Format string

const (
	FormatText Format = ""
	FormatJSON Format = "json"
)

// Detector classifies a file from a sample of its first lines.
type Detector interface {
	Detect(sample [][]byte) Format
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(sample [][]byte) Format

func (f DetectorFunc) Detect(sample [][]byte) Format { return f(sample) }

// JSONDetector reports FormatJSON when every non-blank sampled line is a
// JSON object and at least MinLines of them were seen.
type JSONDetector struct {
	MinLines int
}

func (d JSONDetector) Detect(sample [][]byte) Format {
	minLines := d.MinLines
	if minLines <= 0 {
		minLines = 1
	}
	seen := 0
	for _, line := range sample {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' || !json.Valid(line) {
			return FormatText
		}
		seen++
	}
	if seen < minLines {
		return FormatText
	}
	return FormatJSON
}

// ContinuationFunc reports whether a physical line continues the message
// started by an earlier line.
type ContinuationFunc func(content []byte) bool

// PrefixContinuation treats lines starting with any of the prefixes as
// continuations. Empty lines are never continuations.
func PrefixContinuation(prefixes ...string) ContinuationFunc {
	pats := make([][]byte, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			pats = append(pats, []byte(p))
		}
	}
	return func(content []byte) bool {
		for _, p := range pats {
			if bytes.HasPrefix(content, p) {
				return true
			}
		}
		return false
	}
}

// NoContinuation makes every line its own message.
func NoContinuation(content []byte) bool { return false }
