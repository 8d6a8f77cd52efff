package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/lview/internal/config"
	"github.com/TimelordUK/lview/internal/source"
	"github.com/TimelordUK/lview/pkg/logformat"
)

// Renderer applies styling to lines
type Renderer interface {
	Render(line *source.Line) string
}

// LogLevelRenderer colors lines based on log level
type LogLevelRenderer struct {
	detector *logformat.LevelDetector
	styles   map[logformat.Level]lipgloss.Style
}

// NewLogLevelRenderer creates a renderer with config
func NewLogLevelRenderer(cfg *config.Config) *LogLevelRenderer {
	color := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	levels := cfg.Theme.Levels

	return &LogLevelRenderer{
		detector: logformat.NewLevelDetector(&cfg.LogLevels),
		styles: map[logformat.Level]lipgloss.Style{
			logformat.LevelUnknown: lipgloss.NewStyle(),
			logformat.LevelTrace:   color(levels.Trace),
			logformat.LevelDebug:   color(levels.Debug),
			logformat.LevelInfo:    color(levels.Info),
			logformat.LevelWarn:    color(levels.Warn),
			logformat.LevelError:   color(levels.Error),
			logformat.LevelFatal:   color(levels.Fatal),
		},
	}
}

// Render applies log level styling to a line
func (r *LogLevelRenderer) Render(line *source.Line) string {
	level := line.Level
	if level == logformat.LevelUnknown {
		level = r.detector.Detect(line.Content)
	}
	return r.styles[level].Render(string(line.Content))
}

// PlainRenderer renders without styling
type PlainRenderer struct{}

func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

func (r *PlainRenderer) Render(line *source.Line) string {
	return string(line.Content)
}

// ForFile picks a renderer for a file: structured formats and source code
// get syntax highlighting when enabled, everything else is colored by log
// level.
func ForFile(cfg *config.Config, path string, format logformat.Format) Renderer {
	if !cfg.Display.SyntaxHighlight {
		return NewLogLevelRenderer(cfg)
	}
	if format == logformat.FormatJSON {
		return NewSyntaxRendererFor("json")
	}
	if IsSyntaxHighlightable(path) {
		return NewSyntaxRenderer(path)
	}
	return NewLogLevelRenderer(cfg)
}
