package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/lview/internal/config"
	"github.com/TimelordUK/lview/internal/render"
	"github.com/TimelordUK/lview/internal/source"
)

// Viewport is a scroll window over a LineProvider. It knows rows and
// physical line numbers, nothing about files or filters.
type Viewport struct {
	provider source.LineProvider
	renderer render.Renderer

	width  int
	height int

	// first visible row
	scrollOffset int

	lineNumberStyle lipgloss.Style
	highlightStyle  lipgloss.Style
	matchStyle      lipgloss.Style

	showLineNumbers bool

	// physical line to mark, -1 for none
	highlightedLine int
	// physical lines matching the current search
	matches map[int]bool
}

// NewViewport creates a viewport with the theme from cfg
func NewViewport(width, height int, cfg *config.Config) *Viewport {
	return &Viewport{
		width:           width,
		height:          height,
		showLineNumbers: cfg.Display.ShowLineNumbers,
		lineNumberStyle: lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.LineNumbers)),
		highlightStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.SearchMatch)).Bold(true),
		matchStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.SearchMatch)),
		renderer:        render.NewPlainRenderer(),
		highlightedLine: -1,
	}
}

// SetHighlightedLine marks a physical line, -1 for none
func (v *Viewport) SetHighlightedLine(line int) {
	v.highlightedLine = line
}

// SetMatches marks the physical lines matching a search
func (v *Viewport) SetMatches(lines []int) {
	if len(lines) == 0 {
		v.matches = nil
		return
	}
	v.matches = make(map[int]bool, len(lines))
	for _, l := range lines {
		v.matches[l] = true
	}
}

func (v *Viewport) SetRenderer(r render.Renderer) {
	v.renderer = r
}

// SetProvider sets the line provider and scrolls to the top
func (v *Viewport) SetProvider(provider source.LineProvider) {
	v.provider = provider
	v.scrollOffset = 0
}

func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.clampScroll()
}

func (v *Viewport) ScrollDown(n int) {
	v.scrollOffset += n
	v.clampScroll()
}

func (v *Viewport) ScrollUp(n int) {
	v.scrollOffset -= n
	v.clampScroll()
}

func (v *Viewport) PageDown() { v.ScrollDown(v.height - 1) }
func (v *Viewport) PageUp()   { v.ScrollUp(v.height - 1) }
func (v *Viewport) GotoTop()  { v.scrollOffset = 0 }

// GotoBottom scrolls so the last row is on screen
func (v *Viewport) GotoBottom() {
	if v.provider == nil {
		return
	}
	v.scrollOffset = v.provider.LineCount() - v.height
	v.clampScroll()
}

// AtBottom reports whether the last row is on screen
func (v *Viewport) AtBottom() bool {
	if v.provider == nil {
		return true
	}
	return v.scrollOffset+v.height >= v.provider.LineCount()
}

// GotoRow scrolls so row is at the top
func (v *Viewport) GotoRow(row int) {
	v.scrollOffset = row
	v.clampScroll()
}

// CurrentRow returns the first visible row
func (v *Viewport) CurrentRow() int {
	return v.scrollOffset
}

// Clamp re-applies the scroll bounds after the provider changed size
func (v *Viewport) Clamp() {
	v.clampScroll()
}

func (v *Viewport) clampScroll() {
	if v.provider == nil {
		v.scrollOffset = 0
		return
	}
	maxScroll := max(v.provider.LineCount()-v.height, 0)
	v.scrollOffset = min(max(v.scrollOffset, 0), maxScroll)
}

// Render returns the visible rows, padded with "~" past the end
func (v *Viewport) Render() string {
	if v.provider == nil {
		return ""
	}

	lines, err := v.provider.GetLines(v.scrollOffset, v.height)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	// the widest number on screen is the last physical line
	numWidth := 1
	if n := len(lines); n > 0 {
		numWidth = len(strconv.Itoa(lines[n-1].OriginalIndex + 1))
	}
	contentWidth := v.width
	if v.showLineNumbers {
		contentWidth -= numWidth + 1
	}
	clip := lipgloss.NewStyle().MaxWidth(max(contentWidth, 1))

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}

		marked := line.OriginalIndex == v.highlightedLine
		if v.showLineNumbers {
			num := fmt.Sprintf("%*d ", numWidth, line.OriginalIndex+1)
			switch {
			case marked:
				b.WriteString(v.highlightStyle.Render(num))
			case v.matches[line.OriginalIndex]:
				b.WriteString(v.matchStyle.Render(num))
			default:
				b.WriteString(v.lineNumberStyle.Render(num))
			}
		}
		b.WriteString(clip.Render(v.renderer.Render(line)))
	}

	for i := len(lines); i < v.height; i++ {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("~")
	}
	return b.String()
}

// PercentScrolled returns how far through the rows the view is
func (v *Viewport) PercentScrolled() float64 {
	if v.provider == nil || v.provider.LineCount() == 0 {
		return 0
	}
	total := v.provider.LineCount()
	if total <= v.height {
		return 100
	}
	return float64(v.scrollOffset) / float64(total-v.height) * 100
}

func (v *Viewport) SetShowLineNumbers(show bool) {
	v.showLineNumbers = show
}
