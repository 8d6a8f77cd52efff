package ui

import (
	"sort"

	"github.com/TimelordUK/lview/internal/config"
	"github.com/TimelordUK/lview/internal/render"
	"github.com/TimelordUK/lview/internal/source"
	"github.com/TimelordUK/lview/internal/view"
)

// Pane is one scrollable view with its own search state
type Pane struct {
	viewport *view.Viewport
	provider source.LineProvider
	// rowFor maps a physical line to its row, -1 when hidden
	rowFor func(line int) int

	following bool

	// Search state, in physical lines
	searchTerm    string
	searchResults []int
	searchIndex   int
}

func newPane(cfg *config.Config, provider source.LineProvider, rowFor func(int) int) *Pane {
	vp := view.NewViewport(80, 24, cfg)
	vp.SetProvider(provider)
	return &Pane{
		viewport:    vp,
		provider:    provider,
		rowFor:      rowFor,
		searchIndex: -1,
	}
}

func identityRow(line int) int { return line }

func (p *Pane) SetSize(width, height int)     { p.viewport.SetSize(width, height) }
func (p *Pane) SetRenderer(r render.Renderer) { p.viewport.SetRenderer(r) }
func (p *Pane) Render() string                { return p.viewport.Render() }
func (p *Pane) Viewport() *view.Viewport      { return p.viewport }
func (p *Pane) IsFollowing() bool             { return p.following }
func (p *Pane) SearchTerm() string            { return p.searchTerm }
func (p *Pane) SearchResults() []int          { return p.searchResults }

// SetProvider swaps the provider and scrolls to the top
func (p *Pane) SetProvider(lp source.LineProvider) {
	p.provider = lp
	p.viewport.SetProvider(lp)
}

// ToggleFollowing switches follow mode and reports the new state
func (p *Pane) ToggleFollowing() bool {
	p.following = !p.following
	if p.following {
		p.viewport.GotoBottom()
	}
	return p.following
}

// Refresh re-clamps the scroll position after the provider changed
func (p *Pane) Refresh() {
	if p.following {
		p.viewport.GotoBottom()
		return
	}
	p.viewport.Clamp()
}

// SetSearchResults replaces the results of a search for term
func (p *Pane) SetSearchResults(term string, lines []int) {
	p.searchTerm = term
	p.searchResults = lines
	p.searchIndex = -1
	p.viewport.SetMatches(lines)
}

// AddSearchResults merges hits from a search over new data
func (p *Pane) AddSearchResults(lines []int) {
	if len(lines) == 0 {
		return
	}
	merged := append(p.searchResults, lines...)
	sort.Ints(merged)
	out := merged[:0]
	for i, l := range merged {
		if i == 0 || l != merged[i-1] {
			out = append(out, l)
		}
	}
	p.searchResults = out
	p.viewport.SetMatches(out)
}

// ClearSearch clears search state
func (p *Pane) ClearSearch() {
	p.searchTerm = ""
	p.searchResults = nil
	p.searchIndex = -1
	p.viewport.SetMatches(nil)
	p.viewport.SetHighlightedLine(-1)
}

// NextSearchResult jumps to the next visible hit, wrapping around
func (p *Pane) NextSearchResult() bool {
	return p.step(1)
}

// PrevSearchResult jumps to the previous visible hit, wrapping around
func (p *Pane) PrevSearchResult() bool {
	return p.step(-1)
}

func (p *Pane) step(dir int) bool {
	n := len(p.searchResults)
	if n == 0 {
		return false
	}
	i := p.searchIndex
	if i < 0 && dir < 0 {
		i = 0
	}
	for tries := 0; tries < n; tries++ {
		i = ((i+dir)%n + n) % n
		line := p.searchResults[i]
		// hits on hidden lines are skipped
		if row := p.rowFor(line); row >= 0 {
			p.searchIndex = i
			p.viewport.GotoRow(row)
			p.viewport.SetHighlightedLine(line)
			return true
		}
	}
	return false
}

// GotoLine scrolls to a physical line. It reports false when the line is
// hidden.
func (p *Pane) GotoLine(line int) bool {
	row := p.rowFor(line)
	if row < 0 {
		return false
	}
	p.viewport.GotoRow(row)
	p.viewport.SetHighlightedLine(line)
	return true
}
