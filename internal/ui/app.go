package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/TimelordUK/lview/internal/command"
	"github.com/TimelordUK/lview/internal/config"
	"github.com/TimelordUK/lview/internal/filter"
	"github.com/TimelordUK/lview/internal/multifile"
	"github.com/TimelordUK/lview/internal/render"
	"github.com/TimelordUK/lview/internal/search"
	"github.com/TimelordUK/lview/internal/slice"
	"github.com/TimelordUK/lview/internal/source"
	"github.com/TimelordUK/lview/pkg/logformat"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeCommand
)

// ModelOptions configures NewModelWithOptions
type ModelOptions struct {
	Paths      []string
	Config     *config.Config
	ConfigPath string
	Fs         afero.Fs
	Logger     zerolog.Logger
	// Filters are command lines run after the ones saved in Config
	Filters []string
	Follow  bool
}

type tickMsg time.Time

type searchMsg struct {
	gen   int
	pane  *Pane
	lines []int
	err   error
	more  bool // hits from new data, merged into the existing ones
	jump  bool
}

type dataRange struct {
	file     *source.FileSource
	from, to int
}

// Model is the main application model
type Model struct {
	cfg        *config.Config
	configPath string
	fs         afero.Fs
	log        zerolog.Logger
	interval   time.Duration

	filters *filter.Set
	runner  *command.Runner
	logs    *multifile.Source
	slicer  *slice.Slicer
	text    *Pane

	// structured files handed over by the text view
	structured     []*source.FileSource
	structPane     *Pane
	structIndex    int
	showStructured bool

	input  textinput.Model
	mode   Mode
	width  int
	height int

	ctx        context.Context
	cancel     context.CancelFunc
	searchTerm string
	searchRe   *regexp2.Regexp
	searchGen  int
	searchJob  *search.Job

	// set by the multifile listener, consumed by afterChange
	needReload bool
	needRedo   bool
	newData    []dataRange

	status string
}

// NewModelWithOptions opens the files and restores the filter stack
func NewModelWithOptions(opts ModelOptions) (*Model, error) {
	if len(opts.Paths) == 0 {
		return nil, errors.New("no files given")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		fs:         fs,
		log:        opts.Logger,
		interval:   time.Duration(cfg.Poll.IntervalMs) * time.Millisecond,
		filters:    filter.NewSet(),
		slicer:     slice.NewSlicer(fs, os.TempDir()),
		ctx:        ctx,
		cancel:     cancel,
	}
	if m.interval <= 0 {
		m.interval = 250 * time.Millisecond
	}
	m.runner = command.NewRunner(m.filters,
		logformat.NewLevelDetector(&cfg.LogLevels), logformat.NewTimestampParser())

	saved := append(append([]string{}, cfg.Filters...), opts.Filters...)
	if _, err := m.runner.Restore(saved); err != nil {
		m.log.Warn().Err(err).Msg("restoring filters")
		m.status = "error: " + strings.SplitN(err.Error(), "\n", 2)[0]
	}

	m.logs = multifile.New(m.filters, multifile.WithListener(m), multifile.WithLogger(m.log))
	for _, path := range opts.Paths {
		f, err := source.NewFileSource(path, source.ConfigOptions(cfg)...)
		if err == nil {
			err = m.logs.Add(f)
		}
		if err != nil {
			m.Close()
			return nil, err
		}
	}

	m.text = newPane(cfg, m.logs, m.logs.FilteredIndexFor)
	m.applyRenderer()
	if opts.Follow {
		m.text.ToggleFollowing()
	}

	ti := textinput.New()
	ti.CharLimit = 512
	m.input = ti

	m.needReload, m.needRedo = false, false
	return m, nil
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// status bar and help line
		m.text.SetSize(msg.Width, msg.Height-2)
		if m.structPane != nil {
			m.structPane.SetSize(msg.Width, msg.Height-2)
		}
		return m, nil

	case tickMsg:
		m.rescan()
		return m, tea.Batch(m.afterChange(), m.tick())

	case searchMsg:
		m.searchDone(msg)
		return m, nil
	}

	return m, nil
}

// rescan is the poll driver: one pass over every file per tick
func (m *Model) rescan() {
	if m.logs.Rescan(m) {
		m.text.Refresh()
	}

	kept := m.structured[:0]
	for _, f := range m.structured {
		if f.IsClosed() || !f.Exists() {
			m.status = "closed " + filepath.Base(f.Path())
			f.Close()
			continue
		}
		res, err := f.RebuildIndex()
		if err != nil {
			m.log.Warn().Err(err).Str("file", f.Path()).Msg("structured file read failed")
			m.status = "closed " + filepath.Base(f.Path())
			f.Close()
			continue
		}
		if res != source.NoChange && m.structPane != nil && m.structFile() == f {
			m.structPane.Refresh()
		}
		kept = append(kept, f)
	}
	if len(kept) != len(m.structured) {
		m.structured = kept
		m.selectStructured(m.structIndex)
	}
}

// ClosedFile implements multifile.Callback
func (m *Model) ClosedFile(f *source.FileSource) {
	m.status = "closed " + filepath.Base(f.Path())
}

// PromoteFile moves a structured file into the structured view
func (m *Model) PromoteFile(f *source.FileSource, format logformat.Format) {
	m.structured = append(m.structured, f)
	if m.structPane == nil {
		m.selectStructured(len(m.structured) - 1)
	}
	m.status = fmt.Sprintf("%s is %s, moved to the structured view (J)", filepath.Base(f.Path()), format)
}

func (m *Model) ScannedFile(*source.FileSource) {}

// ReloadData implements multifile.Listener
func (m *Model) ReloadData() { m.needReload = true }
func (m *Model) RedoSearch() { m.needRedo = true }

func (m *Model) SearchNewData(f *source.FileSource, from, to int) {
	m.newData = append(m.newData, dataRange{file: f, from: from, to: to})
}

// afterChange applies what the listener recorded during the last call
// into the multifile source.
func (m *Model) afterChange() tea.Cmd {
	var cmds []tea.Cmd
	if m.needReload {
		m.text.Refresh()
		m.applyRenderer()
	}
	if m.searchRe != nil && !m.showStructured {
		if m.needRedo {
			cmds = append(cmds, m.redoSearch(false))
		} else {
			for _, r := range m.newData {
				if r.file == m.logs.Current() {
					cmds = append(cmds, m.searchRange(m.text, r.file, r.from, r.to, true, false))
				}
			}
		}
	}
	m.needReload, m.needRedo, m.newData = false, false, nil
	return tea.Batch(cmds...)
}

func (m *Model) applyRenderer() {
	if f := m.logs.Current(); f != nil {
		m.text.SetRenderer(render.ForFile(m.cfg, f.Path(), logformat.FormatText))
	}
}

func (m *Model) structFile() *source.FileSource {
	if m.structIndex < 0 || m.structIndex >= len(m.structured) {
		return nil
	}
	return m.structured[m.structIndex]
}

func (m *Model) selectStructured(i int) {
	if len(m.structured) == 0 {
		m.structPane = nil
		m.structIndex = 0
		m.showStructured = false
		return
	}
	m.structIndex = (i%len(m.structured) + len(m.structured)) % len(m.structured)
	f := m.structured[m.structIndex]
	if m.structPane == nil {
		m.structPane = newPane(m.cfg, f, identityRow)
		if m.height > 0 {
			m.structPane.SetSize(m.width, m.height-2)
		}
	} else {
		m.structPane.SetProvider(f)
		m.structPane.ClearSearch()
	}
	m.structPane.SetRenderer(render.ForFile(m.cfg, f.Path(), f.Format()))
}

func (m *Model) activePane() *Pane {
	if m.showStructured && m.structPane != nil {
		return m.structPane
	}
	return m.text
}

func (m *Model) activeFile() *source.FileSource {
	if m.showStructured {
		return m.structFile()
	}
	return m.logs.Current()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeNormal {
		return m.handleInputKey(msg)
	}

	pane := m.activePane()
	vp := pane.Viewport()
	m.status = ""

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		vp.ScrollDown(1)
	case "k", "up":
		vp.ScrollUp(1)
	case "d", "ctrl+d", "f", "pgdown", " ":
		vp.PageDown()
	case "u", "ctrl+u", "b", "pgup":
		vp.PageUp()
	case "g", "home":
		vp.GotoTop()
	case "G", "end":
		vp.GotoBottom()

	case "/":
		return m, m.prompt(ModeSearch, "Search...")
	case ":":
		return m, m.prompt(ModeCommand, "filter-in PATTERN, filter-out PATTERN, line number...")

	case "n":
		pane.NextSearchResult()
	case "N":
		pane.PrevSearchResult()
	case "esc":
		m.clearSearch()

	case "tab":
		if m.showStructured {
			m.selectStructured(m.structIndex + 1)
			return m, m.redoSearch(false)
		}
		m.logs.RotateLeft()
	case "shift+tab":
		if m.showStructured {
			m.selectStructured(m.structIndex - 1)
			return m, m.redoSearch(false)
		}
		m.logs.RotateRight()

	case "J":
		if m.structPane == nil {
			m.status = "no structured files"
			break
		}
		m.showStructured = !m.showStructured
		return m, m.redoSearch(false)

	case "F":
		if pane.ToggleFollowing() {
			m.status = "following"
		} else {
			m.status = "stopped following"
		}

	case "l":
		m.cfg.Display.ShowLineNumbers = !m.cfg.Display.ShowLineNumbers
		m.text.Viewport().SetShowLineNumbers(m.cfg.Display.ShowLineNumbers)
		if m.structPane != nil {
			m.structPane.Viewport().SetShowLineNumbers(m.cfg.Display.ShowLineNumbers)
		}
	}

	return m, m.afterChange()
}

func (m *Model) prompt(mode Mode, placeholder string) tea.Cmd {
	m.mode = mode
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.Focus()
	return textinput.Blink
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.mode = ModeNormal
		m.input.Blur()
		if mode == ModeSearch {
			return m, m.startSearch(value)
		}
		return m, m.runCommand(value)

	case "esc":
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// runCommand handles the ':' prompt: a line number, one of the view
// commands, or a filter command.
func (m *Model) runCommand(line string) tea.Cmd {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if n, err := strconv.Atoi(line); err == nil {
		if !m.activePane().GotoLine(n - 1) {
			m.status = fmt.Sprintf("line %d is hidden or out of range", n)
		}
		return nil
	}

	name, arg, _ := strings.Cut(line, " ")
	switch name {
	case "export":
		m.export(strings.TrimSpace(arg))
		return nil
	case "save-filters":
		m.saveFilters()
		return nil
	case "close":
		m.closeCurrent()
		return m.afterChange()
	}

	res, err := m.runner.Exec(line)
	if err != nil {
		m.status = "error: " + err.Error()
		return nil
	}
	m.status = res.Message
	if res.Changed {
		m.logs.OnFiltersChanged()
	}
	return m.afterChange()
}

// export writes the visible rows of the active pane to path, or to a
// temp file when path is empty.
func (m *Model) export(path string) {
	pane := m.activePane()
	f := m.activeFile()
	if f == nil {
		m.status = "error: nothing to export"
		return
	}

	if path == "" {
		info, err := m.slicer.SliceRange(pane.provider, f.Path(), 0, pane.provider.LineCount())
		if err != nil {
			m.status = "error: " + err.Error()
			return
		}
		m.status = fmt.Sprintf("exported %d rows to %s", info.Lines, info.CachePath)
		return
	}

	out, err := m.fs.Create(path)
	if err != nil {
		m.status = "error: " + err.Error()
		return
	}
	n, err := slice.WriteRows(out, pane.provider, 0, pane.provider.LineCount())
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		m.status = "error: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("exported %d rows to %s", n, path)
}

func (m *Model) saveFilters() {
	m.cfg.Filters = command.Save(m.filters)
	if err := config.Save(m.fs, m.configPath, m.cfg); err != nil {
		m.status = "error: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("info: saved %d filter commands", len(m.cfg.Filters))
}

func (m *Model) closeCurrent() {
	f := m.logs.Current()
	if f == nil {
		return
	}
	if err := m.logs.Remove(f); err == nil {
		f.Close()
		m.status = "closed " + filepath.Base(f.Path())
	}
}

func (m *Model) startSearch(term string) tea.Cmd {
	if term == "" {
		m.clearSearch()
		return nil
	}
	re, err := search.Compile(term)
	if err != nil {
		m.status = "error: " + err.Error()
		return nil
	}
	m.searchTerm = term
	m.searchRe = re
	return m.redoSearch(true)
}

func (m *Model) clearSearch() {
	m.searchTerm = ""
	m.searchRe = nil
	m.searchGen++
	if m.searchJob != nil {
		m.searchJob.Cancel()
		m.searchJob = nil
	}
	m.text.ClearSearch()
	if m.structPane != nil {
		m.structPane.ClearSearch()
	}
}

// redoSearch searches the whole active file again
func (m *Model) redoSearch(jump bool) tea.Cmd {
	pane := m.activePane()
	f := m.activeFile()
	if m.searchRe == nil || f == nil {
		return nil
	}
	m.searchGen++
	pane.SetSearchResults(m.searchTerm, nil)
	return m.searchRange(pane, f, 0, f.LineCount(), false, jump)
}

func (m *Model) searchRange(pane *Pane, f *source.FileSource, from, to int, more, jump bool) tea.Cmd {
	if more && m.searchJob != nil && running(m.searchJob) {
		// attaching would cancel the search still in progress
		return m.redoSearch(false)
	}

	gen := m.searchGen
	c := &search.Collector{}
	job := search.Start(m.ctx, f, m.searchRe, from, to, c)
	if m.logs.Contains(f) {
		if err := m.logs.Attach(f, job); err != nil {
			return nil
		}
	}
	m.searchJob = job

	return func() tea.Msg {
		err := job.Wait()
		return searchMsg{gen: gen, pane: pane, lines: c.Lines(), err: err, more: more, jump: jump}
	}
}

func running(job *search.Job) bool {
	select {
	case <-job.Done():
		return false
	default:
		return true
	}
}

func (m *Model) searchDone(msg searchMsg) {
	if msg.gen != m.searchGen || errors.Is(msg.err, context.Canceled) {
		return
	}
	if msg.err != nil {
		m.status = "error: search: " + msg.err.Error()
	}
	if msg.more {
		msg.pane.AddSearchResults(msg.lines)
		return
	}
	msg.pane.SetSearchResults(m.searchTerm, msg.lines)
	if msg.jump && !msg.pane.NextSearchResult() {
		m.status = "pattern not found: " + m.searchTerm
	}
}

// View implements tea.Model
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.activePane().Render())
	b.WriteString("\n")

	statusStyle := lipgloss.NewStyle().
		Background(lipgloss.Color(m.cfg.Theme.StatusBar)).
		Foreground(lipgloss.Color(m.cfg.Theme.StatusBarText)).
		Width(m.width)

	var status string
	switch m.mode {
	case ModeSearch:
		status = "/" + m.input.View()
	case ModeCommand:
		status = ":" + m.input.View()
	default:
		status = m.statusLine()
	}
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.cfg.Theme.LineNumbers))
	help := m.status
	if help == "" {
		help = "j/k:scroll  f/b:page  g/G:top/bottom  /:search  n/N:next/prev  ::command  tab:next file  J:structured  F:follow  q:quit"
	}
	b.WriteString(helpStyle.MaxWidth(max(m.width, 1)).Render(help))

	return b.String()
}

func (m *Model) statusLine() string {
	pane := m.activePane()
	vp := pane.Viewport()

	var parts []string
	if m.showStructured {
		f := m.structFile()
		parts = append(parts, fmt.Sprintf("%s [%s %d/%d]",
			filepath.Base(f.Path()), f.Format(), m.structIndex+1, len(m.structured)))
	} else if f := m.logs.Current(); f != nil {
		name := filepath.Base(f.Path())
		if n := m.logs.Len(); n > 1 {
			name += fmt.Sprintf(" (+%d)", n-1)
		}
		parts = append(parts, name)
	} else {
		parts = append(parts, "no files")
	}

	parts = append(parts,
		fmt.Sprintf("R%d/%d", vp.CurrentRow()+1, pane.provider.LineCount()),
		fmt.Sprintf("%.0f%%", vp.PercentScrolled()))

	if !m.showStructured {
		if hidden := m.logs.FilteredCount(); hidden > 0 {
			parts = append(parts, fmt.Sprintf("%d hidden", hidden))
		}
		for _, f := range m.filters.Filters() {
			if !f.Enabled() {
				parts = append(parts, fmt.Sprintf("%s:%s off", f.Kind(), f.ID()))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s:%s %d", f.Kind(), f.ID(), m.logs.FilteredCountFor(f.Index())))
		}
	}
	if pane.IsFollowing() {
		parts = append(parts, "FOLLOW")
	}
	if m.searchTerm != "" {
		parts = append(parts, fmt.Sprintf("[%d matches]", len(pane.SearchResults())))
	}
	return " " + strings.Join(parts, "  ")
}

// Close cancels searches and closes every file
func (m *Model) Close() error {
	m.cancel()
	err := m.logs.Close()
	for _, f := range m.structured {
		f.Close()
	}
	m.structured = nil
	return err
}
