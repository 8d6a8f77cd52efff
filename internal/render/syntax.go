package render

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/TimelordUK/lview/internal/source"
)

const syntaxTheme = "monokai"

// SyntaxRenderer highlights each line on its own with a chroma lexer
type SyntaxRenderer struct {
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter chroma.Formatter
}

// NewSyntaxRenderer picks a lexer from the file name
func NewSyntaxRenderer(filename string) *SyntaxRenderer {
	return newSyntaxRenderer(lexers.Match(filename))
}

// NewSyntaxRendererFor uses the lexer with the given name, e.g. "json"
func NewSyntaxRendererFor(language string) *SyntaxRenderer {
	return newSyntaxRenderer(lexers.Get(language))
}

func newSyntaxRenderer(lexer chroma.Lexer) *SyntaxRenderer {
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := styles.Get(syntaxTheme)
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	return &SyntaxRenderer{
		lexer:     chroma.Coalesce(lexer),
		style:     style,
		formatter: formatter,
	}
}

// Language returns the lexer name
func (r *SyntaxRenderer) Language() string {
	return r.lexer.Config().Name
}

func (r *SyntaxRenderer) Render(line *source.Line) string {
	content := string(line.Content)
	if content == "" {
		return ""
	}

	it, err := r.lexer.Tokenise(nil, content)
	if err != nil {
		return content
	}
	var b strings.Builder
	if err := r.formatter.Format(&b, r.style, it); err != nil {
		return content
	}

	// lexers may append a newline token
	return strings.NewReplacer("\n", "", "\r", "").Replace(b.String())
}

var syntaxExts = map[string]bool{
	".go": true, ".rs": true, ".py": true, ".js": true, ".ts": true,
	".c": true, ".cpp": true, ".h": true, ".java": true, ".rb": true,
	".sh": true, ".bash": true, ".lua": true, ".sql": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".xml": true,
	".html": true, ".css": true, ".md": true,
}

var syntaxNames = map[string]bool{
	"makefile": true, "dockerfile": true, "cmakelists.txt": true,
}

// IsSyntaxHighlightable reports whether the file looks like source code
// rather than a log.
func IsSyntaxHighlightable(filename string) bool {
	if syntaxExts[strings.ToLower(filepath.Ext(filename))] {
		return true
	}
	return syntaxNames[strings.ToLower(filepath.Base(filename))]
}
