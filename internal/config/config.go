package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

const appName = "lview"

// Config holds all application configuration
type Config struct {
	Theme     ThemeConfig    `toml:"theme"`
	LogLevels LogLevelConfig `toml:"log_levels"`
	Display   DisplayConfig  `toml:"display"`
	Messages  MessageConfig  `toml:"messages"`
	Poll      PollConfig     `toml:"poll"`
	Log       LogConfig      `toml:"log"`

	// Filters holds the saved filter stack as command lines, e.g.
	// "filter-out DEBUG" or "disable-filter DEBUG".
	Filters []string `toml:"filters"`
}

// ThemeConfig defines color schemes
type ThemeConfig struct {
	LineNumbers   string         `toml:"line_numbers"`
	StatusBar     string         `toml:"status_bar"`
	StatusBarText string         `toml:"status_bar_text"`
	SearchMatch   string         `toml:"search_match"`
	Levels        LogLevelColors `toml:"levels"`
}

// LogLevelColors defines colors for each log level
type LogLevelColors struct {
	Trace string `toml:"trace"`
	Debug string `toml:"debug"`
	Info  string `toml:"info"`
	Warn  string `toml:"warn"`
	Error string `toml:"error"`
	Fatal string `toml:"fatal"`
}

// LogLevelConfig defines log level detection patterns
type LogLevelConfig struct {
	TracePatterns []string `toml:"trace_patterns"`
	DebugPatterns []string `toml:"debug_patterns"`
	InfoPatterns  []string `toml:"info_patterns"`
	WarnPatterns  []string `toml:"warn_patterns"`
	ErrorPatterns []string `toml:"error_patterns"`
	FatalPatterns []string `toml:"fatal_patterns"`
}

// DisplayConfig holds display options
type DisplayConfig struct {
	ShowLineNumbers bool `toml:"show_line_numbers"`
	SyntaxHighlight bool `toml:"syntax_highlight"`
}

// MessageConfig controls how physical lines group into messages.
type MessageConfig struct {
	ContinuationPrefixes []string `toml:"continuation_prefixes"`
	// DetectJSON promotes files made of JSON objects out of the text view.
	DetectJSON bool `toml:"detect_json"`
}

// PollConfig controls the rescan tick.
type PollConfig struct {
	IntervalMs int `toml:"interval_ms"`
}

// LogConfig controls the diagnostic log. An empty path disables it.
type LogConfig struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Theme: ThemeConfig{
			LineNumbers:   "240",
			StatusBar:     "236",
			StatusBarText: "252",
			SearchMatch:   "226",
			Levels: LogLevelColors{
				Trace: "240",
				Debug: "244",
				Info:  "250",
				Warn:  "214",
				Error: "167",
				Fatal: "196",
			},
		},
		LogLevels: LogLevelConfig{
			TracePatterns: []string{"[TRC]", "[TRACE]", "TRACE"},
			DebugPatterns: []string{"[DBG]", "[DEBUG]", "DEBUG"},
			InfoPatterns:  []string{"[INF]", "[INFO]", "INFO"},
			WarnPatterns:  []string{"[WRN]", "[WARN]", "[WARNING]", "WARN"},
			ErrorPatterns: []string{"[ERR]", "[ERROR]", "ERROR"},
			FatalPatterns: []string{"[FTL]", "[FATAL]", "FATAL", "[CRIT]", "CRITICAL"},
		},
		Display: DisplayConfig{
			ShowLineNumbers: true,
			SyntaxHighlight: true,
		},
		Messages: MessageConfig{
			ContinuationPrefixes: []string{" ", "\t"},
			DetectJSON:           true,
		},
		Poll: PollConfig{
			IntervalMs: 250,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads config from path, falling back to defaults when the file
// does not exist. An empty path means DefaultPath.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Poll.IntervalMs <= 0 {
		cfg.Poll.IntervalMs = DefaultConfig().Poll.IntervalMs
	}

	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed
func Save(fs afero.Fs, path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return nil
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return afero.WriteFile(fs, path, data, 0644)
}

// DefaultPath returns $XDG_CONFIG_HOME/lview/config.toml, falling back to
// ~/.config. Returns "" when no home directory is known.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "config.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", appName, "config.toml")
}
