package cmd

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TimelordUK/lview/internal/config"
	"github.com/TimelordUK/lview/internal/logging"
	"github.com/TimelordUK/lview/internal/ui"
)

var (
	cfgFile   string
	filterIn  []string
	filterOut []string
	follow    bool
)

// rootCmd opens the interactive viewer
var rootCmd = &cobra.Command{
	Use:   "lview [files...]",
	Short: "A filtering log viewer for one or more files",
	Long: `Open log files in a pager that hides or shows whole messages by filter.

Lines starting with whitespace continue the message above them, so a stack
trace is kept or dropped together with its first line. Files are polled
for new data; rotation and truncation are picked up on the next tick.

Examples:
  lview app.log
  lview app.log worker.log --filter-out DEBUG
  lview /var/log/syslog --filter-in 'sshd|sudo' --poll 1000`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runView,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/lview/config.toml)")
	rootCmd.PersistentFlags().StringArrayVar(&filterIn, "filter-in", nil, "only show messages matching PATTERN (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&filterOut, "filter-out", nil, "hide messages matching PATTERN (repeatable)")
	rootCmd.PersistentFlags().Int("poll", 0, "rescan interval in milliseconds")
	rootCmd.PersistentFlags().String("log-file", "", "write diagnostics to this file")
	rootCmd.PersistentFlags().String("log-level", "", "diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-highlight", false, "disable syntax highlighting")
	rootCmd.Flags().BoolVarP(&follow, "follow", "F", false, "start at the end and keep following new rows")

	// Bind flags to viper
	viper.BindPFlag("poll", rootCmd.PersistentFlags().Lookup("poll"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("no-highlight", rootCmd.PersistentFlags().Lookup("no-highlight"))
}

// initConfig lets LVIEW_POLL, LVIEW_LOG_FILE and friends stand in for flags
func initConfig() {
	viper.SetEnvPrefix("LVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file and applies flag and environment
// overrides on top of it.
func loadConfig(fs afero.Fs) (*config.Config, string, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(fs, path)
	if err != nil {
		return nil, "", err
	}

	if ms := viper.GetInt("poll"); ms > 0 {
		cfg.Poll.IntervalMs = ms
	}
	if p := viper.GetString("log-file"); p != "" {
		cfg.Log.Path = p
	}
	if l := viper.GetString("log-level"); l != "" {
		cfg.Log.Level = l
	}
	if viper.GetBool("no-highlight") {
		cfg.Display.SyntaxHighlight = false
	}
	return cfg, path, nil
}

// filterCommands turns the --filter-in and --filter-out flags into
// filter command lines.
func filterCommands() []string {
	var cmds []string
	for _, p := range filterIn {
		cmds = append(cmds, "filter-in "+p)
	}
	for _, p := range filterOut {
		cmds = append(cmds, "filter-out "+p)
	}
	return cmds
}

func runView(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	cfg, cfgPath, err := loadConfig(fs)
	if err != nil {
		return err
	}

	log, closer, err := logging.New(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()
	log.Info().Strs("files", args).Str("config", cfgPath).Msg("starting viewer")

	model, err := ui.NewModelWithOptions(ui.ModelOptions{
		Paths:      args,
		Config:     cfg,
		ConfigPath: cfgPath,
		Fs:         fs,
		Logger:     log,
		Filters:    filterCommands(),
		Follow:     follow,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
