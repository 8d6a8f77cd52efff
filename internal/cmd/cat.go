package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/TimelordUK/lview/internal/command"
	"github.com/TimelordUK/lview/internal/filter"
	followpkg "github.com/TimelordUK/lview/internal/follow"
	"github.com/TimelordUK/lview/internal/logging"
	"github.com/TimelordUK/lview/internal/multifile"
	"github.com/TimelordUK/lview/internal/source"
	"github.com/TimelordUK/lview/pkg/logformat"
)

var (
	catFollow bool
	catPrefix bool
	catLines  int
)

// catCmd prints what the viewer would show, without the TUI
var catCmd = &cobra.Command{
	Use:   "cat [files...]",
	Short: "Print the visible rows of log files",
	Long: `Print the rows that survive the filter stack, one file after another.

Saved filters from the config file apply, as do --filter-in and
--filter-out. With --follow a single file is tailed through the filters.

Examples:
  lview cat app.log --filter-out DEBUG
  lview cat app.log -f -n 20 --filter-in ERROR`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCat,
}

func init() {
	rootCmd.AddCommand(catCmd)

	catCmd.Flags().BoolVarP(&catFollow, "follow", "f", false, "keep printing rows as they are appended")
	catCmd.Flags().BoolVar(&catPrefix, "prefix", false, "prefix rows with [file:line]")
	catCmd.Flags().IntVarP(&catLines, "lines", "n", -1, "print only the last N rows of each file")
}

func runCat(cmd *cobra.Command, args []string) error {
	if catFollow && len(args) != 1 {
		return errors.New("--follow takes a single file")
	}

	fs := afero.NewOsFs()
	cfg, _, err := loadConfig(fs)
	if err != nil {
		return err
	}
	log, closer, err := logging.New(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()

	set := filter.NewSet()
	runner := command.NewRunner(set, logformat.NewLevelDetector(&cfg.LogLevels), logformat.NewTimestampParser())
	if _, err := runner.Restore(append(append([]string{}, cfg.Filters...), filterCommands()...)); err != nil {
		return err
	}

	src := multifile.New(set, multifile.WithLogger(log))
	defer src.Close()

	var files []*source.FileSource
	for _, path := range args {
		f, err := source.NewFileSource(path, source.ConfigOptions(cfg)...)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := src.Add(f); err != nil {
			return err
		}
		files = append(files, f)
	}

	w := followpkg.NewWriter(src, cmd.OutOrStdout(),
		followpkg.WithPrefix(catPrefix || len(args) > 1),
		followpkg.WithInterval(time.Duration(cfg.Poll.IntervalMs)*time.Millisecond),
		followpkg.WithLogger(log))

	for _, f := range files {
		src.ToFront(f)
		if err := w.Prime(catLines); err != nil {
			return err
		}
	}
	if !catFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx)
}
