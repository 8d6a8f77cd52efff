// Package follow tails the current file of a view and writes rows that
// become visible to a writer, like tail -f through the filter stack.
package follow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimelordUK/lview/internal/multifile"
	"github.com/TimelordUK/lview/internal/source"
	"github.com/TimelordUK/lview/pkg/logformat"
)

const defaultInterval = 250 * time.Millisecond

// Option configures a Writer
type Option func(*Writer)

// WithPrefix adds "[name:line] " before every row
func WithPrefix(prefix bool) Option {
	return func(w *Writer) { w.prefix = prefix }
}

// WithInterval sets the poll interval
func WithInterval(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(w *Writer) { w.log = log }
}

// Writer copies newly visible rows of src's current file to out. It
// installs itself as src's listener.
type Writer struct {
	src      *multifile.Source
	out      *bufio.Writer
	prefix   bool
	interval time.Duration
	log      zerolog.Logger

	mu sync.Mutex
	// last physical line written, -1 before the first
	last int
	// the current file changed identity or was rewritten
	restart bool
}

// NewWriter creates a writer over src
func NewWriter(src *multifile.Source, out io.Writer, opts ...Option) *Writer {
	w := &Writer{
		src:      src,
		out:      bufio.NewWriter(out),
		interval: defaultInterval,
		log:      zerolog.Nop(),
		last:     -1,
	}
	for _, opt := range opts {
		opt(w)
	}
	src.SetListener(w)
	return w
}

// ReloadData is called when row numbers of the current file may refer to
// other lines, e.g. after truncation.
func (w *Writer) ReloadData() {
	w.restart = true
}

func (w *Writer) RedoSearch()                               {}
func (w *Writer) SearchNewData(*source.FileSource, int, int) {}

// Prime writes the last n visible rows; n < 0 writes all of them.
func (w *Writer) Prime(n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.restart = false
	start := 0
	if total := w.src.LineCount(); n >= 0 && total > n {
		start = total - n
	}
	return w.writeFrom(start)
}

// Poll rescans src and writes rows that became visible. It returns the
// number of rows written, and multifile.ErrNoFile once no file is left.
func (w *Writer) Poll() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.src.Rescan(w)
	if w.src.Current() == nil {
		return 0, multifile.ErrNoFile
	}
	if w.restart {
		w.restart = false
		w.last = -1
	}

	// rows are ordered by physical line
	start := sort.Search(w.src.LineCount(), func(row int) bool {
		return w.src.OriginalLineNumber(row) > w.last
	})
	before := w.last
	err := w.writeFrom(start)
	if w.last > before {
		w.log.Debug().Int("from", before+1).Int("to", w.last).Msg("followed")
	}
	return w.src.LineCount() - start, err
}

func (w *Writer) writeFrom(start int) error {
	f := w.src.Current()
	if f == nil {
		return multifile.ErrNoFile
	}
	name := filepath.Base(f.Path())

	total := w.src.LineCount()
	for row := start; row < total; row++ {
		line, err := w.src.GetLine(row)
		if err != nil {
			return err
		}
		if w.prefix {
			fmt.Fprintf(w.out, "[%s:%d] ", name, line.OriginalIndex+1)
		}
		w.out.Write(line.Content)
		w.out.WriteByte('\n')
		w.last = line.OriginalIndex
	}
	return w.out.Flush()
}

// Run polls until ctx is done or the view runs out of files
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Poll(); err != nil {
				return err
			}
		}
	}
}

// ClosedFile, PromoteFile and ScannedFile make the Writer its own rescan
// callback.
func (w *Writer) ClosedFile(f *source.FileSource) {
	w.log.Info().Str("file", f.Path()).Msg("followed file closed")
}

func (w *Writer) PromoteFile(f *source.FileSource, format logformat.Format) {
	w.log.Info().Str("file", f.Path()).Str("format", string(format)).Msg("followed file is structured, closing")
	f.Close()
}

func (w *Writer) ScannedFile(*source.FileSource) {}
