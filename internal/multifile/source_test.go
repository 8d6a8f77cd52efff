package multifile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimelordUK/lview/internal/filter"
	"github.com/TimelordUK/lview/internal/source"
	"github.com/TimelordUK/lview/pkg/logformat"
)

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func openLog(t *testing.T, path string, opts ...source.Option) *source.FileSource {
	t.Helper()
	opts = append([]source.Option{
		source.WithContinuation(logformat.PrefixContinuation(" ", "\t")),
	}, opts...)
	f, err := source.NewFileSource(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func lines(n int, text func(i int) string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(text(i))
		b.WriteByte('\n')
	}
	return b.String()
}

func visible(s *Source) []int {
	out := []int{}
	for row := 0; row < s.LineCount(); row++ {
		out = append(out, s.OriginalLineNumber(row))
	}
	return out
}

type recorder struct {
	reloads    int
	redos      int
	searchFrom []int
	closed     []*source.FileSource
	promoted   []*source.FileSource
	formats    []logformat.Format
	scanned    int
}

func (r *recorder) ReloadData() { r.reloads++ }
func (r *recorder) RedoSearch() { r.redos++ }
func (r *recorder) SearchNewData(_ *source.FileSource, from, _ int) {
	r.searchFrom = append(r.searchFrom, from)
}
func (r *recorder) ClosedFile(f *source.FileSource) { r.closed = append(r.closed, f) }
func (r *recorder) PromoteFile(f *source.FileSource, format logformat.Format) {
	r.promoted = append(r.promoted, f)
	r.formats = append(r.formats, format)
}
func (r *recorder) ScannedFile(*source.FileSource) { r.scanned++ }

func TestNoFiltersEverythingVisible(t *testing.T) {
	s := New(filter.NewSet())
	f := openLog(t, writeLog(t, "a.log", lines(5, func(i int) string { return "line" })))
	require.NoError(t, s.Add(f))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, visible(s))
	assert.Equal(t, 0, s.FilteredCount())
}

func TestVisibility(t *testing.T) {
	content := lines(7, func(i int) string {
		switch i {
		case 2, 5:
			return "drop me"
		case 3:
			return "keep me"
		}
		return "plain"
	})

	tests := []struct {
		name string
		kind filter.Kind
		text string
		want []int
	}{
		{"exclude", filter.Exclude, "drop", []int{0, 1, 3, 4, 6}},
		{"include", filter.Include, "keep", []int{3}},
		{"include without matches", filter.Include, "absent", []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := filter.NewSet()
			s := New(set)
			require.NoError(t, s.Add(openLog(t, writeLog(t, "v.log", content))))

			_, err := set.Register(tt.kind, filter.NewSubstring(tt.text, false))
			require.NoError(t, err)
			s.OnFiltersChanged()

			assert.Equal(t, tt.want, visible(s))
			assert.Equal(t, 7-len(tt.want), s.FilteredCount())
		})
	}
}

func TestEndToEndExclude(t *testing.T) {
	set := filter.NewSet()
	s := New(set)
	f := openLog(t, writeLog(t, "e.log", lines(5, func(i int) string {
		if i == 1 || i == 3 {
			return "noise"
		}
		return "signal"
	})))
	require.NoError(t, s.Add(f))

	flt, err := set.Register(filter.Exclude, filter.NewSubstring("noise", false))
	require.NoError(t, err)
	set.SetEnabled(flt, false)
	s.OnFiltersChanged()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, visible(s))

	set.SetEnabled(flt, true)
	s.OnFiltersChanged()

	assert.Equal(t, []int{0, 2, 4}, visible(s))
	assert.Equal(t, 2, s.FilteredCount())
	assert.Equal(t, 2, s.FilteredCountFor(flt.Index()))

	value, err := s.ValueForLine(1)
	require.NoError(t, err)
	assert.Equal(t, "signal", string(value))
	n, err := s.LengthForLine(2)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = s.ValueForLine(3)
	assert.ErrorIs(t, err, ErrRowRange)

	assert.Equal(t, 1, s.FilteredIndexFor(2))
	assert.Equal(t, -1, s.FilteredIndexFor(3))
}

func TestRebuildIdempotent(t *testing.T) {
	set := filter.NewSet()
	s := New(set)
	require.NoError(t, s.Add(openLog(t, writeLog(t, "r.log",
		"a start\n detail x\nb\nc x\n more\nd\n"))))

	_, err := set.Register(filter.Include, filter.NewSubstring("x", false))
	require.NoError(t, err)

	s.OnFiltersChanged()
	first := visible(s)
	s.OnFiltersChanged()

	assert.Equal(t, []int{0, 1, 3, 4}, first)
	assert.Equal(t, first, visible(s))
}

func TestMultiLineMessage(t *testing.T) {
	set := filter.NewSet()
	_, err := set.Register(filter.Exclude, filter.NewSubstring("boom", false))
	require.NoError(t, err)

	s := New(set)
	require.NoError(t, s.Add(openLog(t, writeLog(t, "m.log",
		"l0\nl1\nl2\nl3\nl4 start\n l5 boom\n l6\nl7\n"))))

	assert.Equal(t, []int{0, 1, 2, 3, 7}, visible(s))
}

func TestRotation(t *testing.T) {
	s := New(filter.NewSet())
	var files []*source.FileSource
	for _, name := range []string{"a.log", "b.log", "c.log"} {
		f := openLog(t, writeLog(t, name, name+"\n"))
		require.NoError(t, s.Add(f))
		files = append(files, f)
	}
	require.Equal(t, files[0], s.Current())

	s.RotateLeft()
	assert.Equal(t, []*source.FileSource{files[1], files[2], files[0]}, s.Files())
	s.RotateRight()
	assert.Equal(t, files[0], s.Current())

	s.RotateRight()
	assert.Equal(t, files[2], s.Current())
	s.RotateLeft()
	assert.Equal(t, files, s.Files())

	assert.True(t, s.ToFront(files[2]))
	assert.Equal(t, []*source.FileSource{files[2], files[0], files[1]}, s.Files())
	value, err := s.ValueForLine(0)
	require.NoError(t, err)
	assert.Equal(t, "c.log", string(value))

	other := openLog(t, writeLog(t, "d.log", "d\n"))
	assert.False(t, s.ToFront(other))
}

func TestRotateSingleFileIsNoop(t *testing.T) {
	rec := &recorder{}
	s := New(filter.NewSet(), WithListener(rec))
	f := openLog(t, writeLog(t, "a.log", "a\n"))
	require.NoError(t, s.Add(f))
	reloads := rec.reloads

	s.RotateLeft()
	s.RotateRight()

	assert.Equal(t, f, s.Current())
	assert.Equal(t, reloads, rec.reloads)
	assert.Zero(t, rec.redos)
}

func TestStaleFileRebuiltWhenBroughtToFront(t *testing.T) {
	set := filter.NewSet()
	s := New(set)
	a := openLog(t, writeLog(t, "a.log", "keep\ndrop\n"))
	b := openLog(t, writeLog(t, "b.log", "drop\nkeep\ndrop\n"))
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	_, err := set.Register(filter.Exclude, filter.NewSubstring("drop", false))
	require.NoError(t, err)
	s.OnFiltersChanged()
	assert.Equal(t, []int{0}, visible(s))

	s.RotateLeft()
	assert.Equal(t, b, s.Current())
	assert.Equal(t, []int{1}, visible(s))
}

func TestRescanAppendsNewLines(t *testing.T) {
	set := filter.NewSet()
	_, err := set.Register(filter.Exclude, filter.NewSubstring("debug", false))
	require.NoError(t, err)

	rec := &recorder{}
	s := New(set, WithListener(rec))
	path := writeLog(t, "g.log", "info one\ndebug two\n")
	require.NoError(t, s.Add(openLog(t, path)))
	assert.Equal(t, []int{0}, visible(s))

	assert.False(t, s.Rescan(rec), "nothing new")

	appendLog(t, path, "info three\ndebug four\ninfo five\n")
	assert.True(t, s.Rescan(rec))

	assert.Equal(t, []int{0, 2, 4}, visible(s))
	assert.Equal(t, []int{1}, rec.searchFrom)
	assert.Equal(t, 2, rec.scanned)
}

func TestLateContinuationReclassifiesMessage(t *testing.T) {
	set := filter.NewSet()
	_, err := set.Register(filter.Exclude, filter.NewSubstring("boom", false))
	require.NoError(t, err)

	s := New(set)
	path := writeLog(t, "c.log", "l0\nl1 start\n")
	f := openLog(t, path)
	require.NoError(t, s.Add(f))
	assert.Equal(t, []int{0, 1}, visible(s))

	appendLog(t, path, " l2 boom\nl3\n")
	s.Rescan(nil)

	assert.Equal(t, []int{0, 3}, visible(s))
	assert.Equal(t, 2, s.FilteredCountFor(0))
	assert.Equal(t, 4, f.LineCount())
}

func TestPartialLineIsReclassified(t *testing.T) {
	set := filter.NewSet()
	_, err := set.Register(filter.Exclude, filter.NewSubstring("xyz", false))
	require.NoError(t, err)

	s := New(set)
	path := writeLog(t, "p.log", "keep\npart")
	f := openLog(t, path)
	require.NoError(t, s.Add(f))
	assert.Equal(t, []int{0, 1}, visible(s))

	appendLog(t, path, "ial xyz\nnext\n")
	s.Rescan(nil)

	assert.Equal(t, 3, f.LineCount())
	assert.Equal(t, []int{0, 2}, visible(s))
	assert.Equal(t, 1, s.FilteredCountFor(0))
}

func TestDeletedFileIsClosed(t *testing.T) {
	rec := &recorder{}
	s := New(filter.NewSet(), WithListener(rec))
	pathA := writeLog(t, "a.log", "a\n")
	a := openLog(t, pathA)
	b := openLog(t, writeLog(t, "b.log", "b\n"))
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	require.NoError(t, os.Remove(pathA))
	assert.True(t, s.Rescan(rec))

	assert.Equal(t, []*source.FileSource{a}, rec.closed)
	assert.True(t, a.IsClosed())
	assert.False(t, s.Contains(a))
	assert.Equal(t, b, s.Current())
	assert.Equal(t, 1, s.LineCount())
}

func TestStructuredFileIsPromoted(t *testing.T) {
	rec := &recorder{}
	s := New(filter.NewSet(), WithListener(rec))
	f := openLog(t, writeLog(t, "j.log", `{"level":"info","msg":"a"}`+"\n"+`{"level":"warn","msg":"b"}`+"\n"),
		source.WithDetector(logformat.JSONDetector{}, 10))
	require.NoError(t, s.Add(f))

	s.Rescan(rec)

	assert.Equal(t, []*source.FileSource{f}, rec.promoted)
	assert.Equal(t, []logformat.Format{logformat.FormatJSON}, rec.formats)
	assert.False(t, f.IsClosed())
	assert.Zero(t, s.Len())
	assert.Nil(t, s.Current())
	assert.Zero(t, s.LineCount())
}

func TestTruncatedFileStartsOver(t *testing.T) {
	set := filter.NewSet()
	flt, err := set.Register(filter.Include, filter.NewSubstring("x", false))
	require.NoError(t, err)

	rec := &recorder{}
	s := New(set, WithListener(rec))
	path := writeLog(t, "t.log", "x1\ny2\nx3\ny4\nx5\n")
	f := openLog(t, path)
	require.NoError(t, s.Add(f))
	assert.Equal(t, []int{0, 2, 4}, visible(s))

	require.NoError(t, os.WriteFile(path, []byte("y\nx\n"), 0644))
	reloads := rec.reloads
	assert.True(t, s.Rescan(rec))

	assert.Equal(t, []int{1}, visible(s))
	assert.Equal(t, 1, s.FilteredCountFor(flt.Index()))
	assert.Greater(t, rec.reloads, reloads)
}

func TestRemoveAndClose(t *testing.T) {
	s := New(filter.NewSet())
	a := openLog(t, writeLog(t, "a.log", "a\n"))
	b := openLog(t, writeLog(t, "b.log", "b\nb\n"))
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	require.NoError(t, s.Remove(a))
	assert.ErrorIs(t, s.Remove(a), ErrUnknownFile)
	assert.False(t, a.IsClosed())
	assert.Equal(t, 2, s.LineCount())

	lines, err := s.GetLines(0, 10)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[1].OriginalIndex)

	require.NoError(t, s.Close())
	assert.True(t, b.IsClosed())
	assert.Zero(t, s.Len())
}
