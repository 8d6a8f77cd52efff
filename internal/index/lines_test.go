package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	lviewio "github.com/TimelordUK/lview/internal/io"
	"github.com/TimelordUK/lview/pkg/logformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func openIndex(t *testing.T, content string) (*LineIndex, *lviewio.MappedFile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	writeFile(t, path, content)
	file, err := lviewio.OpenMapped(path)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	return New(file, logformat.PrefixContinuation(" ", "\t")), file, path
}

func TestScanSplitsLines(t *testing.T) {
	idx, _, _ := openIndex(t, "first\r\nsecond\n  detail\nthird\n")

	res, err := idx.Scan()
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Start: 0, Rollback: 0}, res)
	assert.Equal(t, 4, idx.LineCount())
	assert.False(t, idx.Partial())

	lines, err := idx.GetLines(0, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("first"), []byte("second"), []byte("  detail"), []byte("third")}, lines)

	assert.False(t, idx.Continued(0))
	assert.False(t, idx.Continued(1))
	assert.True(t, idx.Continued(2))
	assert.False(t, idx.Continued(3))
	assert.Equal(t, int64(7), idx.ByteOffset(1))
}

func TestFirstLineIsNeverContinued(t *testing.T) {
	idx, _, _ := openIndex(t, "  indented start\nnext\n")

	_, err := idx.Scan()
	require.NoError(t, err)
	assert.False(t, idx.Continued(0))
}

func TestEmptyFile(t *testing.T) {
	idx, _, _ := openIndex(t, "")

	res, err := idx.Scan()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Start)
	assert.Equal(t, 0, idx.LineCount())

	_, err = idx.GetLine(0)
	assert.Error(t, err)
}

func TestPartialLineIsRereadOnGrowth(t *testing.T) {
	idx, file, path := openIndex(t, "one\ntw")

	_, err := idx.Scan()
	require.NoError(t, err)
	assert.Equal(t, 2, idx.LineCount())
	assert.True(t, idx.Partial())
	line, err := idx.GetLine(1)
	require.NoError(t, err)
	assert.Equal(t, "tw", string(line))

	appendFile(t, path, "o\nthree\n")
	grew, err := file.Refresh()
	require.NoError(t, err)
	require.True(t, grew)

	res, err := idx.Scan()
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Start: 1, Rollback: 1}, res)
	assert.Equal(t, 3, idx.LineCount())
	assert.False(t, idx.Partial())

	line, err = idx.GetLine(1)
	require.NoError(t, err)
	assert.Equal(t, "two", string(line))
}

func TestLongLineGrowsBuffer(t *testing.T) {
	long := strings.Repeat("x", chunkSize*2+17)
	idx, _, _ := openIndex(t, "a\n"+long+"\nb\n")

	_, err := idx.Scan()
	require.NoError(t, err)
	require.Equal(t, 3, idx.LineCount())

	line, err := idx.GetLine(1)
	require.NoError(t, err)
	assert.Len(t, line, len(long))
	line, err = idx.GetLine(2)
	require.NoError(t, err)
	assert.Equal(t, "b", string(line))
}

func TestResetForgetsLines(t *testing.T) {
	idx, _, _ := openIndex(t, "a\nb\n")
	_, err := idx.Scan()
	require.NoError(t, err)

	idx.Reset()
	assert.Equal(t, 0, idx.LineCount())

	res, err := idx.Scan()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Start)
	assert.Equal(t, 2, idx.LineCount())
}
