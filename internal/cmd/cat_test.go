package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatAppliesFilters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("start INFO\nnoise DEBUG\n  more noise\nstop INFO\n"), 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"cat", path,
		"--config", filepath.Join(dir, "missing.toml"),
		"--filter-out", "DEBUG"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "start INFO\nstop INFO\n", out.String())
}

func TestFilterCommands(t *testing.T) {
	filterIn = []string{"api"}
	filterOut = []string{"DEBUG", "health"}
	defer func() { filterIn, filterOut = nil, nil }()

	assert.Equal(t, []string{"filter-in api", "filter-out DEBUG", "filter-out health"}, filterCommands())
}
