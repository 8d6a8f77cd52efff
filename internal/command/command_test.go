package command

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimelordUK/lview/internal/filter"
)

func newRunner() (*filter.Set, *Runner) {
	set := filter.NewSet()
	return set, NewRunner(set, nil, nil)
}

func TestFilterCommands(t *testing.T) {
	set, r := newRunner()

	steps := []struct {
		line    string
		message string
		changed bool
		wantErr string
	}{
		{"filter-out DEBUG", "info: filter now active", true, ""},
		{"filter-in error|warn", "info: filter now active", true, ""},
		{"disable-filter DEBUG", "info: filter disabled", true, ""},
		{"disable-filter DEBUG", "info: filter already disabled", false, ""},
		{"filter-out DEBUG", "info: filter enabled", true, ""},
		{"filter-out DEBUG", "info: filter already enabled", false, ""},
		{"enable-filter DEBUG", "info: filter already enabled", false, ""},
		{"filter-in DEBUG", "", false, "filter already exists"},
		{"enable-filter nope", "", false, "no such filter -- nope"},
		{"delete-filter error|warn", "info: deleted filter", true, ""},
		{"filter-in (", "", false, "compile"},
		{"filter-in", "", false, "expecting a regular expression"},
		{"frobnicate x", "", false, "unknown command -- frobnicate"},
	}

	for _, step := range steps {
		res, err := r.Exec(step.line)
		if step.wantErr != "" {
			require.Error(t, err, step.line)
			assert.Contains(t, err.Error(), step.wantErr, step.line)
			continue
		}
		require.NoError(t, err, step.line)
		assert.Equal(t, step.message, res.Message, step.line)
		assert.Equal(t, step.changed, res.Changed, step.line)
	}

	require.Equal(t, 1, set.Len())
	f := set.Get("DEBUG")
	require.NotNil(t, f)
	assert.Equal(t, filter.Exclude, f.Kind())
	assert.True(t, f.Enabled())
}

func TestFilterLimit(t *testing.T) {
	set, r := newRunner()
	for i := 0; i < filter.MaxFilters; i++ {
		_, err := r.Exec(fmt.Sprintf("filter-out f%d", i))
		require.NoError(t, err)
	}

	_, err := r.Exec("filter-out one-more")
	require.Error(t, err)
	assert.ErrorIs(t, err, filter.ErrCapacity)
	assert.Equal(t, "filter limit reached, try combining filters with a pipe symbol (e.g. foo|bar)", err.Error())
	assert.Equal(t, filter.MaxFilters, set.Len())
}

func TestLevelAndTimeFilters(t *testing.T) {
	set, r := newRunner()

	res, err := r.Exec("filter-level warning")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	f := set.Get("level>=warn")
	require.NotNil(t, f)
	assert.True(t, f.Matches(nil, 0, []byte("ERROR boom")))
	assert.False(t, f.Matches(nil, 0, []byte("INFO fine")))

	_, err = r.Exec("filter-level loud")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = r.Exec("filter-time 2024-01-15T10:00:00 -")
	require.NoError(t, err)
	_, err = r.Exec("filter-time 2024-01-15T10:00:00")
	assert.ErrorIs(t, err, ErrMissingArg)
	_, err = r.Exec("filter-time 2024-01-15T11:00:00 2024-01-15T10:00:00")
	assert.ErrorContains(t, err, "empty time range")
}

func TestSaveRestore(t *testing.T) {
	set, r := newRunner()
	for _, line := range []string{
		"filter-out DEBUG",
		"filter-in timeout|refused",
		"filter-out-level info",
		"filter-time 2024-01-15T10:00:00 2024-01-15T12:00:00",
		"disable-filter timeout|refused",
	} {
		_, err := r.Exec(line)
		require.NoError(t, err, line)
	}

	saved := Save(set)
	assert.Equal(t, []string{
		"filter-out DEBUG",
		"filter-in timeout|refused",
		"disable-filter timeout|refused",
		"filter-out-level info",
		"filter-time 2024-01-15T10:00:00 2024-01-15T12:00:00",
	}, saved)

	restored, r2 := newRunner()
	changed, err := r2.Restore(append(saved, "bogus"))
	assert.True(t, changed)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, saved, Save(restored))
}
