package view

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TimelordUK/lview/internal/config"
	"github.com/TimelordUK/lview/internal/source"
)

// visibleRows shows physical lines 0, 10, 20, ...
type visibleRows int

func (n visibleRows) LineCount() int { return int(n) }

func (n visibleRows) GetLine(i int) (*source.Line, error) {
	return &source.Line{Content: []byte(fmt.Sprintf("line %d", i*10)), OriginalIndex: i * 10}, nil
}

func (n visibleRows) GetLines(start, count int) ([]*source.Line, error) {
	var out []*source.Line
	for i := start; i < start+count && i < int(n); i++ {
		l, _ := n.GetLine(i)
		out = append(out, l)
	}
	return out, nil
}

func TestRenderUsesPhysicalLineNumbers(t *testing.T) {
	cfg := config.DefaultConfig()
	v := NewViewport(40, 3, cfg)
	v.SetProvider(visibleRows(5))

	out := strings.Split(v.Render(), "\n")
	assert.Len(t, out, 3)
	assert.Contains(t, out[0], " 1 line 0")
	assert.Contains(t, out[1], "11 line 10")
	assert.Contains(t, out[2], "21 line 20")
}

func TestRenderPadsPastEnd(t *testing.T) {
	v := NewViewport(40, 4, config.DefaultConfig())
	v.SetShowLineNumbers(false)
	v.SetProvider(visibleRows(2))

	assert.Equal(t, "line 0\nline 10\n~\n~", v.Render())
}

func TestScrollClamps(t *testing.T) {
	v := NewViewport(40, 3, config.DefaultConfig())
	v.SetProvider(visibleRows(10))

	v.ScrollDown(100)
	assert.Equal(t, 7, v.CurrentRow())
	assert.True(t, v.AtBottom())
	assert.Equal(t, float64(100), v.PercentScrolled())

	v.ScrollUp(2)
	assert.False(t, v.AtBottom())
	v.GotoTop()
	assert.Equal(t, 0, v.CurrentRow())
	v.GotoBottom()
	assert.Equal(t, 7, v.CurrentRow())
	v.PageUp()
	assert.Equal(t, 5, v.CurrentRow())
	v.GotoRow(-4)
	assert.Equal(t, 0, v.CurrentRow())
}
