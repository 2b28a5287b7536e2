package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/rtscope/internal/core/config"
	"github.com/hay-kot/rtscope/internal/series"
)

func yamlBlock(t *testing.T, md string) string {
	t.Helper()
	_, rest, ok := strings.Cut(md, "```yaml\n")
	require.True(t, ok, "guide has a yaml block")
	block, _, ok := strings.Cut(rest, "```")
	require.True(t, ok)
	return block
}

func TestConfigGuide_Loads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlBlock(t, configGuide())), 0o644))

	cfg, err := config.Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, config.DefaultAddress, cfg.Subscriber.Address)
	assert.Equal(t, time.Millisecond, cfg.Subscriber.PollInterval)
	require.Len(t, cfg.Channels, 3)
	assert.Equal(t, series.ModeBar, cfg.Channels[0].Mode)
	assert.Equal(t, series.Range{Min: 0, Max: 50}, cfg.Channels[0].YRange)
	assert.InDelta(t, 0.4, cfg.Channels[2].Deadband, 1e-9)
	assert.Equal(t, series.DefaultFilenameTemplate, cfg.Export.Template)
}

func TestTransportsGuide_ListsSchemes(t *testing.T) {
	guide := transportsGuide()
	for _, scheme := range []string{"tcp", "mqtt", "kafka", "ws", "file", "mem"} {
		assert.Contains(t, guide, scheme+"://")
	}
}

func TestRenderMarkdown(t *testing.T) {
	var raw bytes.Buffer
	require.NoError(t, renderMarkdown(&raw, "# Title\n\nbody", false, 80))
	assert.Equal(t, "# Title\n\nbody\n", raw.String())

	var styled bytes.Buffer
	require.NoError(t, renderMarkdown(&styled, "# Title\n\nbody", true, 80))
	assert.Contains(t, styled.String(), "Title")
}
