package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[render]
sort_delay = 0
whitewash = true

[log]
level = "debug"
file = "render.log"
`))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Render.SortDelay)
	assert.True(t, cfg.Render.Whitewash)
	assert.Equal(t, 4, cfg.Render.Workers)
	assert.Equal(t, 64, cfg.Render.SourceCache)
	assert.True(t, cfg.Render.Picking)
	assert.Equal(t, "debug", cfg.LoggerOptions().Level)
	assert.Equal(t, "render.log", cfg.LoggerOptions().File)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]byte("[render]\nsort_delay = -2\nworkers = 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sort_delay")
	assert.Contains(t, err.Error(), "workers")

	_, err = Parse([]byte("[log]\nlevel = \"chatty\"\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("[render\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[render]\nsort_delay = -1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Render.SortDelay)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
