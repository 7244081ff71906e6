package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exportedEnv reads the variables back out of an export script.
func exportedEnv(t *testing.T, script string) []string {
	t.Helper()

	var vars []string
	for _, line := range strings.Split(script, "\n") {
		rest, ok := strings.CutPrefix(line, "export ")
		if !ok {
			continue
		}

		name, value, ok := strings.Cut(rest, "=")
		require.True(t, ok, line)

		value = strings.TrimSuffix(strings.TrimPrefix(value, "'"), "'")
		vars = append(vars, name+"="+strings.ReplaceAll(value, `'\''`, "'"))
	}

	return vars
}

func TestExportScript(t *testing.T) {
	dir := t.TempDir()

	first := filepath.Join(dir, "first.toml")
	second := filepath.Join(dir, "second.toml")

	require.NoError(t, os.WriteFile(first, []byte(`
[app]
title = "Hub's library"

[search]
page_len = 15
`), 0o644))

	require.NoError(t, os.WriteFile(second, []byte(`
[app]
title = "Second"
`), 0o644))

	script, err := ExportScript([]string{first, second})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "#!/bin/sh\n"))
	assert.Contains(t, script, "export KERKOAPP_JSON_01=")
	assert.Contains(t, script, "export KERKOAPP_JSON_02=")

	vars := exportedEnv(t, script)
	require.Len(t, vars, 2)

	cfg, err := FromEnv(env(vars[0]))
	require.NoError(t, err)
	assert.Equal(t, "Hub's library", cfg.App.Title)
	assert.Equal(t, 15, cfg.Search.PageLen)

	// later files win, as with KERKOAPP_CONFIG_FILES
	cfg, err = FromEnv(env(vars...))
	require.NoError(t, err)
	assert.Equal(t, "Second", cfg.App.Title)
}

func TestExportScriptBadFile(t *testing.T) {
	_, err := ExportScript([]string{filepath.Join(t.TempDir(), "missing.toml")})
	assert.Error(t, err)
}
