package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtechhub/kerkoapp/internal/config"
)

func writeSources(t *testing.T, dir string) {
	t.Helper()

	for _, b := range defaultBundles {
		for _, src := range b.Sources {
			file := filepath.Join(dir, filepath.FromSlash(src))
			require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
			require.NoError(t, os.WriteFile(file, []byte("/* "+src+" */\n"), 0o644))
		}
	}
}

func TestAssetURLs(t *testing.T) {
	debug := newAssets(config.AssetsConfig{Debug: true, StaticDir: "static"})
	assert.Equal(t, []string{"/static/src/css/styles.css"}, debug.URLs("css_styles"))

	built := newAssets(config.AssetsConfig{StaticDir: "static"})
	assert.Equal(t, []string{"/static/dist/js/search.min.js"}, built.URLs("search_js"))

	assert.Nil(t, built.URLs("nope"))
}

func TestBuildAssets(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	styles := "body {\n    color :  red ;\n}\n/* comment */\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "css", "styles.css"), []byte(styles), 0o644))

	script := "function add(first, second) {\n    // sum\n    return first + second;\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "js", "search.js"), []byte(script), 0o644))

	cfg := config.AssetsConfig{StaticDir: dir}
	require.NoError(t, BuildAssets(cfg))

	out := filepath.Join(dir, "dist", "css", "styles.min.css")
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Less(t, len(content), len(styles))
	assert.NotContains(t, string(content), "comment")
	assert.Contains(t, string(content), "body{color:red}")

	content, err = os.ReadFile(filepath.Join(dir, "dist", "js", "search.min.js"))
	require.NoError(t, err)
	assert.Less(t, len(content), len(script))
	assert.NotContains(t, string(content), "// sum")
	assert.Contains(t, string(content), "function add(")

	// an up to date bundle is left alone
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "src", "css", "styles.css"), old, old))
	require.NoError(t, os.WriteFile(out, []byte("kept"), 0o644))

	require.NoError(t, BuildAssets(cfg))

	content, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(content))
}

func TestBuildAssetsMissingSource(t *testing.T) {
	err := BuildAssets(config.AssetsConfig{StaticDir: t.TempDir()})
	assert.Error(t, err)
}
