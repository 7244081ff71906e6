package app

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/edtechhub/kerkoapp/internal/config"
)

const staticURLPrefix = "/static"

const (
	mediaCSS = "text/css"
	mediaJS  = "application/javascript"
)

// bundle is a set of static sources served as a single minified file.
// Paths are relative to the static directory.
type bundle struct {
	Output    string
	MediaType string
	Sources   []string
}

var defaultBundles = map[string]bundle{
	"css_styles": {
		Output:    "dist/css/styles.min.css",
		MediaType: mediaCSS,
		Sources:   []string{"src/css/styles.css"},
	},
	"common_js": {
		Output:    "dist/js/common.min.js",
		MediaType: mediaJS,
		Sources:   []string{"src/js/common.js"},
	},
	"search_js": {
		Output:    "dist/js/search.min.js",
		MediaType: mediaJS,
		Sources:   []string{"src/js/search.js"},
	},
	"item_js": {
		Output:    "dist/js/item.min.js",
		MediaType: mediaJS,
		Sources:   []string{"src/js/item.js"},
	},
	"print_js": {
		Output:    "dist/js/print.min.js",
		MediaType: mediaJS,
		Sources:   []string{"src/js/print.js"},
	},
}

// assets resolves bundle names to URLs. In debug mode every source is
// linked on its own; otherwise the built bundle is.
type assets struct {
	debug     bool
	staticDir string
	bundles   map[string]bundle
	minifier  *minify.M
}

func newAssets(cfg config.AssetsConfig) *assets {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaJS, js.Minify)

	return &assets{
		debug:     cfg.Debug,
		staticDir: cfg.StaticDir,
		bundles:   defaultBundles,
		minifier:  m,
	}
}

func (a *App) initAssets() error {
	a.assets = newAssets(a.config.Assets)

	if a.config.Assets.Debug || !a.config.Assets.AutoBuild {
		return nil
	}

	return a.assets.Build()
}

// BuildAssets writes every bundle under the static directory.
func BuildAssets(cfg config.AssetsConfig) error {
	return newAssets(cfg).Build()
}

// URLs lists the URLs to link for a bundle.
func (s *assets) URLs(name string) []string {
	b, ok := s.bundles[name]
	if !ok {
		log.Warnf("[ASSETS] unknown bundle [%s]", name)
		return nil
	}

	if !s.debug {
		return []string{path.Join(staticURLPrefix, b.Output)}
	}

	var urls []string
	for _, src := range b.Sources {
		urls = append(urls, path.Join(staticURLPrefix, src))
	}

	return urls
}

// Build concatenates and minifies the sources of each bundle into its
// output, skipping bundles whose output is newer than all of their sources.
func (s *assets) Build() error {
	names := make([]string, 0, len(s.bundles))
	for name := range s.bundles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		built, err := s.build(s.bundles[name])
		if err != nil {
			return fmt.Errorf("building bundle %s: %w", name, err)
		}

		if built {
			log.Printf("[ASSETS] built %s", s.bundles[name].Output)
		}
	}

	return nil
}

func (s *assets) build(b bundle) (bool, error) {
	output := filepath.Join(s.staticDir, filepath.FromSlash(b.Output))

	var newest time.Time
	var buf bytes.Buffer

	for _, src := range b.Sources {
		file := filepath.Join(s.staticDir, filepath.FromSlash(src))

		info, err := os.Stat(file)
		if err != nil {
			return false, err
		}

		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return false, err
		}

		buf.Write(bytes.TrimRight(content, "\n"))
		buf.WriteString("\n")
	}

	if info, err := os.Stat(output); err == nil && !info.ModTime().Before(newest) {
		return false, nil
	}

	minified, err := s.minifier.Bytes(b.MediaType, buf.Bytes())
	if err != nil {
		return false, fmt.Errorf("minifying %s: %w", b.Output, err)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return false, err
	}

	return true, os.WriteFile(output, minified, 0o644)
}
