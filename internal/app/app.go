// Package app assembles the web application: composer, translations,
// templates, assets, search index and routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/edtechhub/kerkoapp/internal/cache"
	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/config"
	"github.com/edtechhub/kerkoapp/internal/index"
	"github.com/edtechhub/kerkoapp/internal/index/memory"
	"github.com/edtechhub/kerkoapp/internal/index/solr"
	"github.com/edtechhub/kerkoapp/internal/logging"
	"github.com/edtechhub/kerkoapp/internal/zotero"
	"github.com/edtechhub/kerkoapp/web"
)

// Options carry what the command line knows and the configuration does not.
type Options struct {
	BuildVersion string
	GitCommit    string

	// Index replaces the configured index backend when set.
	Index index.Index
	// SkipLogging leaves the process logger untouched.
	SkipLogging bool
}

type appVersion struct {
	BuildVersion string `json:"build,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	GitCommit    string `json:"git_commit,omitempty"`
}

// App is the web application and the operations around its index.
type App struct {
	config       *config.Config
	composer     *composer.Composer
	translations *i18n.Bundle
	templates    *templateSet
	assets       *assets
	store        *cache.Store
	index        index.Index
	zotero       *zotero.Client
	version      appVersion
	router       *gin.Engine

	// cache stamp of the documents in the index
	indexed atomic.Int64
}

// New builds the application from a loaded configuration.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if !opts.SkipLogging {
		if err := logging.Configure(cfg.Logging); err != nil {
			return nil, err
		}
	}

	c, err := newComposer(cfg.Composer)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:   cfg,
		composer: c,
		zotero:   zotero.NewClient(cfg.Zotero),
	}

	if err := a.initTranslations(); err != nil {
		return nil, err
	}

	if err := a.initTemplates(); err != nil {
		return nil, err
	}

	if err := a.initAssets(); err != nil {
		return nil, err
	}

	a.initVersion(opts)

	if err := a.validateConfig(); err != nil {
		return nil, err
	}

	if a.store, err = cache.Open(cache.DefaultPath(cfg.DataDir)); err != nil {
		return nil, err
	}

	a.initIndex(opts.Index)
	a.initRouter()

	return a, nil
}

// Handler is the HTTP handler of the application.
func (a *App) Handler() http.Handler {
	return a.router
}

// Composer is the finalized composer of the application.
func (a *App) Composer() *composer.Composer {
	return a.composer
}

// Close releases the item cache.
func (a *App) Close() error {
	return a.store.Close()
}

// Serve fills the index from the cache, then serves until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Reindex(ctx); err != nil && !errors.Is(err, cache.ErrEmpty) {
		return err
	}

	if _, ok := a.index.(*memory.Index); ok && a.config.Index.RefreshInterval > 0 {
		r := newRefresher(a, a.config.Index.RefreshInterval)
		go r.monitor(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", a.config.Service.Host, a.config.Service.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)

	go func() {
		log.Printf("Start service on %s", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdown)
}

func (a *App) initVersion(opts Options) {
	buildVersion := opts.BuildVersion
	if buildVersion == "" {
		buildVersion = "unknown"
		files, _ := filepath.Glob("buildtag.*")
		if len(files) == 1 {
			buildVersion = strings.Replace(files[0], "buildtag.", "", 1)
		}
	}

	a.version = appVersion{
		BuildVersion: buildVersion,
		GoVersion:    fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		GitCommit:    opts.GitCommit,
	}

	log.Printf("[APP] version.BuildVersion = [%s]", a.version.BuildVersion)
	log.Printf("[APP] version.GoVersion    = [%s]", a.version.GoVersion)
	log.Printf("[APP] version.GitCommit    = [%s]", a.version.GitCommit)
}

func (a *App) initTranslations() error {
	defaultLang, err := language.Parse(a.composer.Language())
	if err != nil {
		return fmt.Errorf("composer language %q: %w", a.composer.Language(), err)
	}

	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := web.Translations.ReadDir("i18n")
	if err != nil {
		return fmt.Errorf("reading translations: %w", err)
	}

	for _, f := range files {
		if !strings.HasSuffix(f.Name(), ".toml") {
			continue
		}

		if _, err := bundle.LoadMessageFileFS(web.Translations, "i18n/"+f.Name()); err != nil {
			return fmt.Errorf("loading translations %s: %w", f.Name(), err)
		}
	}

	a.translations = bundle

	return nil
}

func (a *App) initIndex(override index.Index) {
	switch {
	case override != nil:
		a.index = override
	case a.config.Index.Type == "solr":
		a.index = solr.New(a.composer, a.config.Index.Solr)
	default:
		a.index = memory.New(a.composer)
	}

	log.Printf("[APP] index = [%T]", a.index)
}

// messageIDs collects every message id the composer and the pages refer
// to.
func (a *App) messageIDs() *config.StringValidator {
	messageIDs := &config.StringValidator{}

	for _, f := range a.composer.SortedFacets() {
		messageIDs.RequireValue(f.Title, fmt.Sprintf("facet %s title", f.Key))

		if codec, ok := f.Codec.(composer.BooleanFacetCodec); ok {
			messageIDs.AddValue(codec.TrueLabel)
			messageIDs.AddValue(codec.FalseLabel)
		}
	}

	for _, s := range a.composer.SortedSorts() {
		messageIDs.RequireValue(s.Label, fmt.Sprintf("sort %s label", s.Key))
	}

	for _, b := range a.composer.SortedBadges() {
		if r, ok := b.Renderer.(composer.TemplateRenderer); ok {
			for _, v := range r.Data {
				if id, ok := v.(string); ok {
					messageIDs.AddValue(id)
				}
			}
		}
	}

	for _, id := range badgeMessageIDs {
		messageIDs.AddValue(id)
	}

	for _, id := range pageMessageIDs {
		messageIDs.AddValue(id)
	}

	for _, code := range errorCodes {
		messageIDs.AddValue(fmt.Sprintf("Error%dTitle", code))
		messageIDs.AddValue(fmt.Sprintf("Error%dMessage", code))
	}

	return messageIDs
}

// validateConfig checks that everything shown to users can be translated
// in every language.
func (a *App) validateConfig() error {
	messageIDs := a.messageIDs()
	ids := messageIDs.Values()

	invalid := messageIDs.Invalid()

	langs := []string{}
	for _, tag := range a.translations.LanguageTags() {
		lang := tag.String()
		langs = append(langs, lang)
		localizer := i18n.NewLocalizer(a.translations, lang)

		for _, id := range ids {
			_, used, err := localizer.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: id})
			if err != nil || used != tag {
				reason := "fallback"
				if err != nil {
					reason = err.Error()
				}
				log.Printf("[VALIDATE] [%s] missing translation for message ID: [%s] (%s)", lang, id, reason)
				invalid = true
			}
		}
	}

	for _, b := range a.composer.SortedBadges() {
		if r, ok := b.Renderer.(composer.TemplateRenderer); ok && a.templates.base.Lookup(r.Name) == nil {
			log.Printf("[VALIDATE] badge %s: template not found: [%s]", b.Key, r.Name)
			invalid = true
		}
	}

	if invalid {
		log.Printf("[VALIDATE] exiting due to missing/incorrect value(s) above")
		return config.ErrInvalid
	}

	log.Printf("[APP] supported languages = [%s]", strings.Join(langs, ", "))

	return nil
}
