package app

import (
	"fmt"
	"html/template"
	"io/fs"
	"strings"

	"github.com/gin-gonic/gin/render"
	log "github.com/sirupsen/logrus"

	"github.com/edtechhub/kerkoapp/internal/config"
	"github.com/edtechhub/kerkoapp/web"
)

const layoutTemplate = "layout"

// templateSet holds one template per page, each a clone of the layout and
// the partials with the page's own blocks parsed on top.
type templateSet struct {
	base  *template.Template
	pages map[string]*template.Template
}

// Instance implements gin's render.HTMLRender.
func (t *templateSet) Instance(name string, data any) render.Render {
	page, ok := t.pages[name]
	if !ok {
		log.Errorf("[RENDER] unknown page [%s]", name)
		page = t.pages[errorPage(500)]
	}

	return render.HTML{Template: page, Name: layoutTemplate, Data: data}
}

func loadTemplates(fsys fs.FS) (*templateSet, error) {
	base, err := template.ParseFS(fsys, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}

	errorFiles, err := fs.Glob(fsys, "templates/errors/*.html")
	if err != nil {
		return nil, err
	}

	t := &templateSet{base: base, pages: make(map[string]*template.Template)}

	for _, file := range append(files, errorFiles...) {
		name := strings.TrimSuffix(strings.TrimPrefix(file, "templates/"), ".html")
		if name == layoutTemplate {
			continue
		}

		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}

		if t.pages[name], err = clone.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
	}

	return t, nil
}

func (a *App) initTemplates() error {
	templates, err := loadTemplates(web.Templates)
	if err != nil {
		return err
	}

	for _, code := range errorCodes {
		if _, ok := templates.pages[errorPage(code)]; !ok {
			return fmt.Errorf("missing error page for status %d", code)
		}
	}

	a.templates = templates

	return nil
}

// pageData is what every page template receives.
type pageData struct {
	T      func(id string) string
	Lang   string
	App    config.AppConfig
	Assets *assets
	Title  string
	Page   any
}

func (a *App) newPageData(cl *clientContext, title string, page any) pageData {
	return pageData{
		T:      cl.localize,
		Lang:   cl.contentLang,
		App:    a.config.App,
		Assets: a.assets,
		Title:  title,
		Page:   page,
	}
}
