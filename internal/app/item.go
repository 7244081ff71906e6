package app

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/index"
)

type itemFacetView struct {
	Key    string
	Title  string
	Labels []string
}

type itemPage struct {
	ID       string
	Title    string
	Preview  template.HTML
	Badges   []template.HTML
	Data     map[string]any
	Facets   []itemFacetView
	Children []any
}

func (a *App) itemHandler(c *gin.Context) {
	cl := clientFromContext(a, c)
	id := c.Param("id")

	doc, err := a.index.Get(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	// alternate ids land on the canonical item URL
	if canonical := index.DocumentID(doc); canonical != id {
		cl.log("[ITEM] redirecting [%s] to [%s]", id, canonical)
		c.Redirect(http.StatusMovedPermanently, libPath+url.PathEscape(canonical))
		return
	}

	page, err := a.buildItemPage(cl, doc)
	if err != nil {
		abort(c, err)
		return
	}

	c.HTML(http.StatusOK, "item", a.newPageData(cl, page.Title, page))
}

func (a *App) buildItemPage(cl *clientContext, doc composer.Document) (*itemPage, error) {
	badges, err := a.renderBadges(cl, doc)
	if err != nil {
		return nil, err
	}

	page := &itemPage{
		ID:      index.DocumentID(doc),
		Title:   documentTitle(doc),
		Preview: documentPreview(doc),
		Badges:  badges,
	}

	if field, ok := a.composer.Fields[composer.FieldData]; ok {
		data, err := field.Decode(doc)
		if err != nil {
			return nil, err
		}
		page.Data, _ = data.(map[string]any)
	}

	if field, ok := a.composer.Fields[composer.FieldChildren]; ok {
		children, err := field.Decode(doc)
		if err != nil {
			return nil, err
		}
		page.Children, _ = children.([]any)
	}

	for _, facet := range a.composer.SortedFacets() {
		if !facet.ItemView {
			continue
		}

		view := itemFacetView{Key: facet.Key, Title: cl.localize(facet.Title)}
		for _, encoded := range index.Strings(doc[facet.Key]) {
			if _, label := facet.Codec.Decode(encoded, cl.localize); label != "" {
				view.Labels = append(view.Labels, label)
			}
		}

		if len(view.Labels) > 0 {
			page.Facets = append(page.Facets, view)
		}
	}

	return page, nil
}
