package app

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/index"
)

const libPath = "/lib/"

// query parameters besides the facet filter keys
const (
	paramTerms   = "q"
	paramSort    = "sort"
	paramPage    = "page"
	paramPageLen = "page-len"
)

type searchRequest struct {
	terms   string
	filters map[string][]string
	sort    *composer.SortSpec
	page    int
	pageLen int
}

type searchContext struct {
	app    *App
	client *clientContext
	params url.Values
	req    searchRequest
	res    *index.Result
}

type resultView struct {
	ID      string          `json:"id"`
	URL     string          `json:"url"`
	Title   string          `json:"title"`
	Preview template.HTML   `json:"preview,omitempty"`
	Badges  []template.HTML `json:"-"`
}

type bucketView struct {
	composer.FacetBucket
	Active bool   `json:"active"`
	URL    string `json:"url"`
}

type facetView struct {
	Key       string       `json:"key"`
	FilterKey string       `json:"filter_key"`
	Title     string       `json:"title"`
	Buckets   []bucketView `json:"buckets"`
}

type sortView struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
	URL      string `json:"url"`
}

type hiddenField struct {
	Name  string
	Value string
}

type searchPage struct {
	Terms     string        `json:"terms"`
	Total     int           `json:"total"`
	Page      int           `json:"page"`
	PageCount int           `json:"page_count"`
	Results   []resultView  `json:"items"`
	Facets    []facetView   `json:"facets"`
	Sorts     []sortView    `json:"sorts"`
	PrevURL   string        `json:"prev_url,omitempty"`
	NextURL   string        `json:"next_url,omitempty"`
	Hidden    []hiddenField `json:"-"`
}

func (s *searchContext) init(a *App, cl *clientContext) {
	s.app = a
	s.client = cl
	s.params = cl.ginCtx.Request.URL.Query()
}

func (s *searchContext) log(format string, args ...interface{}) {
	s.client.log(format, args...)
}

func (s *searchContext) err(format string, args ...interface{}) {
	s.client.err(format, args...)
}

// parseRequest reads the query parameters. Unknown sorts and bad paging
// values are client errors.
func (s *searchContext) parseRequest() error {
	c := s.app.composer

	s.req = searchRequest{
		terms:   strings.TrimSpace(s.params.Get(paramTerms)),
		filters: make(map[string][]string),
		sort:    c.DefaultSort(),
		page:    1,
		pageLen: s.app.config.Search.PageLen,
	}

	if key := s.params.Get(paramSort); key != "" {
		sort, ok := c.Sorts[key]
		if !ok {
			return newHTTPError(http.StatusBadRequest, "unknown sort [%s]", key)
		}
		s.req.sort = sort
	}

	if v := s.params.Get(paramPage); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return newHTTPError(http.StatusBadRequest, "invalid page [%s]", v)
		}
		s.req.page = page
	}

	if v := s.params.Get(paramPageLen); v != "" {
		pageLen, err := strconv.Atoi(v)
		if err != nil || pageLen < 1 || pageLen > s.app.config.Search.MaxPageLen {
			return newHTTPError(http.StatusBadRequest, "invalid page length [%s]", v)
		}
		s.req.pageLen = pageLen
	}

	if s.req.page > math.MaxInt/s.req.pageLen {
		return newHTTPError(http.StatusBadRequest, "invalid page [%d]", s.req.page)
	}

	for _, facet := range c.SortedFacets() {
		var values []string
		for _, v := range s.params[facet.FilterKey] {
			if v = strings.TrimSpace(v); v != "" && !slices.Contains(values, v) {
				values = append(values, v)
			}
		}

		if len(values) > 0 {
			s.req.filters[facet.FilterKey] = values
		}
	}

	return nil
}

func (s *searchContext) query() index.Query {
	return index.Query{
		Terms:   s.req.terms,
		Filters: s.req.filters,
		Sort:    s.req.sort,
		Start:   (s.req.page - 1) * s.req.pageLen,
		Rows:    s.req.pageLen,
	}
}

func (s *searchContext) handleSearchRequest() (*searchPage, error) {
	if err := s.parseRequest(); err != nil {
		return nil, err
	}

	res, err := s.app.index.Search(s.client.ginCtx.Request.Context(), s.query())
	if err != nil {
		s.err("query execution error: %s", err.Error())
		return nil, err
	}

	s.res = res
	s.log("[SEARCH] terms = [%s], sort = [%s], hits = %d", s.req.terms, s.req.sort.Key, res.Total)

	if last := pageCount(res.Total, s.req.pageLen); s.req.page > last {
		return nil, newHTTPError(http.StatusBadRequest, "page %d past last page %d", s.req.page, last)
	}

	return s.buildPage()
}

// pageCount is the number of result pages; an empty result still has one.
func pageCount(total, pageLen int) int {
	return max(1, (total+pageLen-1)/pageLen)
}

func (s *searchContext) buildPage() (*searchPage, error) {
	page := &searchPage{
		Terms:     s.req.terms,
		Total:     s.res.Total,
		Page:      s.req.page,
		PageCount: pageCount(s.res.Total, s.req.pageLen),
	}

	for _, doc := range s.res.Docs {
		view, err := s.resultView(doc)
		if err != nil {
			return nil, err
		}
		page.Results = append(page.Results, view)
	}

	page.Facets = s.facetViews()
	page.Sorts = s.sortViews()

	if page.Page > 1 {
		page.PrevURL = s.urlWith(func(v url.Values) { v.Set(paramPage, strconv.Itoa(page.Page-1)) })
	}

	if page.Page < page.PageCount {
		page.NextURL = s.urlWith(func(v url.Values) { v.Set(paramPage, strconv.Itoa(page.Page+1)) })
	}

	for name, values := range s.params {
		if name == paramTerms || name == paramPage {
			continue
		}
		for _, v := range values {
			page.Hidden = append(page.Hidden, hiddenField{Name: name, Value: v})
		}
	}

	slices.SortFunc(page.Hidden, func(a, b hiddenField) int {
		return strings.Compare(a.Name+"="+a.Value, b.Name+"="+b.Value)
	})

	return page, nil
}

func (s *searchContext) resultView(doc composer.Document) (resultView, error) {
	id := index.DocumentID(doc)

	badges, err := s.app.renderBadges(s.client, doc)
	if err != nil {
		return resultView{}, err
	}

	return resultView{
		ID:      id,
		URL:     libPath + url.PathEscape(id),
		Title:   documentTitle(doc),
		Preview: documentPreview(doc),
		Badges:  badges,
	}, nil
}

func (s *searchContext) facetViews() []facetView {
	var views []facetView

	for _, facet := range s.app.composer.SortedFacets() {
		counts := s.res.Facets[facet.Key]
		if len(counts) == 0 {
			continue
		}

		buckets := make([]composer.FacetBucket, 0, len(counts))
		for encoded, count := range counts {
			value, label := facet.Codec.Decode(encoded, s.client.localize)
			if label == "" {
				continue
			}
			buckets = append(buckets, composer.FacetBucket{Value: value, Label: label, Count: count})
		}

		facet.SortBuckets(buckets)

		view := facetView{
			Key:       facet.Key,
			FilterKey: facet.FilterKey,
			Title:     s.client.localize(facet.Title),
		}

		active := s.req.filters[facet.FilterKey]

		for _, b := range buckets {
			isActive := slices.Contains(active, b.Value)
			view.Buckets = append(view.Buckets, bucketView{
				FacetBucket: b,
				Active:      isActive,
				URL:         s.urlWith(toggleFilter(facet.FilterKey, b.Value, isActive)),
			})
		}

		views = append(views, view)
	}

	return views
}

func (s *searchContext) sortViews() []sortView {
	var views []sortView

	for _, sort := range s.app.composer.SortedSorts() {
		key := sort.Key
		views = append(views, sortView{
			Key:      key,
			Label:    s.client.localize(sort.Label),
			Selected: key == s.req.sort.Key,
			URL:      s.urlWith(func(v url.Values) { v.Set(paramSort, key) }),
		})
	}

	return views
}

func toggleFilter(filterKey, value string, active bool) func(url.Values) {
	return func(v url.Values) {
		if !active {
			v.Add(filterKey, value)
			return
		}

		kept := slices.DeleteFunc(slices.Clone(v[filterKey]), func(s string) bool { return s == value })
		if len(kept) == 0 {
			v.Del(filterKey)
		} else {
			v[filterKey] = kept
		}
	}
}

// urlWith is the search URL with the current parameters changed by mutate.
// Any change other than paging starts over from the first page.
func (s *searchContext) urlWith(mutate func(url.Values)) string {
	v := url.Values{}
	for name, values := range s.params {
		if name != paramPage {
			v[name] = slices.Clone(values)
		}
	}

	mutate(v)

	if len(v) == 0 {
		return libPath
	}

	return fmt.Sprintf("%s?%s", libPath, v.Encode())
}

func documentTitle(doc composer.Document) string {
	for _, key := range []string{"z_title", composer.FieldID} {
		if titles := index.Strings(doc[key]); len(titles) > 0 && titles[0] != "" {
			return titles[0]
		}
	}

	return ""
}

// documentPreview is the stored citation markup. It comes from the Zotero
// API and is trusted.
func documentPreview(doc composer.Document) template.HTML {
	for _, key := range []string{"preview", "bib"} {
		if s, ok := doc[key].(string); ok && s != "" {
			return template.HTML(s)
		}
	}

	return ""
}

func (a *App) renderBadges(cl *clientContext, doc composer.Document) ([]template.HTML, error) {
	return a.composer.RenderBadges(doc, composer.RenderContext{
		Templates: a.templates.base,
		Localize:  cl.localize,
	})
}

func (a *App) searchHandler(c *gin.Context) {
	cl := clientFromContext(a, c)

	s := searchContext{}
	s.init(a, cl)

	page, err := s.handleSearchRequest()
	if err != nil {
		abort(c, err)
		return
	}

	title := cl.localize("SearchTitle")
	if page.Terms != "" {
		title = page.Terms
	}

	c.HTML(http.StatusOK, "search", a.newPageData(cl, title, page))
}

func (a *App) apiSearchHandler(c *gin.Context) {
	cl := clientFromContext(a, c)

	s := searchContext{}
	s.init(a, cl)

	page, err := s.handleSearchRequest()
	if err != nil {
		status := statusForError(err)
		c.JSON(status, gin.H{"error": err.Error(), "status": status})
		return
	}

	c.JSON(http.StatusOK, page)
}
