package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtechhub/kerkoapp/internal/config"
	"github.com/edtechhub/kerkoapp/internal/index"
	"github.com/edtechhub/kerkoapp/internal/index/solr"
)

func get(t *testing.T, a *App, target string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	a.Handler().ServeHTTP(w, req)

	return w
}

type apiResult struct {
	Total int `json:"total"`
	Items []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"items"`
	Facets []struct {
		Key     string `json:"key"`
		Buckets []struct {
			Value string `json:"value"`
			Label string `json:"label"`
			Count int    `json:"count"`
		} `json:"buckets"`
	} `json:"facets"`
}

func apiSearch(t *testing.T, a *App, query string) apiResult {
	t.Helper()

	w := get(t, a, "/lib/api/search?"+query)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res apiResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	return res
}

func ids(res apiResult) []string {
	var list []string
	for _, item := range res.Items {
		list = append(list, item.ID)
	}
	return list
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.SecretKey = ""

	_, err := New(cfg, Options{SkipLogging: true})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestHomeRedirect(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	w := get(t, a, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/lib/", w.Header().Get("Location"))
}

func TestSearchPage(t *testing.T) {
	a := newLoadedApp(t)

	w := get(t, a, "/lib/")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Learning at home")
	assert.Contains(t, body, "Mobile learning")
	assert.Contains(t, body, "Remote learning")
	assert.Contains(t, body, "/static/src/img/hub.svg")
	assert.Contains(t, body, "/static/src/css/styles.css")
	assert.Equal(t, "en", w.Header().Get("Content-Language"))
}

func TestSearchPageFrench(t *testing.T) {
	a := newLoadedApp(t)

	w := get(t, a, "/lib/?lang=fr")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fr", w.Header().Get("Content-Language"))
}

func TestSearchBadRequests(t *testing.T) {
	a := newLoadedApp(t)

	for _, target := range []string{
		"/lib/?sort=bogus",
		"/lib/?page=0",
		"/lib/?page=abc",
		"/lib/?page-len=1000",
		"/lib/?page=4611686018427387904",
		"/lib/?page=9223372036854775807&page-len=2",
		"/lib/?page=3",
	} {
		w := get(t, a, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, w.Body.String(), "<html", target)
	}
}

func TestAPISearchPastLastPage(t *testing.T) {
	a := newLoadedApp(t)

	w := get(t, a, "/lib/api/search?page=4611686018427387904")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(t, a, "/lib/api/search?page-len=1&page=3")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	res := apiSearch(t, a, "page-len=1&page=2")
	assert.Len(t, res.Items, 1)
}

func TestAPISearch(t *testing.T) {
	a := newLoadedApp(t)

	res := apiSearch(t, a, "")
	assert.Equal(t, 2, res.Total)
	// the hub item is boosted
	assert.Equal(t, []string{"AAAA1111", "BBBB2222"}, ids(res))

	res = apiSearch(t, a, "q=mobile")
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, []string{"BBBB2222"}, ids(res))
	assert.Equal(t, "Mobile learning", res.Items[0].Title)

	res = apiSearch(t, a, "sort=title_desc")
	assert.Equal(t, []string{"BBBB2222", "AAAA1111"}, ids(res))

	res = apiSearch(t, a, "sort=hub_desc")
	assert.Equal(t, []string{"AAAA1111", "BBBB2222"}, ids(res))

	res = apiSearch(t, a, "page-len=1&page=2&sort=title_asc")
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"BBBB2222"}, ids(res))
}

func TestAPISearchFilters(t *testing.T) {
	a := newLoadedApp(t)

	res := apiSearch(t, a, "type=book")
	assert.Equal(t, []string{"BBBB2222"}, ids(res))

	res = apiSearch(t, a, "theme=TH1")
	assert.Equal(t, []string{"AAAA1111"}, ids(res))

	res = apiSearch(t, a, "ours=true")
	assert.Equal(t, []string{"AAAA1111"}, ids(res))

	res = apiSearch(t, a, "type=book&theme=TH1")
	assert.Equal(t, 0, res.Total)
}

func TestAPISearchFacets(t *testing.T) {
	a := newLoadedApp(t)

	res := apiSearch(t, a, "")

	var keys []string
	for _, f := range res.Facets {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"facet_ours", "facet_themes", "facet_item_type", "facet_year"}, keys)

	for _, f := range res.Facets {
		switch f.Key {
		case "facet_item_type":
			require.Len(t, f.Buckets, 2)
			assert.Equal(t, "Book", f.Buckets[0].Label)
			assert.Equal(t, "book", f.Buckets[0].Value)
			assert.Equal(t, 1, f.Buckets[0].Count)
		case "facet_year":
			require.Len(t, f.Buckets, 2)
			assert.Equal(t, "2020", f.Buckets[0].Label)
		case "facet_ours":
			require.Len(t, f.Buckets, 1)
			assert.Equal(t, "Yes", f.Buckets[0].Label)
		}
	}
}

func TestAPISearchError(t *testing.T) {
	a := newLoadedApp(t)

	w := get(t, a, "/lib/api/search?sort=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown sort")
}

func TestItemPage(t *testing.T) {
	a := newLoadedApp(t)

	w := get(t, a, "/lib/AAAA1111")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Learning at home")
	assert.Contains(t, body, "csl-entry")
	assert.Contains(t, body, "Remote schooling during closures.")
	assert.Contains(t, body, "Remote learning")
	assert.Contains(t, body, "Full text PDF")
	assert.NotContains(t, body, "Unpublished draft")
}

func TestItemAlternateIDRedirect(t *testing.T) {
	a := newLoadedApp(t)

	for _, id := range []string{"ID1", "ID2", "KC2"} {
		w := get(t, a, "/lib/"+id)
		assert.Equal(t, http.StatusMovedPermanently, w.Code, id)
		assert.Equal(t, "/lib/AAAA1111", w.Header().Get("Location"), id)
	}
}

func TestNotFound(t *testing.T) {
	a := newLoadedApp(t)

	w := get(t, a, "/lib/UNKNOWN1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")

	w = get(t, a, "/no/such/page")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")
}

func TestHealthCheck(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	w := get(t, a, "/healthcheck")
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]struct {
		Healthy bool `json:"healthy"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res["index"].Healthy)
	assert.True(t, res["cache"].Healthy)
}

func TestVersion(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	w := get(t, a, "/version")
	require.Equal(t, http.StatusOK, w.Code)

	var v appVersion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "build-1", v.BuildVersion)
	assert.Equal(t, "abc123", v.GitCommit)
	assert.NotEmpty(t, v.GoVersion)
}

func TestStatusForError(t *testing.T) {
	for name, tc := range map[string]struct {
		err  error
		want int
	}{
		"http error":     {newHTTPError(http.StatusBadRequest, "bad"), http.StatusBadRequest},
		"wrapped http":   {fmt.Errorf("search: %w", newHTTPError(http.StatusForbidden, "no")), http.StatusForbidden},
		"not found":      {fmt.Errorf("item X: %w", index.ErrNotFound), http.StatusNotFound},
		"solr":           {&solr.Error{Status: http.StatusBadGateway, Msg: "down"}, http.StatusServiceUnavailable},
		"wrapped solr":   {fmt.Errorf("query: %w", &solr.Error{Msg: "timeout"}), http.StatusServiceUnavailable},
		"anything else":  {assert.AnError, http.StatusInternalServerError},
		"unpaged status": {newHTTPError(http.StatusTeapot, "tea"), http.StatusTeapot},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusForError(tc.err))
		})
	}
}

func TestErrorPageFallsBackTo500(t *testing.T) {
	a := newLoadedApp(t)

	a.router.GET("/teapot", func(c *gin.Context) {
		abort(c, newHTTPError(http.StatusTeapot, "tea"))
	})

	w := get(t, a, "/teapot")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestRecoveredPanic(t *testing.T) {
	a := newLoadedApp(t)

	a.router.GET("/panic", func(*gin.Context) {
		panic("boom")
	})

	w := get(t, a, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
	assert.NotContains(t, w.Body.String(), "boom")
}
