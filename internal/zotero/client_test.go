package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/config"
)

func testConfig(baseURL string) config.ZoteroConfig {
	return config.ZoteroConfig{
		APIKey:      "secret",
		LibraryID:   "2405685",
		LibraryType: "group",
		Locale:      "en-GB",
		CSLStyle:    "apa",
		BatchSize:   2,
		BaseURL:     baseURL,
	}
}

func fakeItems(n int) []map[string]any {
	var items []map[string]any
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"key":  fmt.Sprintf("ITEM%04d", i),
			"data": map[string]any{"itemType": "book", "title": fmt.Sprintf("Book %d", i)},
		})
	}
	return items
}

func TestItemsPaginates(t *testing.T) {
	all := fakeItems(5)

	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, "/groups/2405685/items", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Zotero-API-Key"))
		assert.Equal(t, "3", r.Header.Get("Zotero-API-Version"))
		assert.Equal(t, "data,citation,bib", r.URL.Query().Get("include"))
		assert.Equal(t, "apa", r.URL.Query().Get("style"))

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := min(start+limit, len(all))

		w.Header().Set("Total-Results", strconv.Itoa(len(all)))
		w.Header().Set("Last-Modified-Version", "1234")
		json.NewEncoder(w).Encode(all[start:end])
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))

	items, version, err := c.Items(context.Background(), []string{"citation", "bib"})
	require.NoError(t, err)

	assert.Len(t, items, 5)
	assert.Equal(t, "ITEM0004", items[4]["key"])
	assert.Equal(t, 1234, version)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestItemsRange(t *testing.T) {
	all := fakeItems(10)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := min(start+limit, len(all))

		w.Header().Set("Total-Results", strconv.Itoa(len(all)))
		json.NewEncoder(w).Encode(all[start:end])
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Start = 3
	cfg.End = 6

	items, _, err := NewClient(cfg).Items(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, "ITEM0003", items[0]["key"])
	assert.Equal(t, "ITEM0005", items[2]["key"])
}

func TestCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/42/collections", r.URL.Path)

		w.Header().Set("Total-Results", "2")
		fmt.Fprint(w, `[
			{"key": "ROOT", "data": {"name": "Themes", "parentCollection": false}},
			{"key": "T1", "data": {"name": "Teachers", "parentCollection": "ROOT"}}
		]`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.LibraryType = "user"
	cfg.LibraryID = "42"

	collections, err := NewClient(cfg).Collections(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []composer.Collection{
		{Key: "ROOT", Name: "Themes"},
		{Key: "T1", Name: "Teachers", ParentKey: "ROOT"},
	}, collections)
}

func TestItemTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/itemTypes", r.URL.Path)
		assert.Equal(t, "en-GB", r.URL.Query().Get("locale"))

		fmt.Fprint(w, `[{"itemType": "book", "localized": "Book"}, {"itemType": "journalArticle", "localized": "Journal Article"}]`)
	}))
	defer srv.Close()

	types, err := NewClient(testConfig(srv.URL)).ItemTypes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"book": "Book", "journalArticle": "Journal Article"}, types)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).Collections(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Status)
	assert.Equal(t, "Forbidden", statusErr.Body)
}

func TestRetriesOnceWhenThrottled(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	types, err := NewClient(testConfig(srv.URL)).ItemTypes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, types)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestBackoff(t *testing.T) {
	h := http.Header{}
	assert.Zero(t, backoff(h))

	h.Set("Retry-After", "7")
	assert.Equal(t, "7s", backoff(h).String())

	h.Set("Backoff", "600")
	assert.Equal(t, maxBackoff, backoff(h))
}
