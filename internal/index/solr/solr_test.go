package solr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/config"
	"github.com/edtechhub/kerkoapp/internal/index"
)

type recorded struct {
	method string
	path   string
	query  string
	body   []byte
}

type fakeSolr struct {
	mu       sync.Mutex
	requests []recorded
	respond  func(r recorded) (int, string)
}

func (f *fakeSolr) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: body}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	status, out := f.respond(rec)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, out)
}

func newTestIndex(t *testing.T, respond func(r recorded) (int, string)) (*Index, *fakeSolr) {
	t.Helper()

	fake := &fakeSolr{respond: respond}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := composer.New(composer.Options{})
	require.NoError(t, c.AddField(&composer.FieldSpec{
		Key:       composer.FieldBoost,
		Type:      composer.NotInSchema,
		Extractor: composer.InCollectionBoostExtractor{CollectionKey: "HUB", BoostFactor: 5},
	}))
	require.NoError(t, c.Finalize())

	s := New(c, config.SolrConfig{
		Host:        srv.URL,
		Core:        "kerko",
		Handler:     "select",
		ConnTimeout: "5",
		ReadTimeout: "5",
		QF:          "z_title_txt^3 z_all_txt",
	})

	return s, fake
}

func TestToSolrDocument(t *testing.T) {
	s, _ := newTestIndex(t, nil)

	sd, err := s.toSolrDocument(composer.Document{
		"id":              "A",
		"z_title":         "Hello",
		"sort_title":      "hello",
		"tag":             []string{"one", "two"},
		"data":            `{"title":"Hello"}`,
		"_boost":          5.0,
		"facet_item_type": []string{"report:Report"},
	})
	require.NoError(t, err)

	assert.Equal(t, "A", sd["id"])
	assert.Equal(t, "Hello", sd["z_title_txt"])
	assert.Equal(t, "hello", sd["sort_title_s"])
	assert.Equal(t, 5.0, sd["boost_f"])
	assert.Equal(t, []string{"report:Report"}, sd["facet_item_type_ss"])
	assert.NotContains(t, sd, "data_s", "stored-only fields live in the document blob")
	assert.Contains(t, sd, "document_json_txt")

	doc, err := s.fromSolrDocument(sd)
	require.NoError(t, err)
	assert.Equal(t, "Hello", doc["z_title"])
	assert.Equal(t, []any{"one", "two"}, doc["tag"])
}

func TestBuildQuery(t *testing.T) {
	s, _ := newTestIndex(t, nil)

	req := s.buildQuery(index.Query{
		Filters: map[string][]string{"type": {"journal article"}},
		Sort:    s.composer.Sorts["date_desc"],
		Start:   -3,
	})

	assert.Equal(t, "*:*", req.Params.Q)
	assert.Equal(t, "edismax", req.Params.DefType)
	assert.Equal(t, "def(boost_f,1)", req.Params.Boost)
	assert.Equal(t, 0, req.Params.Start)
	assert.Equal(t, 10, req.Params.Rows)
	assert.Equal(t, []string{`facet_item_type_ss:(journal\ article OR journal\ article\:*)`}, req.Params.Fq)
	assert.Equal(t, "sort_date_s desc,sort_creator_s asc,sort_title_s asc,score desc,id asc", req.Params.Sort)
	assert.Len(t, req.Facets, len(s.composer.Facets))

	req = s.buildQuery(index.Query{Terms: " teacher ", Sort: s.composer.Sorts["score"]})
	assert.Equal(t, "teacher", req.Params.Q)
	assert.Equal(t, "score desc,id asc", req.Params.Sort)
}

func TestSearch(t *testing.T) {
	blob, _ := json.Marshal(composer.Document{"id": "A", "z_title": "Hello"})

	s, fake := newTestIndex(t, func(r recorded) (int, string) {
		out, _ := json.Marshal(map[string]any{
			"responseHeader": map[string]any{"status": 0, "QTime": 3},
			"response": map[string]any{
				"numFound": 1,
				"docs":     []any{map[string]any{"id": "A", "document_json_txt": string(blob)}},
			},
			"facets": map[string]any{
				"count": 1,
				"facet_year": map[string]any{
					"buckets": []any{map[string]any{"val": "2020", "count": 1}},
				},
			},
		})
		return http.StatusOK, string(out)
	})

	res, err := s.Search(context.Background(), index.Query{Terms: "hello"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Docs, 1)
	assert.Equal(t, "A", index.DocumentID(res.Docs[0]))
	assert.Equal(t, map[string]int{"2020": 1}, res.Facets["facet_year"])
	assert.Empty(t, res.Facets["facet_tag"])

	require.Len(t, fake.requests, 1)
	assert.Equal(t, "/kerko/select", fake.requests[0].path)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fake.requests[0].body, &sent))
	assert.Equal(t, "hello", sent["params"].(map[string]any)["q"])
	assert.Contains(t, sent, "facet")
}

func TestSearchSolrError(t *testing.T) {
	s, _ := newTestIndex(t, func(r recorded) (int, string) {
		return http.StatusBadRequest, `{"responseHeader":{"status":400},"error":{"msg":"undefined field","code":400}}`
	})

	_, err := s.Search(context.Background(), index.Query{})
	require.Error(t, err)

	var solrErr *Error
	require.ErrorAs(t, err, &solrErr)
	assert.Equal(t, http.StatusBadGateway, solrErr.Status)
	assert.Equal(t, "undefined field", solrErr.Msg)
}

func TestGetNotFound(t *testing.T) {
	s, fake := newTestIndex(t, func(r recorded) (int, string) {
		return http.StatusOK, `{"responseHeader":{"status":0},"response":{"numFound":0,"docs":[]}}`
	})

	_, err := s.Get(context.Background(), "10.1/x")
	assert.ErrorIs(t, err, index.ErrNotFound)

	var sent solrRequestJSON
	require.NoError(t, json.Unmarshal(fake.requests[0].body, &sent))
	assert.Equal(t, `id:10.1\/x OR alternate_id_ss:10.1\/x`, sent.Params.Q)
}

func TestReplace(t *testing.T) {
	s, fake := newTestIndex(t, func(r recorded) (int, string) {
		return http.StatusOK, `{"responseHeader":{"status":0}}`
	})

	err := s.Replace(context.Background(), []composer.Document{{"id": "A"}, {"id": "B"}})
	require.NoError(t, err)

	require.Len(t, fake.requests, 2)
	assert.Equal(t, "/kerko/update", fake.requests[0].path)
	assert.JSONEq(t, `{"delete":{"query":"*:*"}}`, string(fake.requests[0].body))
	assert.Equal(t, "commit=true", fake.requests[1].query)

	var added []map[string]any
	require.NoError(t, json.Unmarshal(fake.requests[1].body, &added))
	assert.Len(t, added, 2)
}

func TestPing(t *testing.T) {
	status := "OK"
	s, fake := newTestIndex(t, func(r recorded) (int, string) {
		return http.StatusOK, `{"responseHeader":{"status":0},"status":"` + status + `"}`
	})

	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, "/kerko/admin/ping", fake.requests[0].path)

	status = "DOWN"
	assert.Error(t, s.Ping(context.Background()))
}
