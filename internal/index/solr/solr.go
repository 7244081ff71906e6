package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/config"
	"github.com/edtechhub/kerkoapp/internal/httputil"
	"github.com/edtechhub/kerkoapp/internal/index"
)

// Error is a failed exchange with Solr. Status is what our own clients
// should see.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("solr: %s", e.Msg)
}

// Index is a Solr core holding composer documents.
type Index struct {
	composer *composer.Composer
	client   *http.Client
	coreURL  string
	url      string
	qf       string
	sortKeys map[string]bool
}

func New(c *composer.Composer, cfg config.SolrConfig) *Index {
	s := &Index{
		composer: c,
		client:   httputil.NewClient(cfg.ConnTimeout, cfg.ReadTimeout),
		coreURL:  fmt.Sprintf("%s/%s", strings.TrimRight(cfg.Host, "/"), cfg.Core),
		qf:       cfg.QF,
		sortKeys: make(map[string]bool),
	}

	s.url = fmt.Sprintf("%s/%s", s.coreURL, cfg.Handler)

	for _, sort := range c.Sorts {
		for _, f := range sort.Fields {
			s.sortKeys[f.Key] = true
		}
	}

	log.Printf("[SOLR] url = [%s]", s.url)
	log.Printf("[SOLR] qf  = [%s]", s.qf)

	return s
}

// Replace deletes every document and adds docs, committing once at the end.
func (s *Index) Replace(ctx context.Context, docs []composer.Document) error {
	update := s.coreURL + "/update"

	if _, err := s.post(ctx, update, map[string]any{"delete": map[string]any{"query": "*:*"}}); err != nil {
		return err
	}

	batch := make([]solrDocument, 0, len(docs))
	for _, doc := range docs {
		sd, err := s.toSolrDocument(doc)
		if err != nil {
			log.Warnf("[SOLR] skipping document: %s", err.Error())
			continue
		}
		batch = append(batch, sd)
	}

	if _, err := s.post(ctx, update+"?commit=true", batch); err != nil {
		return err
	}

	log.Printf("[SOLR] indexed %d documents", len(batch))

	return nil
}

func (s *Index) Search(ctx context.Context, q index.Query) (*index.Result, error) {
	res, err := s.post(ctx, s.url, s.buildQuery(q))
	if err != nil {
		return nil, err
	}

	if err := convertFacets(res); err != nil {
		return nil, err
	}

	result := &index.Result{
		Total:  res.Response.NumFound,
		Facets: make(map[string]map[string]int),
	}

	for _, sd := range res.Response.Docs {
		doc, err := s.fromSolrDocument(sd)
		if err != nil {
			return nil, err
		}
		result.Docs = append(result.Docs, doc)
	}

	for key := range s.composer.Facets {
		counts := make(map[string]int)
		for _, b := range res.Facets[key].Buckets {
			counts[b.Val] = b.Count
		}
		result.Facets[key] = counts
	}

	return result, nil
}

func (s *Index) Get(ctx context.Context, id string) (composer.Document, error) {
	escaped := escape(id)

	req := solrRequestJSON{
		Params: solrRequestParams{
			Q:    fmt.Sprintf("%s:%s OR %s_ss:%s", solrIDField, escaped, composer.FieldAlternateID, escaped),
			Sort: "id asc",
			Rows: 1,
			Fl:   []string{solrIDField, solrDocumentField},
		},
	}

	res, err := s.post(ctx, s.url, req)
	if err != nil {
		return nil, err
	}

	if len(res.Response.Docs) == 0 {
		return nil, index.ErrNotFound
	}

	return s.fromSolrDocument(res.Response.Docs[0])
}

func (s *Index) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.coreURL+"/admin/ping?wt=json", nil)
	if err != nil {
		return fmt.Errorf("solr: building ping request: %w", err)
	}

	res, err := s.do(req)
	if err != nil {
		return err
	}

	if res.Status != "OK" {
		return &Error{Status: http.StatusServiceUnavailable, Msg: fmt.Sprintf("ping status %q", res.Status)}
	}

	return nil
}

func (s *Index) post(ctx context.Context, url string, body any) (*solrResponse, error) {
	jsonBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("solr: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("solr: building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	log.Debugf("[SOLR] req: [%s]", truncate(string(jsonBytes), 500))

	return s.do(req)
}

func (s *Index) do(req *http.Request) (*solrResponse, error) {
	start := time.Now()
	res, err := s.client.Do(req)
	elapsedMS := int64(time.Since(start) / time.Millisecond)

	if err != nil {
		status := httputil.StatusForError(err)
		log.Printf("[SOLR] ERROR: Failed response from %s %s - %d:%s. Elapsed Time: %d (ms)", req.Method, req.URL.Path, status, err.Error(), elapsedMS)
		return nil, &Error{Status: status, Msg: err.Error()}
	}

	defer res.Body.Close()

	var solrRes solrResponse

	if err := json.NewDecoder(res.Body).Decode(&solrRes); err != nil {
		log.Printf("[SOLR] ERROR: Failed response from %s %s - %d:%s. Elapsed Time: %d (ms)", req.Method, req.URL.Path, http.StatusInternalServerError, err.Error(), elapsedMS)
		return nil, &Error{Status: http.StatusInternalServerError, Msg: fmt.Sprintf("decoding response: %s", err.Error())}
	}

	log.Debugf("[SOLR] res: header: { status = %d, QTime = %d }, numFound = %d. Elapsed Time: %d (ms)",
		solrRes.ResponseHeader.Status, solrRes.ResponseHeader.QTime, solrRes.Response.NumFound, elapsedMS)

	if res.StatusCode != http.StatusOK || solrRes.ResponseHeader.Status != 0 {
		msg := solrRes.Error.Msg
		if msg == "" {
			msg = res.Status
		}
		return nil, &Error{Status: http.StatusBadGateway, Msg: msg}
	}

	return &solrRes, nil
}

// convertFacets decodes the facet blocks of a JSON facet response. The
// block mixes named facets with a plain "count", so it is read as a map,
// stripped of non-facet entries and decoded with mapstructure.
func convertFacets(res *solrResponse) error {
	facetsRaw := make(map[string]interface{})

	for key, val := range res.FacetsRaw {
		if _, ok := val.(map[string]interface{}); ok {
			facetsRaw[key] = val
		}
	}

	var facets map[string]solrResponseFacet

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &facets,
		TagName:          "json",
		ZeroFields:       true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	if err := dec.Decode(facetsRaw); err != nil {
		log.Printf("[SOLR] mapstructure.Decode() failed: %s", err.Error())
		return &Error{Status: http.StatusInternalServerError, Msg: "failed to decode facets"}
	}

	res.Facets = facets

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + " ..."
}
