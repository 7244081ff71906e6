package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	log "github.com/sirupsen/logrus"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/index"
)

type entry struct {
	doc    composer.Document
	tokens map[string]int
	boost  float64
}

// Index keeps documents in memory. Text fields are tokenized once on
// Replace; searches scan every document.
type Index struct {
	composer *composer.Composer

	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
	aliases map[string]string
}

func New(c *composer.Composer) *Index {
	return &Index{
		composer: c,
		byID:     make(map[string]*entry),
		aliases:  make(map[string]string),
	}
}

func (m *Index) Replace(_ context.Context, docs []composer.Document) error {
	text := m.composer.FieldsOfType(composer.Text)

	entries := make([]*entry, 0, len(docs))
	byID := make(map[string]*entry, len(docs))
	aliases := make(map[string]string)

	for _, doc := range docs {
		e := &entry{doc: doc, tokens: make(map[string]int), boost: boostOf(doc)}

		for _, f := range text {
			for _, s := range index.Strings(doc[f.Key]) {
				for _, tok := range tokenize(s) {
					e.tokens[tok]++
				}
			}
		}

		id := index.DocumentID(doc)
		entries = append(entries, e)
		byID[id] = e

		for _, alias := range index.Strings(doc[composer.FieldAlternateID]) {
			if alias != id {
				aliases[alias] = id
			}
		}
	}

	m.mu.Lock()
	m.entries, m.byID, m.aliases = entries, byID, aliases
	m.mu.Unlock()

	log.Printf("[MEMORY] indexed %d documents", len(entries))

	return nil
}

// boostOf reads the boost of a document. A missing boost leaves the score
// unchanged; an explicit zero cancels it.
func boostOf(doc composer.Document) float64 {
	switch b := doc[composer.FieldBoost].(type) {
	case float64:
		return b
	case int:
		return float64(b)
	default:
		return 1
	}
}

type hit struct {
	entry *entry
	score float64
}

func (m *Index) Search(_ context.Context, q index.Query) (*index.Result, error) {
	m.mu.RLock()
	entries := m.entries
	m.mu.RUnlock()

	terms := tokenize(q.Terms)

	type filter struct {
		facet  *composer.FacetSpec
		values []string
	}

	var filters []filter
	for key, values := range q.Filters {
		facet, ok := m.composer.FacetByFilterKey(key)
		if !ok || len(values) == 0 {
			continue
		}
		filters = append(filters, filter{facet: facet, values: values})
	}

	var hits []hit

	for _, e := range entries {
		score, ok := e.score(terms)
		if !ok {
			continue
		}

		matches := true
		for _, f := range filters {
			if !hasAll(index.Strings(e.doc[f.facet.Key]), f.values) {
				matches = false
				break
			}
		}

		if matches {
			hits = append(hits, hit{entry: e, score: score * e.boost})
		}
	}

	res := &index.Result{
		Total:  len(hits),
		Facets: make(map[string]map[string]int),
	}

	for key := range m.composer.Facets {
		counts := make(map[string]int)
		for _, h := range hits {
			for _, v := range index.Strings(h.entry.doc[key]) {
				counts[v]++
			}
		}
		res.Facets[key] = counts
	}

	sortHits(hits, q.Sort)

	start := min(max(q.Start, 0), len(hits))
	end := len(hits)
	if q.Rows > 0 {
		end = min(start+q.Rows, len(hits))
	}

	for _, h := range hits[start:end] {
		res.Docs = append(res.Docs, h.entry.doc)
	}

	return res, nil
}

func sortHits(hits []hit, s *composer.SortSpec) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]

		if s != nil && !s.IsRelevance() {
			if c := s.Compare(a.entry.doc, b.entry.doc); c != 0 {
				return c < 0
			}
		}

		if a.score != b.score {
			return a.score > b.score
		}

		return index.DocumentID(a.entry.doc) < index.DocumentID(b.entry.doc)
	})
}

// score counts term occurrences; every term must occur. Without terms
// every document matches equally.
func (e *entry) score(terms []string) (float64, bool) {
	if len(terms) == 0 {
		return 1, true
	}

	total := 0
	for _, t := range terms {
		n := e.tokens[t]
		if n == 0 {
			return 0, false
		}
		total += n
	}

	return float64(total), true
}

func hasAll(encoded []string, values []string) bool {
	for _, v := range values {
		found := false
		for _, e := range encoded {
			if index.FacetValueMatches(e, v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func (m *Index) Get(_ context.Context, id string) (composer.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.byID[id]; ok {
		return e.doc, nil
	}

	if canonical, ok := m.aliases[id]; ok {
		return m.byID[canonical].doc, nil
	}

	return nil, index.ErrNotFound
}

func (m *Index) Ping(context.Context) error {
	return nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
