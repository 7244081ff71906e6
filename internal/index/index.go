package index

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/edtechhub/kerkoapp/internal/cache"
	"github.com/edtechhub/kerkoapp/internal/composer"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("item not found")

// Query is a search request. Filters map facet filter keys to the values
// an item must all have.
type Query struct {
	Terms   string
	Filters map[string][]string
	Sort    *composer.SortSpec
	Start   int
	Rows    int
}

// Result is one page of search results. Facets holds, per facet key, the
// number of matching items for each encoded facet value.
type Result struct {
	Total  int
	Docs   []composer.Document
	Facets map[string]map[string]int
}

// Index is a searchable store of documents built by the composer.
type Index interface {
	Replace(ctx context.Context, docs []composer.Document) error
	Search(ctx context.Context, q Query) (*Result, error)
	// Get finds a document by id or alternate id.
	Get(ctx context.Context, id string) (composer.Document, error)
	Ping(ctx context.Context) error
}

// Build turns the cached items into documents: every field then every
// facet of the composer is extracted, and only the children admitted by
// the composer are kept. Failing fields are left out of the document.
func Build(c *composer.Composer, snap *cache.Snapshot) []composer.Document {
	docs := make([]composer.Document, 0, len(snap.Items))

	for _, item := range snap.Items {
		docs = append(docs, BuildDocument(c, item, snap.Library))
	}

	log.Printf("[INDEX] built %d documents", len(docs))

	return docs
}

// BuildDocument extracts the document of a single item.
func BuildDocument(c *composer.Composer, item *composer.Item, lib *composer.LibraryContext) composer.Document {
	filtered := *item
	filtered.Children = nil

	for _, child := range item.Children {
		if c.IncludeChild(child) {
			filtered.Children = append(filtered.Children, child)
		}
	}

	doc := make(composer.Document)

	for key, field := range c.Fields {
		value, err := field.Value(&filtered, lib)
		if err != nil {
			log.Warnf("[INDEX] item %s: %s", item.Key, err.Error())
			continue
		}

		if value != nil {
			doc[key] = value
		}
	}

	for key, facet := range c.Facets {
		if values := facet.Values(&filtered, lib); len(values) > 0 {
			doc[key] = values
		}
	}

	return doc
}

// FacetValueMatches reports whether an encoded facet value stands for the
// filter value: either equal, or the value part of a "value:label" pair.
func FacetValueMatches(encoded, value string) bool {
	return encoded == value || strings.HasPrefix(encoded, value+":")
}

// DocumentID returns the id of a document.
func DocumentID(doc composer.Document) string {
	id, _ := doc[composer.FieldID].(string)
	return id
}

// Strings flattens a stored value into strings.
func Strings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		var res []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				res = append(res, s)
			}
		}
		return res
	default:
		return nil
	}
}
