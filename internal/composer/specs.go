package composer

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Document is the stored form of an item: field and facet keys mapped to
// their encoded values. Absent values have no entry.
type Document map[string]any

// StorageType says how the index layer keeps a field.
type StorageType int

const (
	// Stored fields are kept for display but not searched.
	Stored StorageType = iota
	// Text fields are analyzed and searched by the query terms.
	Text
	// Boolean fields are indexed flags.
	Boolean
	// Identifier fields are matched exactly (ids, alternate ids, tags).
	Identifier
	// NotInSchema fields only influence processing (e.g. boosts).
	NotInSchema
)

var storageTypeNames = map[StorageType]string{
	Stored:      "stored",
	Text:        "text",
	Boolean:     "boolean",
	Identifier:  "identifier",
	NotInSchema: "not-in-schema",
}

func (t StorageType) String() string {
	if name, ok := storageTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("storage(%d)", int(t))
}

// FieldSpec declares a document field.
type FieldSpec struct {
	Key       string
	Type      StorageType
	Extractor Extractor
	Codec     ValueCodec
}

// Value extracts and encodes the field's value for an item.
func (f *FieldSpec) Value(item *Item, lib *LibraryContext) (any, error) {
	value := f.Extractor.Extract(item, lib)
	if value == nil {
		return nil, nil
	}

	if f.Codec == nil {
		return value, nil
	}

	encoded, err := f.Codec.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Key, err)
	}

	return encoded, nil
}

// Decode returns a document's value for this field in its extracted form.
func (f *FieldSpec) Decode(doc Document) (any, error) {
	value, ok := doc[f.Key]
	if !ok || value == nil {
		return nil, nil
	}

	if f.Codec == nil {
		return value, nil
	}

	return f.Codec.Decode(value)
}

// FacetSpec declares a filter dimension. Title is a message id.
type FacetSpec struct {
	Key           string
	FilterKey     string
	Title         string
	Weight        int
	CollectionKey string
	Extractor     Extractor
	Codec         FacetCodec
	SortBy        []string // "label" and/or "count"
	SortReverse   bool
	ItemView      bool // also listed on item pages
}

// CollectionFacet builds a facet whose values are the subcollections of a
// Zotero collection.
func CollectionFacet(key, filterKey, title string, weight int, collectionKey string) *FacetSpec {
	return &FacetSpec{
		Key:           key,
		FilterKey:     filterKey,
		Title:         title,
		Weight:        weight,
		CollectionKey: collectionKey,
		Extractor:     CollectionFacetTreeExtractor{CollectionKey: collectionKey},
		Codec:         LabeledCodec{},
		SortBy:        []string{"label"},
		ItemView:      true,
	}
}

// FlatFacet builds a facet over the values of an extractor.
func FlatFacet(key, filterKey, title string, weight int, extractor Extractor, codec FacetCodec) *FacetSpec {
	if codec == nil {
		codec = PlainCodec{}
	}

	return &FacetSpec{
		Key:       key,
		FilterKey: filterKey,
		Title:     title,
		Weight:    weight,
		Extractor: extractor,
		Codec:     codec,
		SortBy:    []string{"count", "label"},
		ItemView:  true,
	}
}

// Values extracts and encodes the facet values of an item.
func (f *FacetSpec) Values(item *Item, lib *LibraryContext) []string {
	value := f.Extractor.Extract(item, lib)
	if value == nil {
		return nil
	}

	return f.Codec.Encode(value)
}

// FacetBucket is one value of a facet with its number of matches.
type FacetBucket struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SortBuckets orders buckets in place by the facet's sort policy. Counts
// sort in descending order and labels in ascending order, unless
// SortReverse is set.
func (f *FacetSpec) SortBuckets(buckets []FacetBucket) {
	keys := f.SortBy
	if len(keys) == 0 {
		keys = []string{"label"}
	}

	less := func(a, b FacetBucket) int {
		for _, k := range keys {
			var c int
			switch k {
			case "count":
				c = cmp.Compare(b.Count, a.Count)
			case "label":
				c = strings.Compare(strings.ToLower(a.Label), strings.ToLower(b.Label))
			}

			if c != 0 {
				if f.SortReverse {
					return -c
				}
				return c
			}
		}

		return strings.Compare(a.Value, b.Value)
	}

	slices.SortFunc(buckets, less)
}

// BadgeSpec declares a marker rendered next to items whose backing field
// activates it.
type BadgeSpec struct {
	Key       string
	Field     *FieldSpec
	Activator Activator
	Renderer  Renderer
	Weight    int
}

// Active reports whether the badge applies to a stored document.
func (b *BadgeSpec) Active(doc Document) bool {
	activate := b.Activator
	if activate == nil {
		activate = ActivateIfTrue
	}

	return activate(b.Field, doc)
}

// SortSpec declares a named ordering of results. Label is a message id.
// Without fields the ordering is by relevance.
type SortSpec struct {
	Key     string
	Label   string
	Weight  int
	Fields  []*FieldSpec
	Reverse []bool
}

// SortClause is one key of a sort, for the index backends.
type SortClause struct {
	Field      string
	Type       StorageType
	Descending bool
}

// IsRelevance reports whether the sort orders by relevance score.
func (s *SortSpec) IsRelevance() bool {
	return len(s.Fields) == 0
}

// Clauses returns the ordering as field/direction pairs.
func (s *SortSpec) Clauses() []SortClause {
	clauses := make([]SortClause, 0, len(s.Fields))
	for i, f := range s.Fields {
		clauses = append(clauses, SortClause{
			Field:      f.Key,
			Type:       f.Type,
			Descending: i < len(s.Reverse) && s.Reverse[i],
		})
	}

	return clauses
}

// Compare orders two documents by the sort's fields: ties on a field are
// broken by the next one, and each field has its own direction. Documents
// missing a value sort after those having one, whatever the direction.
func (s *SortSpec) Compare(a, b Document) int {
	for i, f := range s.Fields {
		av, aok := sortValue(a[f.Key])
		bv, bok := sortValue(b[f.Key])

		switch {
		case !aok && !bok:
			continue
		case !aok:
			return 1
		case !bok:
			return -1
		}

		c := compareValues(av, bv)
		if i < len(s.Reverse) && s.Reverse[i] {
			c = -c
		}

		if c != 0 {
			return c
		}
	}

	return 0
}

// Less reports whether a sorts before b.
func (s *SortSpec) Less(a, b Document) bool {
	return s.Compare(a, b) < 0
}

// sortValue reduces a stored value to a comparable scalar. Lists compare by
// their first element.
func sortValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false

	case string, bool:
		return t, true

	case []string:
		if len(t) == 0 {
			return nil, false
		}
		return t[0], true

	case []any:
		if len(t) == 0 {
			return nil, false
		}
		return sortValue(t[0])
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}

	return fmt.Sprint(v), true
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}

	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}

	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
