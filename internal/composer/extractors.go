package composer

import (
	"fmt"
	"regexp"
	"strings"
)

// Extractor computes a value from an item. A nil result means the value is
// absent for that item. The set of extractors is closed: composition
// (transformers, sequences) is shared and only the per-item logic differs.
type Extractor interface {
	Extract(item *Item, lib *LibraryContext) any
	extractor()
}

// RawDataExtractor returns the item's data record unmodified.
type RawDataExtractor struct{}

func (RawDataExtractor) Extract(item *Item, _ *LibraryContext) any {
	if data := item.Data(); data != nil {
		return data
	}

	return nil
}

// ItemExtractor returns a top-level value of the API record. Format names
// the Zotero include format that must be requested for the value to exist
// (e.g. "citation"); it is empty for values always present.
type ItemExtractor struct {
	Key    string
	Format string
}

func (e ItemExtractor) Extract(item *Item, _ *LibraryContext) any {
	return item.Raw[e.Key]
}

// ItemDataExtractor returns a named value of the item's data record.
type ItemDataExtractor struct {
	Key string
}

func (e ItemDataExtractor) Extract(item *Item, _ *LibraryContext) any {
	return item.Data()[e.Key]
}

// ParsedDateExtractor returns the date Zotero parsed from the item's date
// field (YYYY, YYYY-MM or YYYY-MM-DD).
type ParsedDateExtractor struct{}

func (ParsedDateExtractor) Extract(item *Item, _ *LibraryContext) any {
	meta, _ := item.Raw["meta"].(map[string]any)
	if date, _ := meta["parsedDate"].(string); date != "" {
		return date
	}

	return nil
}

// InCollectionExtractor tells whether the item belongs to a collection.
type InCollectionExtractor struct {
	CollectionKey string
}

func (e InCollectionExtractor) Extract(item *Item, _ *LibraryContext) any {
	return item.InCollection(e.CollectionKey)
}

// InCollectionBoostExtractor yields BoostFactor for items of a collection
// and nothing otherwise, so that other items get no boost at all rather
// than a zero boost.
type InCollectionBoostExtractor struct {
	CollectionKey string
	BoostFactor   float64
}

func (e InCollectionBoostExtractor) Extract(item *Item, _ *LibraryContext) any {
	if item.InCollection(e.CollectionKey) {
		return e.BoostFactor
	}

	return nil
}

// MatchesTagExtractor tells whether any tag of the item fully matches a
// regular expression.
type MatchesTagExtractor struct {
	Pattern string
	re      *regexp.Regexp
}

// MatchesTag builds a MatchesTagExtractor.
func MatchesTag(pattern string) (*MatchesTagExtractor, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("tag pattern %q: %w", pattern, err)
	}

	return &MatchesTagExtractor{Pattern: pattern, re: re}, nil
}

func (e *MatchesTagExtractor) Extract(item *Item, _ *LibraryContext) any {
	for _, tag := range item.Tags() {
		if e.re.MatchString(tag) {
			return true
		}
	}

	return false
}

// TagsExtractor returns the item's tags.
type TagsExtractor struct{}

func (TagsExtractor) Extract(item *Item, _ *LibraryContext) any {
	if tags := item.Tags(); len(tags) > 0 {
		return tags
	}

	return nil
}

// CreatorsExtractor returns the item's creators as "Last, First" strings
// (or the single-field name).
type CreatorsExtractor struct{}

func (CreatorsExtractor) Extract(item *Item, _ *LibraryContext) any {
	var names []string

	creators, _ := item.Data()["creators"].([]any)
	for _, entry := range creators {
		c, _ := entry.(map[string]any)

		if name, _ := c["name"].(string); name != "" {
			names = append(names, name)
			continue
		}

		last, _ := c["lastName"].(string)
		first, _ := c["firstName"].(string)

		switch {
		case last != "" && first != "":
			names = append(names, last+", "+first)
		case last != "":
			names = append(names, last)
		case first != "":
			names = append(names, first)
		}
	}

	if len(names) == 0 {
		return nil
	}

	return names
}

// ItemTypeExtractor returns "type:label" for the item type facet.
type ItemTypeExtractor struct{}

func (ItemTypeExtractor) Extract(item *Item, lib *LibraryContext) any {
	itemType := item.ItemType()
	if itemType == "" {
		return nil
	}

	return itemType + labelSeparator + itemTypeLabel(itemType, lib)
}

// ItemTypeLabelExtractor returns the localized label of the item type.
type ItemTypeLabelExtractor struct{}

func (ItemTypeLabelExtractor) Extract(item *Item, lib *LibraryContext) any {
	itemType := item.ItemType()
	if itemType == "" {
		return nil
	}

	return itemTypeLabel(itemType, lib)
}

func itemTypeLabel(itemType string, lib *LibraryContext) string {
	if lib != nil {
		if label := lib.ItemTypes[itemType]; label != "" {
			return label
		}
	}

	return itemType
}

// CollectionFacetTreeExtractor returns "key:name" values for every
// collection below CollectionKey that contains the item, including the
// intermediate collections on the way up.
type CollectionFacetTreeExtractor struct {
	CollectionKey string
}

func (e CollectionFacetTreeExtractor) Extract(item *Item, lib *LibraryContext) any {
	if lib == nil {
		return nil
	}

	var values []string

	seen := make(map[string]bool)

	for _, key := range item.Collections() {
		path := lib.Ancestors(key)

		root := -1
		for i, k := range path {
			if k == e.CollectionKey {
				root = i
				break
			}
		}

		for _, k := range path[:max(root, 0)] {
			if !seen[k] {
				seen[k] = true
				values = append(values, k+labelSeparator+lib.CollectionName(k))
			}
		}
	}

	if len(values) == 0 {
		return nil
	}

	return values
}

// ChildSummary is what gets stored about an included child item.
type ChildSummary struct {
	Key         string `json:"key"`
	ItemType    string `json:"item_type"`
	Title       string `json:"title,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
	URL         string `json:"url,omitempty"`
	Note        string `json:"note,omitempty"`
}

// ChildrenExtractor summarizes the child items attached to the item. Only
// children admitted by the composer's child filters are attached.
type ChildrenExtractor struct{}

func (ChildrenExtractor) Extract(item *Item, _ *LibraryContext) any {
	if len(item.Children) == 0 {
		return nil
	}

	children := make([]ChildSummary, 0, len(item.Children))
	for _, child := range item.Children {
		children = append(children, ChildSummary{
			Key:         child.Key,
			ItemType:    child.ItemType(),
			Title:       child.dataString("title"),
			ContentType: child.dataString("contentType"),
			Filename:    child.dataString("filename"),
			URL:         child.dataString("url"),
			Note:        child.dataString("note"),
		})
	}

	return children
}

// TransformerExtractor runs an extractor, then each transformer in order.
type TransformerExtractor struct {
	Extractor    Extractor
	Transformers []Transformer
}

func (e *TransformerExtractor) Extract(item *Item, lib *LibraryContext) any {
	value := e.Extractor.Extract(item, lib)

	for _, t := range e.Transformers {
		if value == nil {
			return nil
		}
		value = t(value)
	}

	return value
}

// MultiExtractor runs every extractor independently and returns the union
// of their string results, in order and without duplicates.
type MultiExtractor struct {
	Extractors []Extractor
}

func (e *MultiExtractor) Extract(item *Item, lib *LibraryContext) any {
	var values []string

	seen := make(map[string]bool)

	for _, ex := range e.Extractors {
		for _, v := range stringsOf(ex.Extract(item, lib)) {
			if v = strings.TrimSpace(v); v != "" && !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
	}

	if len(values) == 0 {
		return nil
	}

	return values
}

// ChainExtractor returns the first non-absent result of its extractors.
type ChainExtractor struct {
	Extractors []Extractor
}

func (e *ChainExtractor) Extract(item *Item, lib *LibraryContext) any {
	for _, ex := range e.Extractors {
		if v := ex.Extract(item, lib); v != nil {
			return v
		}
	}

	return nil
}

func (RawDataExtractor) extractor()              {}
func (ItemExtractor) extractor()                 {}
func (ItemDataExtractor) extractor()             {}
func (ParsedDateExtractor) extractor()           {}
func (InCollectionExtractor) extractor()         {}
func (InCollectionBoostExtractor) extractor()    {}
func (*MatchesTagExtractor) extractor()          {}
func (TagsExtractor) extractor()                 {}
func (CreatorsExtractor) extractor()             {}
func (ItemTypeExtractor) extractor()             {}
func (ItemTypeLabelExtractor) extractor()        {}
func (CollectionFacetTreeExtractor) extractor()  {}
func (ChildrenExtractor) extractor()             {}
func (*TransformerExtractor) extractor()         {}
func (*MultiExtractor) extractor()               {}
func (*ChainExtractor) extractor()               {}
