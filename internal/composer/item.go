package composer

import (
	"strings"
)

// Item is a Zotero item as returned by the web API: the full record
// (key, version, meta, data and any requested include formats) plus the
// child items (notes, attachments) that belong to it.
type Item struct {
	Key      string
	Raw      map[string]any
	Children []*Item
}

// Collection is a node of the library's collection tree.
type Collection struct {
	Key       string
	Name      string
	ParentKey string
}

// LibraryContext holds library-wide data that some extractors need.
type LibraryContext struct {
	Collections map[string]Collection
	ItemTypes   map[string]string // item type -> localized label
}

// NewItem wraps a raw API record.
func NewItem(raw map[string]any) *Item {
	key, _ := raw["key"].(string)
	return &Item{Key: key, Raw: raw}
}

// Data returns the item's data record, or nil.
func (i *Item) Data() map[string]any {
	data, _ := i.Raw["data"].(map[string]any)
	return data
}

func (i *Item) dataString(key string) string {
	s, _ := i.Data()[key].(string)
	return s
}

// ItemType returns the Zotero item type, e.g. "journalArticle".
func (i *Item) ItemType() string {
	return i.dataString("itemType")
}

// ParentKey returns the key of the parent item for child items.
func (i *Item) ParentKey() string {
	return i.dataString("parentItem")
}

// Tags returns the item's tags, trimmed, in their original order.
func (i *Item) Tags() []string {
	var tags []string

	list, _ := i.Data()["tags"].([]any)
	for _, entry := range list {
		tagData, _ := entry.(map[string]any)
		tag, _ := tagData["tag"].(string)
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}

// Collections returns the keys of the collections the item belongs to.
func (i *Item) Collections() []string {
	return stringsOf(i.Data()["collections"])
}

// InCollection reports whether the item belongs directly to the collection.
func (i *Item) InCollection(key string) bool {
	for _, c := range i.Collections() {
		if c == key {
			return true
		}
	}

	return false
}

// Ancestors returns the keys from the collection up to the root of the
// tree, starting with the collection itself. Cycles are cut.
func (l *LibraryContext) Ancestors(key string) []string {
	var path []string

	seen := make(map[string]bool)

	for key != "" && !seen[key] {
		seen[key] = true
		path = append(path, key)

		c, ok := l.Collections[key]
		if !ok {
			break
		}

		key = c.ParentKey
	}

	return path
}

// CollectionName returns the collection's name, or its key when unknown.
func (l *LibraryContext) CollectionName(key string) string {
	if c, ok := l.Collections[key]; ok && c.Name != "" {
		return c.Name
	}

	return key
}

// stringsOf flattens string-ish values into a string slice.
func stringsOf(v any) []string {
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
			res = append(res, stringsOf(e)...)
		}
		return res

	default:
		return nil
	}
}
