package composer

import (
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// Options tune a composer. Exclusions only apply to the library defaults.
type Options struct {
	Language             string
	ExcludeDefaultFields []string
	ExcludeDefaultFacets []string
	ExcludeDefaultSorts  []string
	ExcludeDefaultBadges []string
	ChildIncludeRE       string
	ChildExcludeRE       string
}

// Composer holds the field, facet, badge and sort declarations of the
// search schema. It is populated once at startup, finalized, then only
// read. The maps are exported so that a registered spec can be replaced
// outright, e.g. c.Fields["data"] = spec.
type Composer struct {
	Fields map[string]*FieldSpec
	Facets map[string]*FacetSpec
	Badges map[string]*BadgeSpec
	Sorts  map[string]*SortSpec

	opts      Options
	defaults  map[string]map[string]bool
	finalized bool

	childInclude *regexp.Regexp
	childExclude *regexp.Regexp
}

const (
	categoryField = "field"
	categoryFacet = "facet"
	categoryBadge = "badge"
	categorySort  = "sort"
)

// New returns a composer holding the library defaults.
func New(opts Options) *Composer {
	c := &Composer{
		Fields: make(map[string]*FieldSpec),
		Facets: make(map[string]*FacetSpec),
		Badges: make(map[string]*BadgeSpec),
		Sorts:  make(map[string]*SortSpec),
		opts:   opts,
		defaults: map[string]map[string]bool{
			categoryField: {},
			categoryFacet: {},
			categoryBadge: {},
			categorySort:  {},
		},
	}

	registerDefaults(c)

	for category, keys := range map[string][]string{
		categoryField: keysOf(c.Fields),
		categoryFacet: keysOf(c.Facets),
		categoryBadge: keysOf(c.Badges),
		categorySort:  keysOf(c.Sorts),
	} {
		for _, k := range keys {
			c.defaults[category][k] = true
		}
	}

	return c
}

// Language is the language the composer was configured for.
func (c *Composer) Language() string {
	return c.opts.Language
}

// Finalized reports whether Finalize succeeded.
func (c *Composer) Finalized() bool {
	return c.finalized
}

func (c *Composer) AddField(spec *FieldSpec) error {
	if c.finalized {
		return ErrFinalized
	}

	if _, ok := c.Fields[spec.Key]; ok {
		return DuplicateKeyError{Category: categoryField, Key: spec.Key}
	}

	c.Fields[spec.Key] = spec

	return nil
}

func (c *Composer) AddFacet(spec *FacetSpec) error {
	if c.finalized {
		return ErrFinalized
	}

	if _, ok := c.Facets[spec.Key]; ok {
		return DuplicateKeyError{Category: categoryFacet, Key: spec.Key}
	}

	c.Facets[spec.Key] = spec

	return nil
}

// AddBadge registers a badge. Its field must already be registered.
func (c *Composer) AddBadge(spec *BadgeSpec) error {
	if c.finalized {
		return ErrFinalized
	}

	if _, ok := c.Badges[spec.Key]; ok {
		return DuplicateKeyError{Category: categoryBadge, Key: spec.Key}
	}

	if err := c.checkField(categoryBadge, spec.Key, spec.Field); err != nil {
		return err
	}

	c.Badges[spec.Key] = spec

	return nil
}

// AddSort registers a sort. Its fields must already be registered.
func (c *Composer) AddSort(spec *SortSpec) error {
	if c.finalized {
		return ErrFinalized
	}

	if _, ok := c.Sorts[spec.Key]; ok {
		return DuplicateKeyError{Category: categorySort, Key: spec.Key}
	}

	if err := c.checkSort(spec); err != nil {
		return err
	}

	c.Sorts[spec.Key] = spec

	return nil
}

// ExtendField appends extractors to a field whose extractor is a
// MultiExtractor.
func (c *Composer) ExtendField(key string, extractors ...Extractor) error {
	if c.finalized {
		return ErrFinalized
	}

	field, ok := c.Fields[key]
	if !ok {
		return fmt.Errorf("extend field %q: not registered", key)
	}

	multi, ok := field.Extractor.(*MultiExtractor)
	if !ok {
		return fmt.Errorf("extend field %q: extractor is %T, not a multi extractor", key, field.Extractor)
	}

	multi.Extractors = append(multi.Extractors, extractors...)

	return nil
}

// Finalize prunes the excluded defaults, compiles the child filters and
// checks the cross references between specs. All problems are reported
// together.
func (c *Composer) Finalize() error {
	if c.finalized {
		return ErrFinalized
	}

	c.exclude(categoryField, c.opts.ExcludeDefaultFields, func(k string) { delete(c.Fields, k) })
	c.exclude(categoryFacet, c.opts.ExcludeDefaultFacets, func(k string) { delete(c.Facets, k) })
	c.exclude(categorySort, c.opts.ExcludeDefaultSorts, func(k string) { delete(c.Sorts, k) })
	c.exclude(categoryBadge, c.opts.ExcludeDefaultBadges, func(k string) { delete(c.Badges, k) })

	var errs []error

	var err error
	if c.childInclude, err = compileOptional(c.opts.ChildIncludeRE); err != nil {
		errs = append(errs, fmt.Errorf("child include pattern: %w", err))
	}

	if c.childExclude, err = compileOptional(c.opts.ChildExcludeRE); err != nil {
		errs = append(errs, fmt.Errorf("child exclude pattern: %w", err))
	}

	for _, key := range keysOf(c.Badges) {
		b := c.Badges[key]
		if err := c.checkField(categoryBadge, key, b.Field); err != nil {
			errs = append(errs, err)
		} else {
			b.Field = c.Fields[b.Field.Key]
		}
		if b.Renderer == nil {
			errs = append(errs, fmt.Errorf("badge %q has no renderer", key))
		}
	}

	for _, key := range keysOf(c.Sorts) {
		s := c.Sorts[key]
		if err := c.checkSort(s); err != nil {
			errs = append(errs, err)
			continue
		}

		// fields replaced through the maps take effect in sorts too
		for i, f := range s.Fields {
			s.Fields[i] = c.Fields[f.Key]
		}
	}

	for _, key := range keysOf(c.Fields) {
		if c.Fields[key].Extractor == nil {
			errs = append(errs, fmt.Errorf("field %q has no extractor", key))
		}
	}

	byFilterKey := make(map[string][]string)

	for _, key := range keysOf(c.Facets) {
		f := c.Facets[key]

		if f.FilterKey == "" {
			errs = append(errs, fmt.Errorf("facet %q has no filter key", key))
		}
		if f.Extractor == nil || f.Codec == nil {
			errs = append(errs, fmt.Errorf("facet %q needs an extractor and a codec", key))
		}
		if _, ok := c.Fields[key]; ok {
			errs = append(errs, DuplicateKeyError{Category: "facet/field", Key: key})
		}

		byFilterKey[f.FilterKey] = append(byFilterKey[f.FilterKey], key)
	}

	for _, fk := range keysOf(byFilterKey) {
		if facets := byFilterKey[fk]; len(facets) > 1 {
			errs = append(errs, DuplicateFilterKeyError{FilterKey: fk, Facets: facets})
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.finalized = true

	return nil
}

func (c *Composer) exclude(category string, keys []string, remove func(string)) {
	for _, k := range keys {
		if c.defaults[category][k] {
			remove(k)
		}
	}
}

func (c *Composer) checkField(category, key string, field *FieldSpec) error {
	if field == nil {
		return UnknownFieldError{Category: category, Key: key}
	}

	if _, ok := c.Fields[field.Key]; !ok {
		return UnknownFieldError{Category: category, Key: key, Field: field.Key}
	}

	return nil
}

func (c *Composer) checkSort(spec *SortSpec) error {
	if len(spec.Fields) != len(spec.Reverse) {
		return SortSpecError{
			Key:    spec.Key,
			Reason: fmt.Sprintf("%d fields but %d directions", len(spec.Fields), len(spec.Reverse)),
		}
	}

	for _, f := range spec.Fields {
		if err := c.checkField(categorySort, spec.Key, f); err != nil {
			return err
		}
	}

	return nil
}

// SortedFacets returns the facets in display order.
func (c *Composer) SortedFacets() []*FacetSpec {
	facets := valuesOf(c.Facets)
	sort.SliceStable(facets, func(i, j int) bool {
		return weightedLess(facets[i].Weight, facets[i].Key, facets[j].Weight, facets[j].Key)
	})

	return facets
}

// SortedSorts returns the sorts in display order.
func (c *Composer) SortedSorts() []*SortSpec {
	sorts := valuesOf(c.Sorts)
	sort.SliceStable(sorts, func(i, j int) bool {
		return weightedLess(sorts[i].Weight, sorts[i].Key, sorts[j].Weight, sorts[j].Key)
	})

	return sorts
}

// SortedBadges returns the badges in rendering order.
func (c *Composer) SortedBadges() []*BadgeSpec {
	badges := valuesOf(c.Badges)
	sort.SliceStable(badges, func(i, j int) bool {
		return weightedLess(badges[i].Weight, badges[i].Key, badges[j].Weight, badges[j].Key)
	})

	return badges
}

// DefaultSort is the first sort in display order.
func (c *Composer) DefaultSort() *SortSpec {
	if sorts := c.SortedSorts(); len(sorts) > 0 {
		return sorts[0]
	}

	return nil
}

// FacetByFilterKey finds the facet answering a query parameter.
func (c *Composer) FacetByFilterKey(filterKey string) (*FacetSpec, bool) {
	for _, f := range c.Facets {
		if f.FilterKey == filterKey {
			return f, true
		}
	}

	return nil, false
}

// FieldsOfType returns the fields of the given storage types, by key.
func (c *Composer) FieldsOfType(types ...StorageType) []*FieldSpec {
	var fields []*FieldSpec

	for _, key := range keysOf(c.Fields) {
		if f := c.Fields[key]; slices.Contains(types, f.Type) {
			fields = append(fields, f)
		}
	}

	return fields
}

// RequiredFormats lists the Zotero include formats the fields read.
func (c *Composer) RequiredFormats() []string {
	formats := make(map[string]bool)

	for _, f := range c.Fields {
		collectFormats(f.Extractor, formats)
	}
	for _, f := range c.Facets {
		collectFormats(f.Extractor, formats)
	}

	return keysOf(formats)
}

func collectFormats(e Extractor, formats map[string]bool) {
	switch t := e.(type) {
	case ItemExtractor:
		if t.Format != "" {
			formats[t.Format] = true
		}
	case *TransformerExtractor:
		collectFormats(t.Extractor, formats)
	case *MultiExtractor:
		for _, sub := range t.Extractors {
			collectFormats(sub, formats)
		}
	case *ChainExtractor:
		for _, sub := range t.Extractors {
			collectFormats(sub, formats)
		}
	}
}

// IncludeChild tells whether a child item (note, attachment) is indexed
// with its parent: one of its tags must match the include pattern when
// there is one, and none may match the exclude pattern.
func (c *Composer) IncludeChild(child *Item) bool {
	tags := child.Tags()

	matches := func(re *regexp.Regexp) bool {
		return slices.ContainsFunc(tags, re.MatchString)
	}

	if c.childInclude != nil && !matches(c.childInclude) {
		return false
	}

	if c.childExclude != nil && matches(c.childExclude) {
		return false
	}

	return true
}

// RenderBadges returns the markup of the badges active on a document, in
// rendering order.
func (c *Composer) RenderBadges(doc Document, rc RenderContext) ([]template.HTML, error) {
	var out []template.HTML

	for _, b := range c.SortedBadges() {
		if !b.Active(doc) {
			continue
		}

		html, err := b.Renderer.Render(rc, b.Field, doc)
		if err != nil {
			return nil, fmt.Errorf("badge %s: %w", b.Key, err)
		}

		if strings.TrimSpace(string(html)) != "" {
			out = append(out, html)
		}
	}

	return out, nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}

	return regexp.Compile(pattern)
}

func weightedLess(wi int, ki string, wj int, kj string) bool {
	if wi != wj {
		return wi < wj
	}

	return ki < kj
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func valuesOf[V any](m map[string]V) []V {
	values := make([]V, 0, len(m))
	for _, k := range keysOf(m) {
		values = append(values, m[k])
	}

	return values
}
