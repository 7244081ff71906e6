package composer

// Keys of the library default fields used by the deployment code.
const (
	FieldID           = "id"
	FieldData         = "data"
	FieldAlternateID  = "alternate_id"
	FieldChildren     = "children"
	FieldItemType     = "item_type"
	FieldItemTypeName = "item_type_label"
	FieldSortTitle    = "sort_title"
	FieldSortCreator  = "sort_creator"
	FieldSortDate     = "sort_date"
	FieldBoost        = "_boost"
)

func registerDefaults(c *Composer) {
	year := &TransformerExtractor{
		Extractor:    ParsedDateExtractor{},
		Transformers: []Transformer{mustFind(`^(\d{4})`, 1, 1)},
	}

	fields := []*FieldSpec{
		{Key: FieldID, Type: Identifier, Extractor: ItemExtractor{Key: "key"}},
		{Key: "version", Type: Stored, Extractor: ItemExtractor{Key: "version"}},
		{Key: FieldItemType, Type: Identifier, Extractor: ItemDataExtractor{Key: "itemType"}},
		{Key: FieldItemTypeName, Type: Stored, Extractor: ItemTypeLabelExtractor{}},
		{Key: FieldData, Type: Stored, Extractor: RawDataExtractor{}, Codec: JSONCodec{}},
		{Key: "bib", Type: Stored, Extractor: ItemExtractor{Key: "bib", Format: "bib"}},
		{
			Key:  FieldAlternateID,
			Type: Identifier,
			Extractor: &MultiExtractor{Extractors: []Extractor{
				ItemDataExtractor{Key: "DOI"},
				&TransformerExtractor{
					Extractor:    ItemDataExtractor{Key: "ISBN"},
					Transformers: []Transformer{Split("")},
				},
			}},
		},
		{Key: "z_title", Type: Text, Extractor: ItemDataExtractor{Key: "title"}},
		{Key: "z_creator", Type: Text, Extractor: CreatorsExtractor{}},
		{
			Key:  "z_all",
			Type: Text,
			Extractor: &MultiExtractor{Extractors: []Extractor{
				ItemDataExtractor{Key: "title"},
				CreatorsExtractor{},
				ItemDataExtractor{Key: "abstractNote"},
				ItemDataExtractor{Key: "publicationTitle"},
				ItemDataExtractor{Key: "publisher"},
				ItemDataExtractor{Key: "date"},
				TagsExtractor{},
			}},
		},
		{Key: "tag", Type: Identifier, Extractor: TagsExtractor{}},
		{Key: "year", Type: Identifier, Extractor: year},
		{
			Key:  FieldSortTitle,
			Type: Stored,
			Extractor: &TransformerExtractor{
				Extractor:    ItemDataExtractor{Key: "title"},
				Transformers: []Transformer{Lowercase},
			},
		},
		{
			Key:  FieldSortCreator,
			Type: Stored,
			Extractor: &TransformerExtractor{
				Extractor:    CreatorsExtractor{},
				Transformers: []Transformer{Lowercase},
			},
		},
		{Key: FieldSortDate, Type: Stored, Extractor: ParsedDateExtractor{}},
		{Key: "url", Type: Stored, Extractor: ItemDataExtractor{Key: "url"}},
		{Key: FieldChildren, Type: Stored, Extractor: ChildrenExtractor{}, Codec: JSONCodec{}},
	}

	for _, f := range fields {
		mustAdd(c.AddField(f))
	}

	yearFacet := FlatFacet("facet_year", "year", "FacetYear", 300, year, PlainCodec{})
	yearFacet.SortBy = []string{"label"}
	yearFacet.SortReverse = true

	link := &TransformerExtractor{
		Extractor:    ItemDataExtractor{Key: "url"},
		Transformers: []Transformer{Present},
	}

	facets := []*FacetSpec{
		FlatFacet("facet_tag", "tag", "FacetTag", 100, TagsExtractor{}, PlainCodec{}),
		FlatFacet("facet_item_type", "type", "FacetItemType", 200, ItemTypeExtractor{}, LabeledCodec{}),
		yearFacet,
		FlatFacet("facet_link", "link", "FacetLink", 400, link, BooleanFacetCodec{TrueLabel: "FacetLinkTrue"}),
	}

	for _, f := range facets {
		mustAdd(c.AddFacet(f))
	}

	date, creator, title := c.Fields[FieldSortDate], c.Fields[FieldSortCreator], c.Fields[FieldSortTitle]

	sorts := []*SortSpec{
		{Key: "score", Label: "SortRelevance", Weight: 0},
		{Key: "date_desc", Label: "SortDateDesc", Weight: 10,
			Fields: []*FieldSpec{date, creator, title}, Reverse: []bool{true, false, false}},
		{Key: "date_asc", Label: "SortDateAsc", Weight: 20,
			Fields: []*FieldSpec{date, creator, title}, Reverse: []bool{false, false, false}},
		{Key: "author_asc", Label: "SortAuthorAsc", Weight: 30,
			Fields: []*FieldSpec{creator, title, date}, Reverse: []bool{false, false, false}},
		{Key: "author_desc", Label: "SortAuthorDesc", Weight: 40,
			Fields: []*FieldSpec{creator, title, date}, Reverse: []bool{true, true, true}},
		{Key: "title_asc", Label: "SortTitleAsc", Weight: 50,
			Fields: []*FieldSpec{title, creator, date}, Reverse: []bool{false, false, false}},
		{Key: "title_desc", Label: "SortTitleDesc", Weight: 60,
			Fields: []*FieldSpec{title, creator, date}, Reverse: []bool{true, true, true}},
	}

	for _, s := range sorts {
		mustAdd(c.AddSort(s))
	}
}

func mustAdd(err error) {
	if err != nil {
		panic(err)
	}
}

func mustFind(pattern string, group, maxMatches int) Transformer {
	t, err := Find(pattern, group, maxMatches)
	if err != nil {
		panic(err)
	}

	return t
}
