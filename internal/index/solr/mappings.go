package solr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/index"
)

// functions that map composer documents and queries into solr terms

const (
	solrIDField       = "id"
	solrBoostField    = "boost_f"
	solrDocumentField = "document_json_txt" // stored copy of the whole document
)

// fieldName picks the dynamic field a composer field is indexed under.
func fieldName(f *composer.FieldSpec, value any) string {
	if f.Key == composer.FieldID {
		return solrIDField
	}

	switch f.Type {
	case composer.Text:
		return f.Key + "_txt"
	case composer.Boolean:
		return f.Key + "_b"
	case composer.Identifier:
		return f.Key + "_ss"
	}

	switch value.(type) {
	case []string, []any:
		return f.Key + "_ss"
	case bool:
		return f.Key + "_b"
	case float64, int:
		return f.Key + "_f"
	default:
		return f.Key + "_s"
	}
}

// sortFieldName is the single-valued field a sort clause orders by.
func sortFieldName(c composer.SortClause) string {
	if c.Type == composer.Boolean {
		return c.Field + "_b"
	}

	return c.Field + "_s"
}

func facetFieldName(key string) string {
	return key + "_ss"
}

// toSolrDocument flattens a document into solr fields. Fields used by
// sorts also get a single-valued copy to sort on.
func (s *Index) toSolrDocument(doc composer.Document) (solrDocument, error) {
	blob, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document %s: %w", index.DocumentID(doc), err)
	}

	out := solrDocument{solrDocumentField: string(blob)}

	for key, value := range doc {
		if key == composer.FieldBoost {
			out[solrBoostField] = value
			continue
		}

		if _, ok := s.composer.Facets[key]; ok {
			out[facetFieldName(key)] = value
			continue
		}

		f, ok := s.composer.Fields[key]
		if !ok || f.Type == composer.NotInSchema {
			continue
		}

		if f.Type == composer.Stored && !s.sortKeys[key] {
			// only kept in the stored document
			continue
		}

		out[fieldName(f, value)] = value

		if s.sortKeys[key] {
			if first := firstValue(value); first != nil {
				out[sortFieldName(composer.SortClause{Field: key, Type: f.Type})] = first
			}
		}
	}

	return out, nil
}

func firstValue(v any) any {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil
		}
		return t[0]
	case []any:
		if len(t) == 0 {
			return nil
		}
		return t[0]
	default:
		return v
	}
}

func (s *Index) fromSolrDocument(doc solrDocument) (composer.Document, error) {
	blob := firstValue(doc[solrDocumentField])

	str, ok := blob.(string)
	if !ok {
		return nil, fmt.Errorf("solr document %v has no stored document", doc[solrIDField])
	}

	out := make(composer.Document)
	if err := json.Unmarshal([]byte(str), &out); err != nil {
		return nil, fmt.Errorf("decoding stored document: %w", err)
	}

	return out, nil
}

func (s *Index) buildSort(spec *composer.SortSpec) string {
	var clauses []string

	if spec != nil && !spec.IsRelevance() {
		for _, c := range spec.Clauses() {
			dir := "asc"
			if c.Descending {
				dir = "desc"
			}
			clauses = append(clauses, fmt.Sprintf("%s %s", sortFieldName(c), dir))
		}
	}

	clauses = append(clauses, "score desc", "id asc")

	return strings.Join(clauses, ",")
}

func (s *Index) buildFilters(filters map[string][]string) []string {
	var fq []string

	for filterKey, values := range filters {
		facet, ok := s.composer.FacetByFilterKey(filterKey)
		if !ok {
			continue
		}

		field := facetFieldName(facet.Key)

		for _, v := range values {
			escaped := escape(v)
			fq = append(fq, fmt.Sprintf(`%s:(%s OR %s\:*)`, field, escaped, escaped))
		}
	}

	return fq
}

func (s *Index) buildFacets() map[string]*solrRequestFacet {
	facets := make(map[string]*solrRequestFacet)

	for key := range s.composer.Facets {
		facets[key] = &solrRequestFacet{
			Type:     "terms",
			Field:    facetFieldName(key),
			Limit:    -1,
			MinCount: 1,
		}
	}

	return facets
}

func (s *Index) buildQuery(q index.Query) solrRequestJSON {
	terms := strings.TrimSpace(q.Terms)
	if terms == "" {
		terms = "*:*"
	}

	rows := q.Rows
	if rows <= 0 {
		rows = 10
	}

	return solrRequestJSON{
		Params: solrRequestParams{
			DefType: "edismax",
			Q:       terms,
			QF:      s.qf,
			QOp:     "AND",
			// a document without a boost keeps its score, unlike a zero boost
			Boost: fmt.Sprintf("def(%s,1)", solrBoostField),
			Sort:  s.buildSort(q.Sort),
			Start: max(q.Start, 0),
			Rows:  rows,
			Fl:    []string{solrIDField, solrDocumentField, "score"},
			Fq:    s.buildFilters(q.Filters),
		},
		Facets: s.buildFacets(),
	}
}

var solrSpecialChars = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
	`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`,
	`/`, `\/`, ` `, `\ `,
)

func escape(s string) string {
	return solrSpecialChars.Replace(s)
}
