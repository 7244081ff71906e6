package solr

type solrRequestParams struct {
	DefType string   `json:"defType,omitempty"`
	Q       string   `json:"q,omitempty"`
	QF      string   `json:"qf,omitempty"`
	Boost   string   `json:"boost,omitempty"`
	QOp     string   `json:"q.op,omitempty"`
	Sort    string   `json:"sort,omitempty"`
	Start   int      `json:"start"`
	Rows    int      `json:"rows"`
	Fl      []string `json:"fl,omitempty"`
	Fq      []string `json:"fq,omitempty"`
}

type solrRequestFacet struct {
	Type     string `json:"type,omitempty"`
	Field    string `json:"field,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	MinCount int    `json:"mincount,omitempty"`
}

type solrRequestJSON struct {
	Params solrRequestParams            `json:"params"`
	Facets map[string]*solrRequestFacet `json:"facet,omitempty"`
}

type solrResponseHeader struct {
	Status int `json:"status,omitempty"`
	QTime  int `json:"QTime,omitempty"`
}

type solrDocument map[string]interface{}

type solrBucket struct {
	Val   string `json:"val"`
	Count int    `json:"count"`
}

type solrResponseFacet struct {
	Count   int          `json:"count"`
	Buckets []solrBucket `json:"buckets,omitempty"`
}

type solrResponseDocuments struct {
	NumFound int            `json:"numFound,omitempty"`
	Start    int            `json:"start,omitempty"`
	MaxScore float32        `json:"maxScore,omitempty"`
	Docs     []solrDocument `json:"docs,omitempty"`
}

type solrError struct {
	Msg  string `json:"msg,omitempty"`
	Code int    `json:"code,omitempty"`
}

// a catch-all for search, update and ping responses
type solrResponse struct {
	ResponseHeader solrResponseHeader           `json:"responseHeader,omitempty"`
	Response       solrResponseDocuments        `json:"response,omitempty"`
	FacetsRaw      map[string]interface{}       `json:"facets,omitempty"`
	Facets         map[string]solrResponseFacet // will be parsed from FacetsRaw
	Error          solrError                    `json:"error,omitempty"`
	Status         string                       `json:"status,omitempty"`
}
