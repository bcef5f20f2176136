package search

// MinQueryLength is the shortest query (in runes, after trimming) that
// produces results. Shorter queries return an empty set, mirroring the
// editors' debounce gate at the API boundary so non-UI callers get the
// same behavior.
const MinQueryLength = 2

// ResultKind identifies the kind of entity in a search result.
type ResultKind string

const (
	ResultDefinition ResultKind = "definition"
	ResultClaim      ResultKind = "claim"
)

// Result is a single search hit returned to the caller. UpdatedAt is
// the entity's last-modified time as a Unix timestamp; it is not part
// of the response payload, it only feeds the rank tie-break.
type Result struct {
	Kind              ResultKind `json:"kind"`
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Excerpt           string     `json:"excerpt"`
	InvestigationID   string     `json:"investigation_id"`
	InvestigationSlug string     `json:"investigation_slug"`
	Score             float64    `json:"score"`
	UpdatedAt         int64      `json:"-"`
}

// Query describes a search request.
type Query struct {
	Text               string
	Kinds              []ResultKind // empty = all kinds
	InvestigationSlugs []string     // empty = all investigations
	Limit              int
	Offset             int
}

// WantsKind reports whether the query's kind filter admits k.
func (q Query) WantsKind(k ResultKind) bool {
	if len(q.Kinds) == 0 {
		return true
	}
	for _, kind := range q.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
	Query        string   `json:"query"`
	SearchTimeMS int64    `json:"search_time_ms"`
}

// Searcher can execute a relevance-ranked search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexDefinition(d DefinitionRecord) error
	IndexClaim(c ClaimRecord) error
	DeleteDefinition(id string) error
	DeleteClaim(id string) error
}

// DefinitionRecord is the data we index for a definition.
type DefinitionRecord struct {
	ID                string `json:"id"`
	Term              string `json:"term"`
	Body              string `json:"body"`
	InvestigationID   string `json:"investigationId"`
	InvestigationSlug string `json:"investigationSlug"`
	UpdatedAt         int64  `json:"updatedAt"`
}

// ClaimRecord is the data we index for a claim.
type ClaimRecord struct {
	ID                string `json:"id"`
	Text              string `json:"text"`
	InvestigationID   string `json:"investigationId"`
	InvestigationSlug string `json:"investigationSlug"`
	Position          int    `json:"position"`
	UpdatedAt         int64  `json:"updatedAt"`
}
