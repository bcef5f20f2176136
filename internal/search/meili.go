package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxDefinitions = "dialectic_definitions"
	idxClaims      = "dialectic_claims"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// The caller should proceed without it when the instance is down; the
// health loop reconfigures indexes if it comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxDefinitions,
			primaryKey: "id",
			filterable: []string{"investigationSlug", "investigationId"},
			searchable: []string{"term", "body"},
		},
		{
			uid:        idxClaims,
			primaryKey: "id",
			filterable: []string{"investigationSlug", "investigationId"},
			searchable: []string{"text"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or a filtered subset) and merges the
// hits into one globally ranked list. Each index is asked for the full
// page window (offset applied after the merge, not per index) so a page
// boundary never favors one kind over the other.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		kind ResultKind
	}{
		{idxDefinitions, ResultDefinition},
		{idxClaims, ResultClaim},
	}

	for _, ti := range targetIndexes {
		if !q.WantsKind(ti.kind) {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 int64(limit + offset),
			Offset:                0,
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}

		if len(q.InvestigationSlugs) > 0 {
			quoted := make([]string, 0, len(q.InvestigationSlugs))
			for _, invSlug := range q.InvestigationSlugs {
				quoted = append(quoted, fmt.Sprintf("%q", invSlug))
			}
			sr.Filter = []string{fmt.Sprintf("investigationSlug IN [%s]", strings.Join(quoted, ", "))}
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		kind := indexToResultKind(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, kind))
		}
	}

	return rankResults(results, limit, offset), total, nil
}

// rankResults re-ranks the concatenated per-index hits into one list:
// ranking score descending, ties broken by most recently updated, then
// applies the page window.
func rankResults(results []Result, limit, offset int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].UpdatedAt > results[j].UpdatedAt
	})

	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func indexToResultKind(uid string) ResultKind {
	switch uid {
	case idxDefinitions:
		return ResultDefinition
	case idxClaims:
		return ResultClaim
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, kind ResultKind) Result {
	r := Result{Kind: kind}
	r.ID = decodeString(hit, "id")
	r.InvestigationID = decodeString(hit, "investigationId")
	r.InvestigationSlug = decodeString(hit, "investigationSlug")
	r.Score = decodeFloat(hit, "_rankingScore")
	r.UpdatedAt = decodeInt(hit, "updatedAt")

	switch kind {
	case ResultDefinition:
		r.Title = decodeString(hit, "term")
		r.Excerpt = firstNonBlank(decodeFormattedString(hit, "body"), decodeFormattedString(hit, "term"), decodeString(hit, "body"))
	case ResultClaim:
		r.Title = truncate(decodeString(hit, "text"), 120)
		r.Excerpt = firstNonBlank(decodeFormattedString(hit, "text"), decodeString(hit, "text"))
	}
	return r
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFloat(hit meili.Hit, key string) float64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	return 0
}

func decodeInt(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexDefinition adds or updates a definition in the search index.
func (m *Meili) IndexDefinition(d DefinitionRecord) error {
	_, err := m.client.Index(idxDefinitions).AddDocuments([]DefinitionRecord{d}, nil)
	return err
}

// IndexClaim adds or updates a claim in the search index.
func (m *Meili) IndexClaim(c ClaimRecord) error {
	_, err := m.client.Index(idxClaims).AddDocuments([]ClaimRecord{c}, nil)
	return err
}

// DeleteDefinition removes a definition from the search index.
func (m *Meili) DeleteDefinition(id string) error {
	_, err := m.client.Index(idxDefinitions).DeleteDocument(id, nil)
	return err
}

// DeleteClaim removes a claim from the search index.
func (m *Meili) DeleteClaim(id string) error {
	_, err := m.client.Index(idxClaims).DeleteDocument(id, nil)
	return err
}

// IndexDefinitions bulk-indexes definitions.
func (m *Meili) IndexDefinitions(definitions []DefinitionRecord) error {
	if len(definitions) == 0 {
		return nil
	}
	_, err := m.client.Index(idxDefinitions).AddDocuments(definitions, nil)
	return err
}

// IndexClaims bulk-indexes claims.
func (m *Meili) IndexClaims(claims []ClaimRecord) error {
	if len(claims) == 0 {
		return nil
	}
	_, err := m.client.Index(idxClaims).AddDocuments(claims, nil)
	return err
}
