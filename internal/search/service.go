package search

import (
	"context"
	"log"
	"time"
	"unicode/utf8"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
// Queries shorter than MinQueryLength runes return an empty result set
// without touching either backend.
func (s *Service) Search(ctx context.Context, q Query) Response {
	start := time.Now()
	if utf8.RuneCountInString(q.Text) < MinQueryLength {
		return Response{Results: []Result{}, TotalResults: 0, Query: q.Text}
	}

	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{
				Results:      nonNil(results),
				TotalResults: total,
				Query:        q.Text,
				SearchTimeMS: time.Since(start).Milliseconds(),
			}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, TotalResults: 0, Query: q.Text}
	}
	return Response{
		Results:      nonNil(results),
		TotalResults: total,
		Query:        q.Text,
		SearchTimeMS: time.Since(start).Milliseconds(),
	}
}

// IndexDefinition indexes a definition (fire-and-forget to Meilisearch).
func (s *Service) IndexDefinition(d DefinitionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDefinition(d); err != nil {
			log.Printf("search: index definition %s: %v", d.ID, err)
		}
	}()
}

// IndexClaim indexes a claim (fire-and-forget to Meilisearch).
func (s *Service) IndexClaim(c ClaimRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexClaim(c); err != nil {
			log.Printf("search: index claim %s: %v", c.ID, err)
		}
	}()
}

// DeleteDefinition removes a definition from the search index (fire-and-forget).
func (s *Service) DeleteDefinition(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDefinition(id); err != nil {
			log.Printf("search: delete definition %s: %v", id, err)
		}
	}()
}

// DeleteClaim removes a claim from the search index (fire-and-forget).
func (s *Service) DeleteClaim(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteClaim(id); err != nil {
			log.Printf("search: delete claim %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch.
func (s *Service) ReindexAll(definitions []DefinitionRecord, claims []ClaimRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(definitions) > 0 {
		if err := s.meili.IndexDefinitions(definitions); err != nil {
			log.Printf("search: reindex definitions: %v", err)
		}
	}
	if len(claims) > 0 {
		if err := s.meili.IndexClaims(claims); err != nil {
			log.Printf("search: reindex claims: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	definitions, claims, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(definitions, claims)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
