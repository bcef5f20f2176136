package search

import (
	"context"
	"testing"
)

func TestWantsKind(t *testing.T) {
	tests := []struct {
		name  string
		kinds []ResultKind
		ask   ResultKind
		want  bool
	}{
		{"empty filter admits definitions", nil, ResultDefinition, true},
		{"empty filter admits claims", nil, ResultClaim, true},
		{"matching filter", []ResultKind{ResultClaim}, ResultClaim, true},
		{"non-matching filter", []ResultKind{ResultClaim}, ResultDefinition, false},
		{"multi filter", []ResultKind{ResultDefinition, ResultClaim}, ResultClaim, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Query{Kinds: tt.kinds}
			if got := q.WantsKind(tt.ask); got != tt.want {
				t.Errorf("WantsKind(%q) = %v, want %v", tt.ask, got, tt.want)
			}
		})
	}
}

func TestServiceShortQueryReturnsEmpty(t *testing.T) {
	// No backends needed: the length gate fires before either is touched.
	svc := NewService(nil, nil)

	for _, text := range []string{"", "a", "x", "é"} {
		resp := svc.Search(context.Background(), Query{Text: text})
		if len(resp.Results) != 0 {
			t.Errorf("query %q: got %d results, want 0", text, len(resp.Results))
		}
		if resp.TotalResults != 0 {
			t.Errorf("query %q: got total %d, want 0", text, resp.TotalResults)
		}
		if resp.Results == nil {
			t.Errorf("query %q: results should be an empty slice, not nil", text)
		}
	}
}

func TestRankResultsMergesAcrossKinds(t *testing.T) {
	// Hits arrive grouped per index: all definitions first, then all
	// claims. Ranking must interleave them by score.
	hits := []Result{
		{Kind: ResultDefinition, ID: "def_low", Score: 0.2},
		{Kind: ResultDefinition, ID: "def_high", Score: 0.9},
		{Kind: ResultClaim, ID: "clm_top", Score: 0.95},
		{Kind: ResultClaim, ID: "clm_mid", Score: 0.5},
	}

	got := rankResults(hits, 10, 0)
	wantOrder := []string{"clm_top", "def_high", "clm_mid", "def_low"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d results, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestRankResultsTieBreaksOnUpdatedAt(t *testing.T) {
	hits := []Result{
		{ID: "older", Score: 0.5, UpdatedAt: 100},
		{ID: "newer", Score: 0.5, UpdatedAt: 200},
	}

	got := rankResults(hits, 10, 0)
	if got[0].ID != "newer" || got[1].ID != "older" {
		t.Fatalf("equal scores must order most-recently-updated first, got %s then %s", got[0].ID, got[1].ID)
	}
}

func TestRankResultsPagesAfterMerge(t *testing.T) {
	hits := []Result{
		{Kind: ResultDefinition, ID: "d1", Score: 0.9},
		{Kind: ResultDefinition, ID: "d2", Score: 0.3},
		{Kind: ResultClaim, ID: "c1", Score: 0.7},
		{Kind: ResultClaim, ID: "c2", Score: 0.5},
	}

	page := rankResults(hits, 2, 2)
	if len(page) != 2 || page[0].ID != "c2" || page[1].ID != "d2" {
		t.Fatalf("offset must apply to the merged ranking, got %+v", page)
	}

	if got := rankResults(hits, 2, 10); got != nil {
		t.Fatalf("offset past the end must return nothing, got %+v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 120); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	long := make([]rune, 200)
	for i := range long {
		long[i] = 'a'
	}
	if got := truncate(string(long), 120); len([]rune(got)) != 120 {
		t.Errorf("truncate long: got %d runes, want 120", len([]rune(got)))
	}
}
