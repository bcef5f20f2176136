package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dialectic/internal/store"
)

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON response: %v (%s)", err, rec.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestService(&fakeStore{}).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payload := decodeJSON(t, rec); payload["status"] != "ok" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestUnknownRouteReturnsErrorEnvelope(t *testing.T) {
	handler := newTestService(&fakeStore{}).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/widgets", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	payload := decodeJSON(t, rec)
	if payload["code"] != "NOT_FOUND" || payload["error"] == "" {
		t.Fatalf("unexpected envelope: %v", payload)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	handler := newTestService(&fakeStore{}).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/investigations", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if payload := decodeJSON(t, rec); payload["code"] != "BAD_REQUEST" {
		t.Fatalf("unexpected envelope: %v", payload)
	}
}

func TestMissingInvestigationIs404(t *testing.T) {
	handler := newTestService(&fakeStore{}).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/investigations/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if payload := decodeJSON(t, rec); payload["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected envelope: %v", payload)
	}
}

func TestReorderBadDirectionIs422(t *testing.T) {
	handler := newTestService(&fakeStore{}).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/claims/clm_1/reorder", `{"direction":"left"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if payload := decodeJSON(t, rec); payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected envelope: %v", payload)
	}
}

func TestReorderBoundaryEnvelopeCarriesPositions(t *testing.T) {
	fs := &fakeStore{
		getClaimFn: func(context.Context, string) (store.Claim, error) {
			return store.Claim{ID: "clm_1", InvestigationID: "inv_1"}, nil
		},
		moveClaimFn: func(context.Context, string, string) (int, error) {
			return 0, store.ErrAtBoundary
		},
		siblingPositionsFn: func(context.Context, string, string) ([][2]string, error) {
			return [][2]string{{"clm_1", "0"}}, nil
		},
	}
	handler := newTestService(fs).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/claims/clm_1/reorder", `{"direction":"up"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	payload := decodeJSON(t, rec)
	if payload["code"] != "INVALID_OPERATION" {
		t.Fatalf("unexpected envelope: %v", payload)
	}
	details, ok := payload["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details, got %v", payload)
	}
	if _, ok := details["positions"]; !ok {
		t.Fatalf("expected positions in details, got %v", details)
	}
}

func TestShortSearchQueryReturnsEmptySet(t *testing.T) {
	s := newTestService(&fakeStore{})
	s.search = &fakeSearch{}
	handler := s.Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/search?q=a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeJSON(t, rec)
	results, ok := payload["results"].([]any)
	if !ok || len(results) != 0 {
		t.Fatalf("expected empty results array, got %v", payload["results"])
	}
}

func TestOptionsPreflight(t *testing.T) {
	handler := newTestService(&fakeStore{}).Handler()

	rec := doRequest(t, handler, http.MethodOptions, "/api/investigations", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS headers on preflight")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}
