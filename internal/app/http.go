package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dialectic/internal/util"
)

// Handler returns the root http.Handler with middleware applied.
func (s *Service) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *Service) handle(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)

	if len(parts) == 2 && parts[0] == "share" && r.Method == http.MethodGet {
		s.handleSharedRead(w, r, parts[1])
		return
	}

	if len(parts) == 0 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	parts = parts[1:]

	switch {
	case len(parts) == 1 && parts[0] == "health":
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case len(parts) == 1 && parts[0] == "ready":
		s.handleReady(w, r)
	case len(parts) == 1 && parts[0] == "search":
		s.handleSearch(w, r)
	case parts[0] == "investigations":
		s.handleInvestigations(w, r, parts[1:])
	case parts[0] == "claims":
		s.handleClaims(w, r, parts[1:])
	case parts[0] == "evidence":
		s.handleEvidence(w, r, parts[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status := http.StatusOK
	if err := s.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"checks": checks})
}

func (s *Service) handleInvestigations(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.ListInvestigations(ctx) })
	case len(parts) == 0 && r.Method == http.MethodPost:
		var input CreateInvestigationInput
		if !decodeBody(w, r, &input) {
			return
		}
		s.respondStatus(w, r, http.StatusCreated, func(ctx context.Context) (any, error) {
			return s.CreateInvestigation(ctx, input)
		})
	case len(parts) == 1:
		s.handleInvestigation(w, r, parts[0])
	case len(parts) >= 2:
		s.handleInvestigationSub(w, r, parts[0], parts[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *Service) handleInvestigation(w http.ResponseWriter, r *http.Request, invSlug string) {
	switch r.Method {
	case http.MethodGet:
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.GetInvestigation(ctx, invSlug) })
	case http.MethodPut:
		var input UpdateInvestigationInput
		if !decodeBody(w, r, &input) {
			return
		}
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.UpdateInvestigation(ctx, invSlug, input) })
	case http.MethodDelete:
		s.respondNoBody(w, r, func(ctx context.Context) error { return s.DeleteInvestigation(ctx, invSlug) })
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *Service) handleInvestigationSub(w http.ResponseWriter, r *http.Request, invSlug string, parts []string) {
	switch parts[0] {
	case "definitions":
		s.handleDefinitions(w, r, invSlug, parts[1:])
	case "claims":
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			s.respond(w, r, func(ctx context.Context) (any, error) { return s.ListClaims(ctx, invSlug) })
		case len(parts) == 1 && r.Method == http.MethodPost:
			var input ClaimInput
			if !decodeBody(w, r, &input) {
				return
			}
			s.respondStatus(w, r, http.StatusCreated, func(ctx context.Context) (any, error) {
				return s.CreateClaim(ctx, invSlug, input)
			})
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
	case "history":
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			s.respond(w, r, func(ctx context.Context) (any, error) {
				return s.InvestigationHistory(ctx, invSlug, limit)
			})
		case len(parts) == 2 && r.Method == http.MethodGet:
			s.respond(w, r, func(ctx context.Context) (any, error) {
				return s.InvestigationSnapshot(ctx, invSlug, parts[1])
			})
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
	case "share-links":
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			s.respond(w, r, func(ctx context.Context) (any, error) { return s.ListShareLinks(ctx, invSlug) })
		case len(parts) == 1 && r.Method == http.MethodPost:
			var input ShareLinkInput
			if !decodeBody(w, r, &input) {
				return
			}
			s.respondStatus(w, r, http.StatusCreated, func(ctx context.Context) (any, error) {
				return s.CreateShareLink(ctx, invSlug, input)
			})
		case len(parts) == 2 && r.Method == http.MethodDelete:
			s.respondNoBody(w, r, func(ctx context.Context) error { return s.RevokeShareLink(ctx, invSlug, parts[1]) })
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
	case "export":
		if len(parts) != 1 || r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		s.handleExport(w, r, invSlug)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *Service) handleDefinitions(w http.ResponseWriter, r *http.Request, invSlug string, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.ListDefinitions(ctx, invSlug) })
	case len(parts) == 0 && r.Method == http.MethodPost:
		var input CreateDefinitionInput
		if !decodeBody(w, r, &input) {
			return
		}
		s.respondStatus(w, r, http.StatusCreated, func(ctx context.Context) (any, error) {
			return s.CreateDefinition(ctx, invSlug, input)
		})
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.GetDefinition(ctx, invSlug, parts[0]) })
	case len(parts) == 1 && r.Method == http.MethodPut:
		var input UpdateDefinitionInput
		if !decodeBody(w, r, &input) {
			return
		}
		s.respond(w, r, func(ctx context.Context) (any, error) {
			return s.UpdateDefinition(ctx, invSlug, parts[0], input)
		})
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondNoBody(w, r, func(ctx context.Context) error { return s.DeleteDefinition(ctx, invSlug, parts[0]) })
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *Service) handleClaims(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	claimID := parts[0]
	rest := parts[1:]

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.GetClaim(ctx, claimID) })
	case len(rest) == 0 && r.Method == http.MethodPut:
		var input ClaimInput
		if !decodeBody(w, r, &input) {
			return
		}
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.UpdateClaim(ctx, claimID, input) })
	case len(rest) == 0 && r.Method == http.MethodDelete:
		s.respondNoBody(w, r, func(ctx context.Context) error { return s.DeleteClaim(ctx, claimID) })
	case len(rest) == 1 && rest[0] == "reorder" && r.Method == http.MethodPost:
		var input struct {
			Direction string `json:"direction"`
		}
		if !decodeBody(w, r, &input) {
			return
		}
		s.respond(w, r, func(ctx context.Context) (any, error) {
			return s.ReorderClaim(ctx, claimID, input.Direction)
		})
	case rest[0] == "counterarguments":
		s.handleCounterarguments(w, r, claimID, rest[1:])
	case rest[0] == "evidence":
		switch {
		case len(rest) == 1 && r.Method == http.MethodGet:
			s.respond(w, r, func(ctx context.Context) (any, error) { return s.ListEvidence(ctx, claimID) })
		case len(rest) == 1 && r.Method == http.MethodPost:
			var input EvidenceInput
			if !decodeBody(w, r, &input) {
				return
			}
			s.respondStatus(w, r, http.StatusCreated, func(ctx context.Context) (any, error) {
				return s.CreateEvidence(ctx, claimID, input)
			})
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *Service) handleCounterarguments(w http.ResponseWriter, r *http.Request, claimID string, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.ListCounterarguments(ctx, claimID) })
	case len(parts) == 0 && r.Method == http.MethodPost:
		var input CounterargumentInput
		if !decodeBody(w, r, &input) {
			return
		}
		s.respondStatus(w, r, http.StatusCreated, func(ctx context.Context) (any, error) {
			return s.CreateCounterargument(ctx, claimID, input)
		})
	case len(parts) == 1 && r.Method == http.MethodPut:
		var input CounterargumentInput
		if !decodeBody(w, r, &input) {
			return
		}
		s.respond(w, r, func(ctx context.Context) (any, error) {
			return s.UpdateCounterargument(ctx, claimID, parts[0], input)
		})
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.respondNoBody(w, r, func(ctx context.Context) error {
			return s.DeleteCounterargument(ctx, claimID, parts[0])
		})
	case len(parts) == 2 && parts[1] == "reorder" && r.Method == http.MethodPost:
		var input struct {
			Direction string `json:"direction"`
		}
		if !decodeBody(w, r, &input) {
			return
		}
		s.respond(w, r, func(ctx context.Context) (any, error) {
			return s.ReorderCounterargument(ctx, claimID, parts[0], input.Direction)
		})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *Service) handleEvidence(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	evidenceID := parts[0]
	rest := parts[1:]

	switch {
	case len(rest) == 0 && r.Method == http.MethodPut:
		var input EvidenceInput
		if !decodeBody(w, r, &input) {
			return
		}
		s.respond(w, r, func(ctx context.Context) (any, error) { return s.UpdateEvidence(ctx, evidenceID, input) })
	case len(rest) == 0 && r.Method == http.MethodDelete:
		s.respondNoBody(w, r, func(ctx context.Context) error { return s.DeleteEvidence(ctx, evidenceID) })
	case len(rest) == 1 && rest[0] == "attachment" && r.Method == http.MethodPost:
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		payload, err := s.UploadEvidenceAttachment(r.Context(), evidenceID, r.Body, r.ContentLength, contentType)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(rest) == 1 && rest[0] == "attachment" && r.Method == http.MethodGet:
		if presign, _ := strconv.ParseBool(r.URL.Query().Get("presign")); presign {
			s.respond(w, r, func(ctx context.Context) (any, error) {
				return s.PresignEvidenceAttachment(ctx, evidenceID)
			})
			return
		}
		reader, size, contentType, err := s.OpenEvidenceAttachment(r.Context(), evidenceID)
		if err != nil {
			mapError(w, err)
			return
		}
		defer reader.Close()
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		if size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		}
		if _, err := io.Copy(w, reader); err != nil {
			log.Printf("attachment: stream %s: %v", evidenceID, err)
		}
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	params := SearchParams{
		Query:             q.Get("q"),
		InvestigationSlug: splitCSV(q.Get("collection_ids")),
		Kinds:             splitCSV(q.Get("kinds")),
		Limit:             limit,
		Offset:            offset,
	}
	s.respond(w, r, func(ctx context.Context) (any, error) { return s.Search(ctx, params) })
}

func (s *Service) handleSharedRead(w http.ResponseWriter, r *http.Request, token string) {
	password := r.Header.Get("X-Share-Password")
	s.respond(w, r, func(ctx context.Context) (any, error) {
		return s.GetSharedInvestigation(ctx, token, password)
	})
}

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request, invSlug string) {
	result, err := s.ExportInvestigation(r.Context(), invSlug, r.URL.Query().Get("format"))
	if err != nil {
		mapError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		log.Printf("export: write response: %v", err)
	}
}

// --- Response plumbing ---

func (s *Service) respond(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (any, error)) {
	s.respondStatus(w, r, http.StatusOK, fn)
}

func (s *Service) respondStatus(w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context) (any, error)) {
	payload, err := fn(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, status, payload)
}

func (s *Service) respondNoBody(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) error) {
	if err := fn(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapError(w http.ResponseWriter, err error) {
	var derr *DomainError
	if errors.As(err, &derr) {
		writeError(w, derr.Status, derr.Code, derr.Message, derr.Details)
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong", nil)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{"code": code, "error": message}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	return true
}

func splitPath(path string) []string {
	parts := []string{}
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// --- Middleware ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (s *Service) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewToken()[:12]
		}
		w.Header().Set("X-Request-ID", requestID)
		s.setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		log.Printf(`{"request_id":%q,"method":%q,"path":%q,"status":%d,"duration_ms":%d}`,
			requestID, r.Method, r.URL.Path, recorder.status, time.Since(start).Milliseconds())
	})
}

func (s *Service) setCORSHeaders(w http.ResponseWriter) {
	origin := s.cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Share-Password")
}
