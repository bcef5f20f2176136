package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"dialectic/internal/config"
	"dialectic/internal/export"
	"dialectic/internal/history"
	"dialectic/internal/kb"
	"dialectic/internal/links"
	"dialectic/internal/search"
	"dialectic/internal/slug"
	"dialectic/internal/store"
	"dialectic/internal/util"

	"golang.org/x/crypto/bcrypt"
)

var investigationStatuses = map[string]struct{}{
	"draft":     {},
	"published": {},
	"archived":  {},
}

type CreateInvestigationInput struct {
	Title        string `json:"title"`
	OverviewHTML string `json:"overview_html"`
	Status       string `json:"status"`
	Slug         string `json:"slug"`
}

type UpdateInvestigationInput struct {
	Title        *string `json:"title"`
	OverviewHTML *string `json:"overview_html"`
	Status       *string `json:"status"`
}

type CreateDefinitionInput struct {
	Term           string   `json:"term"`
	DefinitionHTML string   `json:"definition_html"`
	SeeAlso        []string `json:"see_also"`
	Slug           string   `json:"slug"`
}

type UpdateDefinitionInput struct {
	Term           *string   `json:"term"`
	DefinitionHTML *string   `json:"definition_html"`
	SeeAlso        *[]string `json:"see_also"`
}

type ClaimInput struct {
	ClaimText string `json:"claim_text"`
}

type CounterargumentInput struct {
	CounterText  *string `json:"counter_text"`
	RebuttalText *string `json:"rebuttal_text"`
}

type EvidenceInput struct {
	SourceTitle  *string `json:"source_title"`
	SourceType   *string `json:"source_type"`
	SourceURL    *string `json:"source_url"`
	KeyQuote     *string `json:"key_quote"`
	KeyPoint     *string `json:"key_point"`
	KBResourceID *string `json:"kb_resource_id"`
}

type ShareLinkInput struct {
	Password      string `json:"password"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type SearchParams struct {
	Query             string
	InvestigationSlug []string
	Kinds             []string
	Limit             int
	Offset            int
}

type dataStore interface {
	Ping(ctx context.Context) error

	ListInvestigations(ctx context.Context) ([]store.InvestigationSummary, error)
	GetInvestigationBySlug(ctx context.Context, slug string) (store.Investigation, error)
	GetInvestigation(ctx context.Context, investigationID string) (store.Investigation, error)
	InsertInvestigation(ctx context.Context, item store.Investigation, baseSlug string) (store.Investigation, error)
	UpdateInvestigation(ctx context.Context, investigationID, title, overviewHTML, status string) (store.Investigation, error)
	DeleteInvestigation(ctx context.Context, investigationID string) error

	ListDefinitions(ctx context.Context, investigationID string) ([]store.Definition, error)
	GetDefinitionBySlug(ctx context.Context, investigationID, defSlug string) (store.Definition, error)
	InsertDefinition(ctx context.Context, item store.Definition, baseSlug string) (store.Definition, error)
	UpdateDefinition(ctx context.Context, definitionID, term, definitionHTML string, seeAlso []string) (store.Definition, error)
	DeleteDefinition(ctx context.Context, investigationID, definitionID string) error

	ListClaims(ctx context.Context, investigationID string) ([]store.Claim, error)
	GetClaim(ctx context.Context, claimID string) (store.Claim, error)
	InsertClaim(ctx context.Context, item store.Claim) (store.Claim, error)
	UpdateClaimText(ctx context.Context, claimID, claimText string) (store.Claim, error)
	MoveClaim(ctx context.Context, claimID, direction string) (int, error)
	DeleteClaim(ctx context.Context, claimID string) error

	ListCounterarguments(ctx context.Context, claimID string) ([]store.Counterargument, error)
	GetCounterargument(ctx context.Context, claimID, counterargumentID string) (store.Counterargument, error)
	InsertCounterargument(ctx context.Context, item store.Counterargument) (store.Counterargument, error)
	UpdateCounterargument(ctx context.Context, claimID, counterargumentID, counterText, rebuttalText string) (store.Counterargument, error)
	MoveCounterargument(ctx context.Context, counterargumentID, direction string) (int, error)
	DeleteCounterargument(ctx context.Context, counterargumentID string) error

	ListEvidence(ctx context.Context, claimID string) ([]store.Evidence, error)
	GetEvidence(ctx context.Context, evidenceID string) (store.Evidence, error)
	InsertEvidence(ctx context.Context, item store.Evidence) (store.Evidence, error)
	UpdateEvidence(ctx context.Context, item store.Evidence) (store.Evidence, error)
	SetEvidenceAttachment(ctx context.Context, evidenceID, attachmentKey string) error
	DeleteEvidence(ctx context.Context, evidenceID string) error
	AttachmentKeysForInvestigation(ctx context.Context, investigationID string) ([]string, error)
	AttachmentKeysForClaim(ctx context.Context, claimID string) ([]string, error)

	InsertShareLink(ctx context.Context, link store.ShareLink) (store.ShareLink, error)
	GetShareLinkByToken(ctx context.Context, token string) (store.ShareLink, error)
	TouchShareLink(ctx context.Context, linkID string) error
	RevokeShareLink(ctx context.Context, investigationID, linkID string) (bool, error)
	ListShareLinks(ctx context.Context, investigationID string) ([]store.ShareLink, error)

	ResolveSlug(ctx context.Context, scope, slugValue string) (store.SlugEntry, error)
	LiveSlugCount(ctx context.Context, scope string) (int, error)
	SiblingPositions(ctx context.Context, table, parentID string) ([][2]string, error)
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexDefinition(d search.DefinitionRecord)
	IndexClaim(c search.ClaimRecord)
	DeleteDefinition(id string)
	DeleteClaim(id string)
	ReindexAllFromPG(ctx context.Context)
}

type historyService interface {
	EnsureRepo(investigationID string, initial history.Snapshot, author string) error
	CommitSnapshot(investigationID string, snap history.Snapshot, author, message string) (store.CommitInfo, error)
	History(investigationID string, limit int) ([]store.CommitInfo, error)
	GetSnapshotByHash(investigationID, hash string) (history.Snapshot, error)
	Remove(investigationID string) error
}

type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (int64, string, error)
	Remove(ctx context.Context, key string) error
	RemoveAll(ctx context.Context, keys []string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Service struct {
	cfg     config.Config
	store   dataStore
	search  searchIndex
	links   *links.Resolver
	history historyService
	export  exporter
	blob    blobStore
	kb      kb.Lookup
}

// Dependencies carries the optional collaborators of the service.
// Nil fields disable the corresponding feature.
type Dependencies struct {
	Search  *search.Service
	History *history.Service
	Export  *export.Service
	Blob    blobStore
	KB      kb.Lookup
}

func New(cfg config.Config, pg *store.PostgresStore, deps Dependencies) *Service {
	s := &Service{
		cfg:   cfg,
		store: pg,
	}
	s.links = links.NewResolver(&storeLookup{store: pg})
	if deps.Search != nil {
		s.search = deps.Search
	}
	if deps.History != nil {
		s.history = deps.History
	}
	if deps.Export != nil {
		s.export = deps.Export
	}
	if deps.Blob != nil {
		s.blob = deps.Blob
	}
	if deps.KB != nil {
		s.kb = deps.KB
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap pushes the current store contents into the search engine so
// a fresh Meilisearch instance catches up.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
}

// storeLookup adapts the store to the link resolver's Lookup.
type storeLookup struct {
	store dataStore
}

func (l *storeLookup) ResolveDefinitionRef(ctx context.Context, investigationID, defSlug string) (links.Resolution, error) {
	entry, err := l.store.ResolveSlug(ctx, investigationID, defSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return links.Resolution{}, nil
	}
	if err != nil {
		return links.Resolution{}, fmt.Errorf("resolve definition slug: %w", err)
	}
	if entry.ReleasedAt != nil {
		return links.Resolution{Deleted: true}, nil
	}
	def, err := l.store.GetDefinitionBySlug(ctx, investigationID, defSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return links.Resolution{Deleted: true}, nil
	}
	if err != nil {
		return links.Resolution{}, fmt.Errorf("load definition: %w", err)
	}
	return links.Resolution{Found: true, Label: def.Term}, nil
}

func (l *storeLookup) ResolveClaimRef(ctx context.Context, investigationID, claimID string) (links.Resolution, error) {
	claim, err := l.store.GetClaim(ctx, claimID)
	if errors.Is(err, sql.ErrNoRows) {
		return links.Resolution{}, nil
	}
	if err != nil {
		return links.Resolution{}, fmt.Errorf("load claim: %w", err)
	}
	if claim.InvestigationID != investigationID {
		return links.Resolution{}, nil
	}
	return links.Resolution{Found: true, Label: excerptText(claim.ClaimText, 120)}, nil
}

// slugAvailable rejects an explicitly requested slug that is already
// reserved in scope. Released reservations still conflict: a slug is
// never handed to a second entity. Derived slugs skip this check and
// get suffixed instead.
func (s *Service) slugAvailable(ctx context.Context, scope, candidate string) error {
	_, err := s.store.ResolveSlug(ctx, scope, candidate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check slug availability: %w", err)
	}
	return domainError(http.StatusConflict, "CONFLICT", "slug is already in use", map[string]any{"field": "slug"})
}

// annotateLinks validates body references best-effort: a store failure
// during annotation degrades to an empty link list rather than failing
// the surrounding read or write.
func (s *Service) annotateLinks(ctx context.Context, investigationID, body string) []links.Link {
	annotated, err := s.links.Annotate(ctx, investigationID, body)
	if err != nil {
		log.Printf("links: annotate investigation %s: %v", investigationID, err)
		return []links.Link{}
	}
	return annotated
}

// --- Investigations ---

func (s *Service) ListInvestigations(ctx context.Context) (map[string]any, error) {
	items, err := s.store.ListInvestigations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}

	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{
			"id":               item.ID,
			"slug":             item.Slug,
			"title":            item.Title,
			"status":           item.Status,
			"definition_count": item.DefinitionCount,
			"claim_count":      item.ClaimCount,
			"updated_at":       item.UpdatedAt,
		})
	}
	return map[string]any{"investigations": payload}, nil
}

func (s *Service) CreateInvestigation(ctx context.Context, input CreateInvestigationInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("title", "title is required")
	}
	status := input.Status
	if status == "" {
		status = "draft"
	}
	if _, ok := investigationStatuses[status]; !ok {
		return nil, validationError("status", "status must be one of draft, published, archived")
	}

	base := slug.Make(title)
	if override := strings.TrimSpace(input.Slug); override != "" {
		if !slug.Valid(override) {
			return nil, validationError("slug", "slug must be lowercase letters, digits, and hyphens")
		}
		if err := s.slugAvailable(ctx, store.ScopeGlobal, override); err != nil {
			return nil, err
		}
		base = override
	}

	item := store.Investigation{
		ID:           util.NewID("inv"),
		Title:        title,
		OverviewHTML: input.OverviewHTML,
		Status:       status,
	}
	created, err := s.store.InsertInvestigation(ctx, item, base)
	if err != nil {
		return nil, fmt.Errorf("insert investigation: %w", err)
	}

	if s.history != nil {
		if err := s.history.EnsureRepo(created.ID, snapshotOf(created), "dialectic"); err != nil {
			log.Printf("history: init repo for %s: %v", created.ID, err)
		}
	}

	annotated := s.annotateLinks(ctx, created.ID, created.OverviewHTML)
	payload := investigationPayload(created, annotated)
	payload["unresolved_links"] = links.Unresolved(annotated)
	return payload, nil
}

func (s *Service) GetInvestigation(ctx context.Context, invSlug string) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	annotated := s.annotateLinks(ctx, inv.ID, inv.OverviewHTML)
	return investigationPayload(inv, annotated), nil
}

func (s *Service) UpdateInvestigation(ctx context.Context, invSlug string, input UpdateInvestigationInput) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}

	title := inv.Title
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validationError("title", "title is required")
		}
	}
	overview := inv.OverviewHTML
	if input.OverviewHTML != nil {
		overview = *input.OverviewHTML
	}
	status := inv.Status
	if input.Status != nil {
		status = *input.Status
		if _, ok := investigationStatuses[status]; !ok {
			return nil, validationError("status", "status must be one of draft, published, archived")
		}
	}

	updated, err := s.store.UpdateInvestigation(ctx, inv.ID, title, overview, status)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if _, err := s.history.CommitSnapshot(updated.ID, snapshotOf(updated), "dialectic", "Update overview"); err != nil {
			log.Printf("history: commit snapshot for %s: %v", updated.ID, err)
		}
	}

	annotated := s.annotateLinks(ctx, updated.ID, updated.OverviewHTML)
	payload := investigationPayload(updated, annotated)
	payload["unresolved_links"] = links.Unresolved(annotated)
	return payload, nil
}

func (s *Service) DeleteInvestigation(ctx context.Context, invSlug string) error {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return err
	}

	// Gather search documents and attachment keys before the cascade
	// removes the rows they came from.
	definitions, err := s.store.ListDefinitions(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("list definitions for delete: %w", err)
	}
	claims, err := s.store.ListClaims(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("list claims for delete: %w", err)
	}
	attachmentKeys, err := s.store.AttachmentKeysForInvestigation(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("list attachments for delete: %w", err)
	}

	if err := s.store.DeleteInvestigation(ctx, inv.ID); err != nil {
		return err
	}

	if s.search != nil {
		for _, d := range definitions {
			s.search.DeleteDefinition(d.ID)
		}
		for _, c := range claims {
			s.search.DeleteClaim(c.ID)
		}
	}
	if s.blob != nil && len(attachmentKeys) > 0 {
		if err := s.blob.RemoveAll(ctx, attachmentKeys); err != nil {
			log.Printf("blob: remove attachments for %s: %v", inv.ID, err)
		}
	}
	if s.history != nil {
		if err := s.history.Remove(inv.ID); err != nil {
			log.Printf("history: remove repo for %s: %v", inv.ID, err)
		}
	}
	return nil
}

// --- Definitions ---

func (s *Service) ListDefinitions(ctx context.Context, invSlug string) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	definitions, err := s.store.ListDefinitions(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}

	payload := make([]map[string]any, 0, len(definitions))
	for _, d := range definitions {
		seeAlso, err := s.resolveSeeAlso(ctx, inv.ID, d.SeeAlso)
		if err != nil {
			return nil, err
		}
		payload = append(payload, definitionPayload(d, seeAlso, nil))
	}
	return map[string]any{"definitions": payload}, nil
}

func (s *Service) CreateDefinition(ctx context.Context, invSlug string, input CreateDefinitionInput) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}

	term := strings.TrimSpace(input.Term)
	if term == "" {
		return nil, validationError("term", "term is required")
	}

	base := slug.Make(term)
	if override := strings.TrimSpace(input.Slug); override != "" {
		if !slug.Valid(override) {
			return nil, validationError("slug", "slug must be lowercase letters, digits, and hyphens")
		}
		if err := s.slugAvailable(ctx, inv.ID, override); err != nil {
			return nil, err
		}
		base = override
	}

	item := store.Definition{
		ID:              util.NewID("def"),
		InvestigationID: inv.ID,
		Term:            term,
		DefinitionHTML:  input.DefinitionHTML,
		SeeAlso:         input.SeeAlso,
	}
	created, err := s.store.InsertDefinition(ctx, item, base)
	if err != nil {
		return nil, fmt.Errorf("insert definition: %w", err)
	}

	if s.search != nil {
		s.search.IndexDefinition(definitionRecord(inv, created))
	}

	annotated := s.annotateLinks(ctx, inv.ID, created.DefinitionHTML)
	seeAlso, err := s.resolveSeeAlso(ctx, inv.ID, created.SeeAlso)
	if err != nil {
		return nil, err
	}
	payload := definitionPayload(created, seeAlso, annotated)
	payload["unresolved_links"] = links.Unresolved(annotated)
	return payload, nil
}

func (s *Service) GetDefinition(ctx context.Context, invSlug, defSlug string) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	def, err := s.store.GetDefinitionBySlug(ctx, inv.ID, defSlug)
	if err != nil {
		return nil, err
	}
	annotated := s.annotateLinks(ctx, inv.ID, def.DefinitionHTML)
	seeAlso, err := s.resolveSeeAlso(ctx, inv.ID, def.SeeAlso)
	if err != nil {
		return nil, err
	}
	return definitionPayload(def, seeAlso, annotated), nil
}

// UpdateDefinition merges partial input. Renaming the term never
// changes the slug: inline references stay stable.
func (s *Service) UpdateDefinition(ctx context.Context, invSlug, defSlug string, input UpdateDefinitionInput) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	def, err := s.store.GetDefinitionBySlug(ctx, inv.ID, defSlug)
	if err != nil {
		return nil, err
	}

	term := def.Term
	if input.Term != nil {
		term = strings.TrimSpace(*input.Term)
		if term == "" {
			return nil, validationError("term", "term is required")
		}
	}
	body := def.DefinitionHTML
	if input.DefinitionHTML != nil {
		body = *input.DefinitionHTML
	}
	seeAlsoRefs := def.SeeAlso
	if input.SeeAlso != nil {
		seeAlsoRefs = *input.SeeAlso
	}

	updated, err := s.store.UpdateDefinition(ctx, def.ID, term, body, seeAlsoRefs)
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexDefinition(definitionRecord(inv, updated))
	}

	annotated := s.annotateLinks(ctx, inv.ID, updated.DefinitionHTML)
	seeAlso, err := s.resolveSeeAlso(ctx, inv.ID, updated.SeeAlso)
	if err != nil {
		return nil, err
	}
	payload := definitionPayload(updated, seeAlso, annotated)
	payload["unresolved_links"] = links.Unresolved(annotated)
	return payload, nil
}

func (s *Service) DeleteDefinition(ctx context.Context, invSlug, defSlug string) error {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return err
	}
	def, err := s.store.GetDefinitionBySlug(ctx, inv.ID, defSlug)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDefinition(ctx, inv.ID, def.ID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteDefinition(def.ID)
	}
	return nil
}

// resolveSeeAlso annotates a definition's see-also slugs against the
// live slug index. Dangling entries stay in the list with resolved=false.
func (s *Service) resolveSeeAlso(ctx context.Context, investigationID string, refs []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		entry := map[string]any{"slug": ref, "resolved": false}
		slugEntry, err := s.store.ResolveSlug(ctx, investigationID, ref)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			entry["reason"] = links.ReasonUnknown
		case err != nil:
			return nil, fmt.Errorf("resolve see-also %q: %w", ref, err)
		case slugEntry.ReleasedAt != nil:
			entry["reason"] = links.ReasonDeleted
		default:
			entry["resolved"] = true
		}
		out = append(out, entry)
	}
	return out, nil
}

// --- Claims ---

func (s *Service) ListClaims(ctx context.Context, invSlug string) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	claims, err := s.store.ListClaims(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	payload := make([]map[string]any, 0, len(claims))
	for _, c := range claims {
		payload = append(payload, claimPayload(c, nil))
	}
	return map[string]any{"claims": payload}, nil
}

func (s *Service) CreateClaim(ctx context.Context, invSlug string, input ClaimInput) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.ClaimText)
	if text == "" {
		return nil, validationError("claim_text", "claim_text is required")
	}

	item := store.Claim{
		ID:              util.NewID("clm"),
		InvestigationID: inv.ID,
		ClaimText:       input.ClaimText,
	}
	created, err := s.store.InsertClaim(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("insert claim: %w", err)
	}

	if s.search != nil {
		s.search.IndexClaim(claimRecord(inv, created))
	}

	annotated := s.annotateLinks(ctx, inv.ID, created.ClaimText)
	payload := claimPayload(created, annotated)
	payload["unresolved_links"] = links.Unresolved(annotated)
	return payload, nil
}

func (s *Service) GetClaim(ctx context.Context, claimID string) (map[string]any, error) {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	annotated := s.annotateLinks(ctx, claim.InvestigationID, claim.ClaimText)
	return claimPayload(claim, annotated), nil
}

func (s *Service) UpdateClaim(ctx context.Context, claimID string, input ClaimInput) (map[string]any, error) {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.ClaimText)
	if text == "" {
		return nil, validationError("claim_text", "claim_text is required")
	}

	updated, err := s.store.UpdateClaimText(ctx, claim.ID, input.ClaimText)
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		inv, err := s.store.GetInvestigation(ctx, updated.InvestigationID)
		if err == nil {
			s.search.IndexClaim(claimRecord(inv, updated))
		}
	}

	annotated := s.annotateLinks(ctx, updated.InvestigationID, updated.ClaimText)
	payload := claimPayload(updated, annotated)
	payload["unresolved_links"] = links.Unresolved(annotated)
	return payload, nil
}

func (s *Service) DeleteClaim(ctx context.Context, claimID string) error {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	attachmentKeys, err := s.store.AttachmentKeysForClaim(ctx, claim.ID)
	if err != nil {
		return fmt.Errorf("list attachments for delete: %w", err)
	}

	if err := s.store.DeleteClaim(ctx, claim.ID); err != nil {
		return err
	}

	if s.search != nil {
		s.search.DeleteClaim(claim.ID)
	}
	if s.blob != nil && len(attachmentKeys) > 0 {
		if err := s.blob.RemoveAll(ctx, attachmentKeys); err != nil {
			log.Printf("blob: remove attachments for claim %s: %v", claim.ID, err)
		}
	}
	return nil
}

func (s *Service) ReorderClaim(ctx context.Context, claimID, direction string) (map[string]any, error) {
	if !store.ValidDirection(direction) {
		return nil, validationError("direction", "direction must be 'up' or 'down'")
	}
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	position, err := s.store.MoveClaim(ctx, claim.ID, direction)
	if errors.Is(err, store.ErrAtBoundary) {
		return nil, s.boundaryError(ctx, "claims", claim.InvestigationID)
	}
	if err != nil {
		return nil, fmt.Errorf("move claim: %w", err)
	}
	return map[string]any{"id": claim.ID, "position": position}, nil
}

// boundaryError builds the INVALID_OPERATION response for a move at a
// sequence boundary, with the current sibling order so the caller can
// resync.
func (s *Service) boundaryError(ctx context.Context, table, parentID string) error {
	positions, err := s.store.SiblingPositions(ctx, table, parentID)
	if err != nil {
		log.Printf("ordering: sibling positions for %s: %v", parentID, err)
	}
	current := make([]map[string]any, 0, len(positions))
	for _, p := range positions {
		current = append(current, map[string]any{"id": p[0], "position": p[1]})
	}
	return domainError(http.StatusConflict, "INVALID_OPERATION", "entity is already at the sequence boundary", map[string]any{
		"positions": current,
	})
}

// --- Counterarguments ---

func (s *Service) ListCounterarguments(ctx context.Context, claimID string) (map[string]any, error) {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListCounterarguments(ctx, claim.ID)
	if err != nil {
		return nil, fmt.Errorf("list counterarguments: %w", err)
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, counterargumentPayload(item))
	}
	return map[string]any{"counterarguments": payload}, nil
}

func (s *Service) CreateCounterargument(ctx context.Context, claimID string, input CounterargumentInput) (map[string]any, error) {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	counterText := ""
	if input.CounterText != nil {
		counterText = strings.TrimSpace(*input.CounterText)
	}
	if counterText == "" {
		return nil, validationError("counter_text", "counter_text is required")
	}
	rebuttal := ""
	if input.RebuttalText != nil {
		rebuttal = *input.RebuttalText
	}

	item := store.Counterargument{
		ID:           util.NewID("ca"),
		ClaimID:      claim.ID,
		CounterText:  counterText,
		RebuttalText: rebuttal,
	}
	created, err := s.store.InsertCounterargument(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("insert counterargument: %w", err)
	}
	return counterargumentPayload(created), nil
}

func (s *Service) UpdateCounterargument(ctx context.Context, claimID, counterargumentID string, input CounterargumentInput) (map[string]any, error) {
	existing, err := s.store.GetCounterargument(ctx, claimID, counterargumentID)
	if err != nil {
		return nil, err
	}

	counterText := existing.CounterText
	if input.CounterText != nil {
		counterText = strings.TrimSpace(*input.CounterText)
		if counterText == "" {
			return nil, validationError("counter_text", "counter_text is required")
		}
	}
	rebuttal := existing.RebuttalText
	if input.RebuttalText != nil {
		rebuttal = *input.RebuttalText
	}

	updated, err := s.store.UpdateCounterargument(ctx, claimID, counterargumentID, counterText, rebuttal)
	if err != nil {
		return nil, err
	}
	return counterargumentPayload(updated), nil
}

func (s *Service) DeleteCounterargument(ctx context.Context, claimID, counterargumentID string) error {
	if _, err := s.store.GetCounterargument(ctx, claimID, counterargumentID); err != nil {
		return err
	}
	return s.store.DeleteCounterargument(ctx, counterargumentID)
}

func (s *Service) ReorderCounterargument(ctx context.Context, claimID, counterargumentID, direction string) (map[string]any, error) {
	if !store.ValidDirection(direction) {
		return nil, validationError("direction", "direction must be 'up' or 'down'")
	}
	if _, err := s.store.GetCounterargument(ctx, claimID, counterargumentID); err != nil {
		return nil, err
	}

	position, err := s.store.MoveCounterargument(ctx, counterargumentID, direction)
	if errors.Is(err, store.ErrAtBoundary) {
		return nil, s.boundaryError(ctx, "counterarguments", claimID)
	}
	if err != nil {
		return nil, fmt.Errorf("move counterargument: %w", err)
	}
	return map[string]any{"id": counterargumentID, "position": position}, nil
}

// --- Evidence ---

func (s *Service) ListEvidence(ctx context.Context, claimID string) (map[string]any, error) {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListEvidence(ctx, claim.ID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, evidencePayload(item, nil))
	}
	return map[string]any{"evidence": payload}, nil
}

func (s *Service) CreateEvidence(ctx context.Context, claimID string, input EvidenceInput) (map[string]any, error) {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	title := ""
	if input.SourceTitle != nil {
		title = strings.TrimSpace(*input.SourceTitle)
	}
	if title == "" {
		return nil, validationError("source_title", "source_title is required")
	}

	item := store.Evidence{
		ID:          util.NewID("ev"),
		ClaimID:     claim.ID,
		SourceTitle: title,
		SourceType:  normalizeSourceType(stringOr(input.SourceType, "")),
		SourceURL:   stringOr(input.SourceURL, ""),
		KeyQuote:    stringOr(input.KeyQuote, ""),
		KeyPoint:    stringOr(input.KeyPoint, ""),
	}
	if input.KBResourceID != nil {
		item.KBResourceID = strings.TrimSpace(*input.KBResourceID)
	}

	kbResource := s.lookupKBResource(ctx, item.KBResourceID)

	created, err := s.store.InsertEvidence(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("insert evidence: %w", err)
	}
	return evidencePayload(created, kbResource), nil
}

func (s *Service) UpdateEvidence(ctx context.Context, evidenceID string, input EvidenceInput) (map[string]any, error) {
	existing, err := s.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	if input.SourceTitle != nil {
		trimmed := strings.TrimSpace(*input.SourceTitle)
		if trimmed == "" {
			return nil, validationError("source_title", "source_title is required")
		}
		existing.SourceTitle = trimmed
	}
	if input.SourceType != nil {
		existing.SourceType = normalizeSourceType(*input.SourceType)
	}
	if input.SourceURL != nil {
		existing.SourceURL = *input.SourceURL
	}
	if input.KeyQuote != nil {
		existing.KeyQuote = *input.KeyQuote
	}
	if input.KeyPoint != nil {
		existing.KeyPoint = *input.KeyPoint
	}
	if input.KBResourceID != nil {
		existing.KBResourceID = strings.TrimSpace(*input.KBResourceID)
	}

	kbResource := s.lookupKBResource(ctx, existing.KBResourceID)

	updated, err := s.store.UpdateEvidence(ctx, existing)
	if err != nil {
		return nil, err
	}
	return evidencePayload(updated, kbResource), nil
}

func (s *Service) DeleteEvidence(ctx context.Context, evidenceID string) error {
	existing, err := s.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEvidence(ctx, evidenceID); err != nil {
		return err
	}
	if s.blob != nil && existing.AttachmentKey != "" {
		if err := s.blob.Remove(ctx, existing.AttachmentKey); err != nil {
			log.Printf("blob: remove attachment %s: %v", existing.AttachmentKey, err)
		}
	}
	return nil
}

func (s *Service) UploadEvidenceAttachment(ctx context.Context, evidenceID string, r io.Reader, size int64, contentType string) (map[string]any, error) {
	if s.blob == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	existing, err := s.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	key := "evidence/" + existing.ID
	if err := s.blob.Put(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	if err := s.store.SetEvidenceAttachment(ctx, existing.ID, key); err != nil {
		return nil, err
	}
	return map[string]any{"id": existing.ID, "attachment_key": key}, nil
}

func (s *Service) OpenEvidenceAttachment(ctx context.Context, evidenceID string) (io.ReadCloser, int64, string, error) {
	if s.blob == nil {
		return nil, 0, "", domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	existing, err := s.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, 0, "", err
	}
	if existing.AttachmentKey == "" {
		return nil, 0, "", domainError(http.StatusNotFound, "NOT_FOUND", "Evidence has no attachment", nil)
	}
	size, contentType, err := s.blob.Stat(ctx, existing.AttachmentKey)
	if err != nil {
		return nil, 0, "", fmt.Errorf("stat attachment: %w", err)
	}
	reader, err := s.blob.Get(ctx, existing.AttachmentKey)
	if err != nil {
		return nil, 0, "", fmt.Errorf("open attachment: %w", err)
	}
	return reader, size, contentType, nil
}

const attachmentURLTTL = 15 * time.Minute

// PresignEvidenceAttachment hands out a time-limited direct download
// URL so large attachments bypass the API process.
func (s *Service) PresignEvidenceAttachment(ctx context.Context, evidenceID string) (map[string]any, error) {
	if s.blob == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	existing, err := s.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if existing.AttachmentKey == "" {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Evidence has no attachment", nil)
	}
	url, err := s.blob.PresignedGetURL(ctx, existing.AttachmentKey, attachmentURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign attachment: %w", err)
	}
	return map[string]any{
		"id":                 existing.ID,
		"url":                url,
		"expires_in_seconds": int(attachmentURLTTL.Seconds()),
	}, nil
}

// lookupKBResource resolves an evidence back-reference best-effort. A
// lookup failure degrades to "unverified" rather than blocking the
// write.
func (s *Service) lookupKBResource(ctx context.Context, resourceID string) map[string]any {
	if resourceID == "" || s.kb == nil {
		return nil
	}
	res, err := s.kb.Resolve(ctx, resourceID)
	if err != nil {
		log.Printf("kb: resolve %s: %v", resourceID, err)
		return map[string]any{"id": resourceID, "status": kb.StatusUnverified}
	}
	return map[string]any{"id": res.ID, "title": res.Title, "status": res.Status}
}

func normalizeSourceType(raw string) string {
	lowered := strings.TrimSpace(strings.ToLower(raw))
	if lowered == "" {
		return "other"
	}
	if _, ok := store.SourceTypes[lowered]; ok {
		return lowered
	}
	return strings.TrimSpace(raw)
}

// --- Search ---

func (s *Service) Search(ctx context.Context, params SearchParams) (map[string]any, error) {
	if s.search == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}

	kinds := make([]search.ResultKind, 0, len(params.Kinds))
	for _, raw := range params.Kinds {
		switch search.ResultKind(raw) {
		case search.ResultDefinition, search.ResultClaim:
			kinds = append(kinds, search.ResultKind(raw))
		default:
			return nil, validationError("kinds", "kinds must be definition or claim")
		}
	}

	resp := s.search.Search(ctx, search.Query{
		Text:               strings.TrimSpace(params.Query),
		Kinds:              kinds,
		InvestigationSlugs: params.InvestigationSlug,
		Limit:              params.Limit,
		Offset:             params.Offset,
	})

	results := make([]map[string]any, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]any{
			"kind":               r.Kind,
			"id":                 r.ID,
			"title":              r.Title,
			"excerpt":            r.Excerpt,
			"investigation_id":   r.InvestigationID,
			"investigation_slug": r.InvestigationSlug,
			"score":              r.Score,
		})
	}
	return map[string]any{
		"results":        results,
		"total_results":  resp.TotalResults,
		"query":          resp.Query,
		"search_time_ms": resp.SearchTimeMS,
	}, nil
}

// --- Share links ---

func (s *Service) CreateShareLink(ctx context.Context, invSlug string, input ShareLinkInput) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	if inv.Status != "published" {
		return nil, domainError(http.StatusConflict, "INVALID_OPERATION", "only published investigations can be shared", map[string]any{"status": inv.Status})
	}

	link := store.ShareLink{
		ID:              util.NewID("shr"),
		Token:           util.NewToken(),
		InvestigationID: inv.ID,
	}
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash share password: %w", err)
		}
		hashed := string(hash)
		link.PasswordHash = &hashed
	}
	if input.ExpiresInDays > 0 {
		expires := time.Now().AddDate(0, 0, input.ExpiresInDays)
		link.ExpiresAt = &expires
	}

	created, err := s.store.InsertShareLink(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("insert share link: %w", err)
	}
	return shareLinkPayload(created), nil
}

func (s *Service) ListShareLinks(ctx context.Context, invSlug string) (map[string]any, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListShareLinks(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, shareLinkPayload(item))
	}
	return map[string]any{"share_links": payload}, nil
}

func (s *Service) RevokeShareLink(ctx context.Context, invSlug, linkID string) error {
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return err
	}
	revoked, err := s.store.RevokeShareLink(ctx, inv.ID, linkID)
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	if !revoked {
		return sql.ErrNoRows
	}
	return nil
}

// GetSharedInvestigation serves the read-only payload behind a share
// token: the investigation, its definitions, and its ordered claims
// with links annotated.
func (s *Service) GetSharedInvestigation(ctx context.Context, token, password string) (map[string]any, error) {
	link, err := s.store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.RevokedAt != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	if link.ExpiresAt != nil && time.Now().After(*link.ExpiresAt) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	if link.PasswordHash != nil {
		if password == "" {
			return nil, domainError(http.StatusUnauthorized, "PASSWORD_REQUIRED", "This share link is password-protected", nil)
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)) != nil {
			return nil, domainError(http.StatusUnauthorized, "INVALID_PASSWORD", "Invalid password", nil)
		}
	}

	inv, err := s.store.GetInvestigation(ctx, link.InvestigationID)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchShareLink(ctx, link.ID); err != nil {
		log.Printf("sharelink: touch %s: %v", link.ID, err)
	}

	definitions, err := s.store.ListDefinitions(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	claims, err := s.store.ListClaims(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	defPayload := make([]map[string]any, 0, len(definitions))
	for _, d := range definitions {
		seeAlso, err := s.resolveSeeAlso(ctx, inv.ID, d.SeeAlso)
		if err != nil {
			return nil, err
		}
		defPayload = append(defPayload, definitionPayload(d, seeAlso, nil))
	}
	claimPayloads := make([]map[string]any, 0, len(claims))
	for _, c := range claims {
		claimPayloads = append(claimPayloads, claimPayload(c, s.annotateLinks(ctx, inv.ID, c.ClaimText)))
	}

	payload := investigationPayload(inv, s.annotateLinks(ctx, inv.ID, inv.OverviewHTML))
	payload["definitions"] = defPayload
	payload["claims"] = claimPayloads
	return payload, nil
}

// --- History ---

func (s *Service) InvestigationHistory(ctx context.Context, invSlug string, limit int) (map[string]any, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "History is not configured", nil)
	}
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.history.History(inv.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	payload := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, map[string]any{
			"hash":       entry.Hash,
			"message":    strings.TrimSpace(entry.Message),
			"author":     entry.Author,
			"created_at": entry.CreatedAt,
		})
	}
	return map[string]any{"history": payload}, nil
}

func (s *Service) InvestigationSnapshot(ctx context.Context, invSlug, hash string) (map[string]any, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "History is not configured", nil)
	}
	inv, err := s.store.GetInvestigationBySlug(ctx, invSlug)
	if err != nil {
		return nil, err
	}
	snap, err := s.history.GetSnapshotByHash(inv.ID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Snapshot not found", nil)
	}
	return map[string]any{
		"slug":          snap.Slug,
		"title":         snap.Title,
		"overview_html": snap.OverviewHTML,
		"status":        snap.Status,
	}, nil
}

// --- Export ---

func (s *Service) ExportInvestigation(ctx context.Context, invSlug, format string) (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	if format == "" {
		format = string(export.FormatHTML)
	}
	switch export.Format(format) {
	case export.FormatHTML, export.FormatPDF, export.FormatDOCX:
	default:
		return nil, validationError("format", "format must be html, pdf, or docx")
	}

	result, err := s.export.Export(ctx, export.Request{
		InvestigationSlug:       invSlug,
		Format:                  export.Format(format),
		IncludeEvidence:         true,
		IncludeCounterarguments: true,
	})
	if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export renderer is not installed", nil)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- Payload builders ---

func investigationPayload(inv store.Investigation, annotated []links.Link) map[string]any {
	payload := map[string]any{
		"id":            inv.ID,
		"slug":          inv.Slug,
		"title":         inv.Title,
		"overview_html": inv.OverviewHTML,
		"status":        inv.Status,
		"created_at":    inv.CreatedAt,
		"updated_at":    inv.UpdatedAt,
	}
	if annotated != nil {
		payload["links"] = annotated
	}
	return payload
}

func definitionPayload(d store.Definition, seeAlso []map[string]any, annotated []links.Link) map[string]any {
	payload := map[string]any{
		"id":               d.ID,
		"investigation_id": d.InvestigationID,
		"slug":             d.Slug,
		"term":             d.Term,
		"definition_html":  d.DefinitionHTML,
		"see_also":         d.SeeAlso,
		"created_at":       d.CreatedAt,
		"updated_at":       d.UpdatedAt,
	}
	if seeAlso != nil {
		payload["see_also_resolved"] = seeAlso
	}
	if annotated != nil {
		payload["links"] = annotated
	}
	return payload
}

func claimPayload(c store.Claim, annotated []links.Link) map[string]any {
	payload := map[string]any{
		"id":                    c.ID,
		"investigation_id":      c.InvestigationID,
		"claim_text":            c.ClaimText,
		"position":              c.Position,
		"evidence_count":        c.EvidenceCount,
		"counterargument_count": c.CounterargumentCount,
		"created_at":            c.CreatedAt,
		"updated_at":            c.UpdatedAt,
	}
	if annotated != nil {
		payload["links"] = annotated
	}
	return payload
}

func counterargumentPayload(item store.Counterargument) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"claim_id":      item.ClaimID,
		"counter_text":  item.CounterText,
		"rebuttal_text": item.RebuttalText,
		"position":      item.Position,
		"created_at":    item.CreatedAt,
		"updated_at":    item.UpdatedAt,
	}
}

func evidencePayload(item store.Evidence, kbResource map[string]any) map[string]any {
	payload := map[string]any{
		"id":             item.ID,
		"claim_id":       item.ClaimID,
		"source_title":   item.SourceTitle,
		"source_type":    item.SourceType,
		"source_url":     item.SourceURL,
		"key_quote":      item.KeyQuote,
		"key_point":      item.KeyPoint,
		"kb_resource_id": item.KBResourceID,
		"has_attachment": item.AttachmentKey != "",
		"created_at":     item.CreatedAt,
		"updated_at":     item.UpdatedAt,
	}
	if kbResource != nil {
		payload["kb_resource"] = kbResource
	}
	return payload
}

func shareLinkPayload(link store.ShareLink) map[string]any {
	return map[string]any{
		"id":               link.ID,
		"token":            link.Token,
		"investigation_id": link.InvestigationID,
		"protected":        link.PasswordHash != nil,
		"expires_at":       link.ExpiresAt,
		"access_count":     link.AccessCount,
		"last_accessed_at": link.LastAccessedAt,
		"created_at":       link.CreatedAt,
		"revoked":          link.RevokedAt != nil,
	}
}

func snapshotOf(inv store.Investigation) history.Snapshot {
	return history.Snapshot{
		Slug:         inv.Slug,
		Title:        inv.Title,
		OverviewHTML: inv.OverviewHTML,
		Status:       inv.Status,
	}
}

func definitionRecord(inv store.Investigation, d store.Definition) search.DefinitionRecord {
	return search.DefinitionRecord{
		ID:                d.ID,
		Term:              d.Term,
		Body:              d.DefinitionHTML,
		InvestigationID:   inv.ID,
		InvestigationSlug: inv.Slug,
		UpdatedAt:         d.UpdatedAt.Unix(),
	}
}

func claimRecord(inv store.Investigation, c store.Claim) search.ClaimRecord {
	return search.ClaimRecord{
		ID:                c.ID,
		Text:              c.ClaimText,
		InvestigationID:   inv.ID,
		InvestigationSlug: inv.Slug,
		Position:          c.Position,
		UpdatedAt:         c.UpdatedAt.Unix(),
	}
}

func excerptText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func stringOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
