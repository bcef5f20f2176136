package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"dialectic/internal/config"
	"dialectic/internal/links"
	"dialectic/internal/search"
	"dialectic/internal/store"
)

type fakeStore struct {
	getInvestigationBySlugFn func(context.Context, string) (store.Investigation, error)
	insertInvestigationFn    func(context.Context, store.Investigation, string) (store.Investigation, error)
	updateInvestigationFn    func(context.Context, string, string, string, string) (store.Investigation, error)
	deleteInvestigationFn    func(context.Context, string) error
	listDefinitionsFn        func(context.Context, string) ([]store.Definition, error)
	getDefinitionBySlugFn    func(context.Context, string, string) (store.Definition, error)
	insertDefinitionFn       func(context.Context, store.Definition, string) (store.Definition, error)
	listClaimsFn             func(context.Context, string) ([]store.Claim, error)
	getClaimFn               func(context.Context, string) (store.Claim, error)
	insertClaimFn            func(context.Context, store.Claim) (store.Claim, error)
	moveClaimFn              func(context.Context, string, string) (int, error)
	getCounterargumentFn     func(context.Context, string, string) (store.Counterargument, error)
	moveCounterargumentFn    func(context.Context, string, string) (int, error)
	insertShareLinkFn        func(context.Context, store.ShareLink) (store.ShareLink, error)
	getShareLinkByTokenFn    func(context.Context, string) (store.ShareLink, error)
	resolveSlugFn            func(context.Context, string, string) (store.SlugEntry, error)
	siblingPositionsFn       func(context.Context, string, string) ([][2]string, error)
	attachmentKeysFn         func(context.Context, string) ([]string, error)
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) ListInvestigations(context.Context) ([]store.InvestigationSummary, error) {
	return nil, nil
}
func (f *fakeStore) GetInvestigationBySlug(ctx context.Context, slug string) (store.Investigation, error) {
	if f.getInvestigationBySlugFn != nil {
		return f.getInvestigationBySlugFn(ctx, slug)
	}
	return store.Investigation{}, sql.ErrNoRows
}
func (f *fakeStore) GetInvestigation(context.Context, string) (store.Investigation, error) {
	return store.Investigation{}, sql.ErrNoRows
}
func (f *fakeStore) InsertInvestigation(ctx context.Context, item store.Investigation, baseSlug string) (store.Investigation, error) {
	if f.insertInvestigationFn != nil {
		return f.insertInvestigationFn(ctx, item, baseSlug)
	}
	return item, nil
}
func (f *fakeStore) UpdateInvestigation(ctx context.Context, id, title, overviewHTML, status string) (store.Investigation, error) {
	if f.updateInvestigationFn != nil {
		return f.updateInvestigationFn(ctx, id, title, overviewHTML, status)
	}
	return store.Investigation{ID: id, Title: title, OverviewHTML: overviewHTML, Status: status}, nil
}
func (f *fakeStore) DeleteInvestigation(ctx context.Context, id string) error {
	if f.deleteInvestigationFn != nil {
		return f.deleteInvestigationFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) ListDefinitions(ctx context.Context, invID string) ([]store.Definition, error) {
	if f.listDefinitionsFn != nil {
		return f.listDefinitionsFn(ctx, invID)
	}
	return nil, nil
}
func (f *fakeStore) GetDefinitionBySlug(ctx context.Context, invID, defSlug string) (store.Definition, error) {
	if f.getDefinitionBySlugFn != nil {
		return f.getDefinitionBySlugFn(ctx, invID, defSlug)
	}
	return store.Definition{}, sql.ErrNoRows
}
func (f *fakeStore) InsertDefinition(ctx context.Context, item store.Definition, baseSlug string) (store.Definition, error) {
	if f.insertDefinitionFn != nil {
		return f.insertDefinitionFn(ctx, item, baseSlug)
	}
	item.Slug = baseSlug
	return item, nil
}
func (f *fakeStore) UpdateDefinition(ctx context.Context, id, term, body string, seeAlso []string) (store.Definition, error) {
	return store.Definition{ID: id, Term: term, DefinitionHTML: body, SeeAlso: seeAlso}, nil
}
func (f *fakeStore) DeleteDefinition(context.Context, string, string) error { return nil }
func (f *fakeStore) ListClaims(ctx context.Context, invID string) ([]store.Claim, error) {
	if f.listClaimsFn != nil {
		return f.listClaimsFn(ctx, invID)
	}
	return nil, nil
}
func (f *fakeStore) GetClaim(ctx context.Context, claimID string) (store.Claim, error) {
	if f.getClaimFn != nil {
		return f.getClaimFn(ctx, claimID)
	}
	return store.Claim{}, sql.ErrNoRows
}
func (f *fakeStore) InsertClaim(ctx context.Context, item store.Claim) (store.Claim, error) {
	if f.insertClaimFn != nil {
		return f.insertClaimFn(ctx, item)
	}
	return item, nil
}
func (f *fakeStore) UpdateClaimText(ctx context.Context, claimID, text string) (store.Claim, error) {
	return store.Claim{ID: claimID, ClaimText: text}, nil
}
func (f *fakeStore) MoveClaim(ctx context.Context, claimID, direction string) (int, error) {
	if f.moveClaimFn != nil {
		return f.moveClaimFn(ctx, claimID, direction)
	}
	return 0, nil
}
func (f *fakeStore) DeleteClaim(context.Context, string) error { return nil }
func (f *fakeStore) ListCounterarguments(context.Context, string) ([]store.Counterargument, error) {
	return nil, nil
}
func (f *fakeStore) GetCounterargument(ctx context.Context, claimID, caID string) (store.Counterargument, error) {
	if f.getCounterargumentFn != nil {
		return f.getCounterargumentFn(ctx, claimID, caID)
	}
	return store.Counterargument{}, sql.ErrNoRows
}
func (f *fakeStore) InsertCounterargument(ctx context.Context, item store.Counterargument) (store.Counterargument, error) {
	return item, nil
}
func (f *fakeStore) UpdateCounterargument(ctx context.Context, claimID, caID, counterText, rebuttalText string) (store.Counterargument, error) {
	return store.Counterargument{ID: caID, ClaimID: claimID, CounterText: counterText, RebuttalText: rebuttalText}, nil
}
func (f *fakeStore) MoveCounterargument(ctx context.Context, caID, direction string) (int, error) {
	if f.moveCounterargumentFn != nil {
		return f.moveCounterargumentFn(ctx, caID, direction)
	}
	return 0, nil
}
func (f *fakeStore) DeleteCounterargument(context.Context, string) error { return nil }
func (f *fakeStore) ListEvidence(context.Context, string) ([]store.Evidence, error) {
	return nil, nil
}
func (f *fakeStore) GetEvidence(context.Context, string) (store.Evidence, error) {
	return store.Evidence{}, sql.ErrNoRows
}
func (f *fakeStore) InsertEvidence(ctx context.Context, item store.Evidence) (store.Evidence, error) {
	return item, nil
}
func (f *fakeStore) UpdateEvidence(ctx context.Context, item store.Evidence) (store.Evidence, error) {
	return item, nil
}
func (f *fakeStore) SetEvidenceAttachment(context.Context, string, string) error { return nil }
func (f *fakeStore) DeleteEvidence(context.Context, string) error                { return nil }
func (f *fakeStore) AttachmentKeysForInvestigation(ctx context.Context, invID string) ([]string, error) {
	if f.attachmentKeysFn != nil {
		return f.attachmentKeysFn(ctx, invID)
	}
	return nil, nil
}
func (f *fakeStore) AttachmentKeysForClaim(context.Context, string) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) InsertShareLink(ctx context.Context, link store.ShareLink) (store.ShareLink, error) {
	if f.insertShareLinkFn != nil {
		return f.insertShareLinkFn(ctx, link)
	}
	return link, nil
}
func (f *fakeStore) GetShareLinkByToken(ctx context.Context, token string) (store.ShareLink, error) {
	if f.getShareLinkByTokenFn != nil {
		return f.getShareLinkByTokenFn(ctx, token)
	}
	return store.ShareLink{}, sql.ErrNoRows
}
func (f *fakeStore) TouchShareLink(context.Context, string) error { return nil }
func (f *fakeStore) RevokeShareLink(context.Context, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) ListShareLinks(context.Context, string) ([]store.ShareLink, error) {
	return nil, nil
}
func (f *fakeStore) ResolveSlug(ctx context.Context, scope, slug string) (store.SlugEntry, error) {
	if f.resolveSlugFn != nil {
		return f.resolveSlugFn(ctx, scope, slug)
	}
	return store.SlugEntry{}, sql.ErrNoRows
}
func (f *fakeStore) LiveSlugCount(context.Context, string) (int, error) { return 0, nil }
func (f *fakeStore) SiblingPositions(ctx context.Context, table, parentID string) ([][2]string, error) {
	if f.siblingPositionsFn != nil {
		return f.siblingPositionsFn(ctx, table, parentID)
	}
	return nil, nil
}

type fakeSearch struct {
	indexedDefinitions []search.DefinitionRecord
	indexedClaims      []search.ClaimRecord
	deletedDefinitions []string
	deletedClaims      []string
	searchFn           func(context.Context, search.Query) search.Response
}

func (f *fakeSearch) Search(ctx context.Context, q search.Query) search.Response {
	if f.searchFn != nil {
		return f.searchFn(ctx, q)
	}
	return search.Response{Results: []search.Result{}, Query: q.Text}
}
func (f *fakeSearch) IndexDefinition(d search.DefinitionRecord) {
	f.indexedDefinitions = append(f.indexedDefinitions, d)
}
func (f *fakeSearch) IndexClaim(c search.ClaimRecord) { f.indexedClaims = append(f.indexedClaims, c) }
func (f *fakeSearch) DeleteDefinition(id string) {
	f.deletedDefinitions = append(f.deletedDefinitions, id)
}
func (f *fakeSearch) DeleteClaim(id string)            { f.deletedClaims = append(f.deletedClaims, id) }
func (f *fakeSearch) ReindexAllFromPG(context.Context) {}

type fakeBlob struct {
	removeAllFn func(context.Context, []string) error
}

func (f *fakeBlob) Put(context.Context, string, io.Reader, int64, string) error { return nil }
func (f *fakeBlob) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}
func (f *fakeBlob) Stat(context.Context, string) (int64, string, error) {
	return 0, "", errors.New("not found")
}
func (f *fakeBlob) Remove(context.Context, string) error { return nil }
func (f *fakeBlob) PresignedGetURL(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("not supported")
}
func (f *fakeBlob) RemoveAll(ctx context.Context, keys []string) error {
	if f.removeAllFn != nil {
		return f.removeAllFn(ctx, keys)
	}
	return nil
}

func newTestService(fs *fakeStore) *Service {
	s := &Service{cfg: config.Config{}, store: fs}
	s.links = links.NewResolver(&storeLookup{store: fs})
	return s
}

func TestCreateInvestigationRequiresTitle(t *testing.T) {
	s := newTestService(&fakeStore{})

	_, err := s.CreateInvestigation(context.Background(), CreateInvestigationInput{Title: "   "})
	var derr *DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if derr.Status != 422 || derr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected 422 VALIDATION_ERROR, got %d %s", derr.Status, derr.Code)
	}
}

func TestCreateInvestigationDefaultsAndSlug(t *testing.T) {
	var gotItem store.Investigation
	var gotBase string
	fs := &fakeStore{
		insertInvestigationFn: func(_ context.Context, item store.Investigation, base string) (store.Investigation, error) {
			gotItem, gotBase = item, base
			item.Slug = base
			return item, nil
		},
	}
	s := newTestService(fs)

	payload, err := s.CreateInvestigation(context.Background(), CreateInvestigationInput{Title: "Minimum Wage Effects"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if gotItem.Status != "draft" {
		t.Fatalf("expected default status draft, got %q", gotItem.Status)
	}
	if gotBase != "minimum-wage-effects" {
		t.Fatalf("expected base slug minimum-wage-effects, got %q", gotBase)
	}
	if payload["slug"] != "minimum-wage-effects" {
		t.Fatalf("unexpected slug in payload: %v", payload["slug"])
	}
	warnings, ok := payload["unresolved_links"].([]links.Ref)
	if !ok || len(warnings) != 0 {
		t.Fatalf("expected empty unresolved_links, got %v", payload["unresolved_links"])
	}
}

func TestCreateInvestigationExplicitSlugConflict(t *testing.T) {
	fs := &fakeStore{
		resolveSlugFn: func(_ context.Context, scope, slug string) (store.SlugEntry, error) {
			if scope != store.ScopeGlobal || slug != "taken" {
				t.Fatalf("unexpected slug lookup: %s %s", scope, slug)
			}
			return store.SlugEntry{Scope: scope, Slug: slug}, nil
		},
	}
	s := newTestService(fs)

	_, err := s.CreateInvestigation(context.Background(), CreateInvestigationInput{Title: "X", Slug: "taken"})
	var derr *DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if derr.Status != 409 || derr.Code != "CONFLICT" {
		t.Fatalf("expected 409 CONFLICT, got %d %s", derr.Status, derr.Code)
	}
}

func TestCreateInvestigationRejectsUnknownStatus(t *testing.T) {
	s := newTestService(&fakeStore{})

	_, err := s.CreateInvestigation(context.Background(), CreateInvestigationInput{Title: "X", Status: "frozen"})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestUpdateInvestigationPartialMerge(t *testing.T) {
	var gotTitle, gotOverview, gotStatus string
	fs := &fakeStore{
		getInvestigationBySlugFn: func(context.Context, string) (store.Investigation, error) {
			return store.Investigation{ID: "inv_1", Slug: "rent-control", Title: "Rent Control", OverviewHTML: "<p>old</p>", Status: "published"}, nil
		},
		updateInvestigationFn: func(_ context.Context, id, title, overview, status string) (store.Investigation, error) {
			gotTitle, gotOverview, gotStatus = title, overview, status
			return store.Investigation{ID: id, Slug: "rent-control", Title: title, OverviewHTML: overview, Status: status}, nil
		},
	}
	s := newTestService(fs)

	newTitle := "Rent Control Revisited"
	if _, err := s.UpdateInvestigation(context.Background(), "rent-control", UpdateInvestigationInput{Title: &newTitle}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotTitle != newTitle {
		t.Fatalf("title not applied: %q", gotTitle)
	}
	if gotOverview != "<p>old</p>" || gotStatus != "published" {
		t.Fatalf("omitted fields must survive the merge, got overview=%q status=%q", gotOverview, gotStatus)
	}
}

func TestCreateClaimReportsUnresolvedLinks(t *testing.T) {
	fs := &fakeStore{
		getInvestigationBySlugFn: func(context.Context, string) (store.Investigation, error) {
			return store.Investigation{ID: "inv_1", Slug: "ubi"}, nil
		},
	}
	s := newTestService(fs)

	body := `<p>See <a data-ref-kind="definition" data-ref-target="laffer-curve">the curve</a></p>`
	payload, err := s.CreateClaim(context.Background(), "ubi", ClaimInput{ClaimText: body})
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	warnings, ok := payload["unresolved_links"].([]links.Ref)
	if !ok || len(warnings) != 1 {
		t.Fatalf("expected one unresolved link, got %v", payload["unresolved_links"])
	}
	if warnings[0].Target != "laffer-curve" || warnings[0].Kind != links.KindDefinition {
		t.Fatalf("unexpected warning: %+v", warnings[0])
	}
	if payload["claim_text"] != body {
		t.Fatalf("body text must never be rewritten")
	}
}

func TestDeletedSlugAnnotatedAsDeleted(t *testing.T) {
	released := time.Now()
	fs := &fakeStore{
		getInvestigationBySlugFn: func(context.Context, string) (store.Investigation, error) {
			return store.Investigation{ID: "inv_1", Slug: "ubi", OverviewHTML: `<a data-ref-kind="definition" data-ref-target="gone">gone</a>`}, nil
		},
		resolveSlugFn: func(context.Context, string, string) (store.SlugEntry, error) {
			return store.SlugEntry{Slug: "gone", ReleasedAt: &released}, nil
		},
	}
	s := newTestService(fs)

	payload, err := s.GetInvestigation(context.Background(), "ubi")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	annotated, ok := payload["links"].([]links.Link)
	if !ok || len(annotated) != 1 {
		t.Fatalf("expected one annotated link, got %v", payload["links"])
	}
	if annotated[0].Resolved || annotated[0].Reason != links.ReasonDeleted {
		t.Fatalf("expected deleted annotation, got %+v", annotated[0])
	}
}

func TestReorderClaimRejectsBadDirection(t *testing.T) {
	s := newTestService(&fakeStore{})

	_, err := s.ReorderClaim(context.Background(), "clm_1", "sideways")
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Status != 422 {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestReorderClaimAtBoundary(t *testing.T) {
	fs := &fakeStore{
		getClaimFn: func(context.Context, string) (store.Claim, error) {
			return store.Claim{ID: "clm_1", InvestigationID: "inv_1", Position: 0}, nil
		},
		moveClaimFn: func(context.Context, string, string) (int, error) {
			return 0, store.ErrAtBoundary
		},
		siblingPositionsFn: func(_ context.Context, table, parentID string) ([][2]string, error) {
			if table != "claims" || parentID != "inv_1" {
				t.Fatalf("unexpected sibling query: %s %s", table, parentID)
			}
			return [][2]string{{"clm_1", "0"}, {"clm_2", "1"}}, nil
		},
	}
	s := newTestService(fs)

	_, err := s.ReorderClaim(context.Background(), "clm_1", store.DirectionUp)
	var derr *DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if derr.Status != 409 || derr.Code != "INVALID_OPERATION" {
		t.Fatalf("expected 409 INVALID_OPERATION, got %d %s", derr.Status, derr.Code)
	}
	details, ok := derr.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %v", derr.Details)
	}
	positions, ok := details["positions"].([]map[string]any)
	if !ok || len(positions) != 2 {
		t.Fatalf("expected current sibling positions in details, got %v", derr.Details)
	}
}

func TestReorderClaimReturnsNewPosition(t *testing.T) {
	fs := &fakeStore{
		getClaimFn: func(context.Context, string) (store.Claim, error) {
			return store.Claim{ID: "clm_2", InvestigationID: "inv_1", Position: 1}, nil
		},
		moveClaimFn: func(_ context.Context, claimID, direction string) (int, error) {
			if direction != store.DirectionUp {
				t.Fatalf("unexpected direction %q", direction)
			}
			return 0, nil
		},
	}
	s := newTestService(fs)

	payload, err := s.ReorderClaim(context.Background(), "clm_2", "up")
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if payload["position"] != 0 {
		t.Fatalf("expected position 0, got %v", payload["position"])
	}
}

func TestDeleteInvestigationCleansUpIndexAndBlobs(t *testing.T) {
	var removedKeys []string
	fs := &fakeStore{
		getInvestigationBySlugFn: func(context.Context, string) (store.Investigation, error) {
			return store.Investigation{ID: "inv_1", Slug: "ubi"}, nil
		},
		listDefinitionsFn: func(context.Context, string) ([]store.Definition, error) {
			return []store.Definition{{ID: "def_1"}}, nil
		},
		listClaimsFn: func(context.Context, string) ([]store.Claim, error) {
			return []store.Claim{{ID: "clm_1"}, {ID: "clm_2"}}, nil
		},
		attachmentKeysFn: func(context.Context, string) ([]string, error) {
			return []string{"evidence/ev_1"}, nil
		},
	}
	fsIdx := &fakeSearch{}
	s := newTestService(fs)
	s.search = fsIdx
	s.blob = &fakeBlob{removeAllFn: func(_ context.Context, keys []string) error {
		removedKeys = keys
		return nil
	}}

	if err := s.DeleteInvestigation(context.Background(), "ubi"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(fsIdx.deletedDefinitions) != 1 || fsIdx.deletedDefinitions[0] != "def_1" {
		t.Fatalf("definition not removed from index: %v", fsIdx.deletedDefinitions)
	}
	if len(fsIdx.deletedClaims) != 2 {
		t.Fatalf("claims not removed from index: %v", fsIdx.deletedClaims)
	}
	if len(removedKeys) != 1 || removedKeys[0] != "evidence/ev_1" {
		t.Fatalf("attachments not removed: %v", removedKeys)
	}
}

func TestCreateShareLinkRequiresPublished(t *testing.T) {
	fs := &fakeStore{
		getInvestigationBySlugFn: func(context.Context, string) (store.Investigation, error) {
			return store.Investigation{ID: "inv_1", Status: "draft"}, nil
		},
	}
	s := newTestService(fs)

	_, err := s.CreateShareLink(context.Background(), "ubi", ShareLinkInput{})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Code != "INVALID_OPERATION" {
		t.Fatalf("expected INVALID_OPERATION, got %v", err)
	}
}

func TestSearchRejectsUnknownKind(t *testing.T) {
	s := newTestService(&fakeStore{})
	s.search = &fakeSearch{}

	_, err := s.Search(context.Background(), SearchParams{Query: "wage", Kinds: []string{"evidence"}})
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
