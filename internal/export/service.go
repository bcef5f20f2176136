package export

import (
	"context"
	"fmt"
	"html/template"

	"dialectic/internal/store"
)

// DataStore is the slice of storage the exporter needs.
type DataStore interface {
	GetInvestigationBySlug(ctx context.Context, slug string) (store.Investigation, error)
	ListDefinitions(ctx context.Context, investigationID string) ([]store.Definition, error)
	ListClaims(ctx context.Context, investigationID string) ([]store.Claim, error)
	ListEvidence(ctx context.Context, claimID string) ([]store.Evidence, error)
	ListCounterarguments(ctx context.Context, claimID string) ([]store.Counterargument, error)
}

// Service renders investigation dossiers.
type Service struct {
	store DataStore
}

// NewService creates a new export service.
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a dossier in the requested format. Definitions come
// first, then claims in their stored order with evidence and
// counterarguments nested under each claim.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	inv, err := s.store.GetInvestigationBySlug(ctx, req.InvestigationSlug)
	if err != nil {
		return nil, fmt.Errorf("get investigation: %w", err)
	}

	definitions, err := s.store.ListDefinitions(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}

	claims, err := s.store.ListClaims(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	data := TemplateData{
		Title:        inv.Title,
		Status:       inv.Status,
		OverviewHTML: template.HTML(inv.OverviewHTML),
		UpdatedAt:    inv.UpdatedAt,
		Definitions:  make([]TemplateDefinition, 0, len(definitions)),
		Claims:       make([]TemplateClaim, 0, len(claims)),
	}

	for _, d := range definitions {
		data.Definitions = append(data.Definitions, TemplateDefinition{
			Term:     d.Term,
			BodyHTML: template.HTML(d.DefinitionHTML),
		})
	}

	for _, c := range claims {
		claim := TemplateClaim{Text: c.ClaimText}

		if req.IncludeEvidence {
			items, err := s.store.ListEvidence(ctx, c.ID)
			if err != nil {
				return nil, fmt.Errorf("list evidence: %w", err)
			}
			for _, e := range items {
				claim.Evidence = append(claim.Evidence, TemplateEvidence{
					Citation:   e.SourceTitle,
					SourceType: e.SourceType,
					Quote:      e.KeyQuote,
				})
			}
		}

		if req.IncludeCounterarguments {
			items, err := s.store.ListCounterarguments(ctx, c.ID)
			if err != nil {
				return nil, fmt.Errorf("list counterarguments: %w", err)
			}
			for _, ca := range items {
				claim.Counterarguments = append(claim.Counterarguments, TemplateCounterargument{
					Text:     ca.CounterText,
					Rebuttal: ca.RebuttalText,
				})
			}
		}

		data.Claims = append(data.Claims, claim)
	}

	html, err := RenderDossierHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(inv.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, inv.Title)
	case FormatDOCX:
		return exportDOCX(html, inv.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
