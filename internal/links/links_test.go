package links

import (
	"context"
	"testing"
)

func TestExtract(t *testing.T) {
	body := `<p>Tariffs interact with the
		<a data-ref-kind="definition" data-ref-target="laffer-curve">Laffer curve</a>
		and <a data-ref-kind="claim" data-ref-target="clm_abc">a prior claim</a>.
		Plain <a href="https://example.org">links</a> are ignored.</p>`

	refs := Extract(body)
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d: %v", len(refs), refs)
	}
	if refs[0] != (Ref{Kind: KindDefinition, Target: "laffer-curve"}) {
		t.Errorf("first ref = %+v", refs[0])
	}
	if refs[1] != (Ref{Kind: KindClaim, Target: "clm_abc"}) {
		t.Errorf("second ref = %+v", refs[1])
	}
}

func TestExtractDeduplicates(t *testing.T) {
	body := `<p><a data-ref-kind="definition" data-ref-target="tariff">once</a>
		and <a data-ref-kind="definition" data-ref-target="tariff">twice</a></p>`
	refs := Extract(body)
	if len(refs) != 1 {
		t.Fatalf("expected deduplicated single ref, got %d", len(refs))
	}
}

func TestExtractIgnoresMalformedMarkers(t *testing.T) {
	cases := []string{
		``,
		`   `,
		`<p>no markers here</p>`,
		`<a data-ref-kind="definition">missing target</a>`,
		`<a data-ref-target="orphan">missing kind</a>`,
		`<a data-ref-kind="banana" data-ref-target="x">unknown kind</a>`,
	}
	for _, body := range cases {
		if refs := Extract(body); len(refs) != 0 {
			t.Errorf("Extract(%q) = %v, want none", body, refs)
		}
	}
}

func TestExtractSurvivesBrokenHTML(t *testing.T) {
	body := `<p><a data-ref-kind="claim" data-ref-target="clm_x">unclosed`
	refs := Extract(body)
	if len(refs) != 1 || refs[0].Target != "clm_x" {
		t.Fatalf("expected marker from broken html, got %v", refs)
	}
}

type fakeLookup struct {
	definitions map[string]Resolution
	claims      map[string]Resolution
}

func (f *fakeLookup) ResolveDefinitionRef(_ context.Context, _, slug string) (Resolution, error) {
	return f.definitions[slug], nil
}

func (f *fakeLookup) ResolveClaimRef(_ context.Context, _, claimID string) (Resolution, error) {
	return f.claims[claimID], nil
}

func TestAnnotate(t *testing.T) {
	lookup := &fakeLookup{
		definitions: map[string]Resolution{
			"laffer-curve": {Found: true, Label: "Laffer Curve"},
			"old-term":     {Found: false, Deleted: true},
		},
		claims: map[string]Resolution{
			"clm_live": {Found: true, Label: "Tariffs reduce consumer welfare"},
		},
	}
	resolver := NewResolver(lookup)

	body := `<p>
		<a data-ref-kind="definition" data-ref-target="laffer-curve">live def</a>
		<a data-ref-kind="definition" data-ref-target="old-term">deleted def</a>
		<a data-ref-kind="claim" data-ref-target="clm_live">live claim</a>
		<a data-ref-kind="claim" data-ref-target="clm_never">forward ref</a>
	</p>`

	annotated, err := resolver.Annotate(context.Background(), "inv_1", body)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if len(annotated) != 4 {
		t.Fatalf("expected 4 links, got %d", len(annotated))
	}

	if !annotated[0].Resolved || annotated[0].Label != "Laffer Curve" {
		t.Errorf("live definition link = %+v", annotated[0])
	}
	if annotated[1].Resolved || annotated[1].Reason != ReasonDeleted {
		t.Errorf("deleted definition link = %+v", annotated[1])
	}
	if !annotated[2].Resolved {
		t.Errorf("live claim link = %+v", annotated[2])
	}
	if annotated[3].Resolved || annotated[3].Reason != ReasonUnknown {
		t.Errorf("forward claim link = %+v", annotated[3])
	}

	unresolved := Unresolved(annotated)
	if len(unresolved) != 2 {
		t.Fatalf("expected 2 unresolved refs, got %d", len(unresolved))
	}
	if unresolved[0].Target != "old-term" || unresolved[1].Target != "clm_never" {
		t.Errorf("unresolved = %v", unresolved)
	}
}
