// Package links scans rich-text HTML bodies for inline reference
// markers and validates them against the live entity graph. Markers are
// anchors carrying a role attribute:
//
//	<a data-ref-kind="definition" data-ref-target="laffer-curve">…</a>
//	<a data-ref-kind="claim" data-ref-target="clm_1f3a…">…</a>
//
// The resolver never rewrites body text; broken references are
// surfaced, not repaired.
package links

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

type Kind string

const (
	KindDefinition Kind = "definition"
	KindClaim      Kind = "claim"
)

const (
	attrKind   = "data-ref-kind"
	attrTarget = "data-ref-target"
)

// Ref is a raw reference marker found in a body.
type Ref struct {
	Kind   Kind   `json:"kind"`
	Target string `json:"target"`
}

// Dangling reasons reported on read.
const (
	ReasonDeleted = "deleted"
	ReasonUnknown = "unknown"
)

// Link is a reference annotated against current state.
type Link struct {
	Kind     Kind   `json:"kind"`
	Target   string `json:"target"`
	Label    string `json:"label,omitempty"`
	Resolved bool   `json:"resolved"`
	Reason   string `json:"reason,omitempty"`
}

// Extract parses a body and returns its reference markers in document
// order, deduplicated by kind+target. Malformed HTML never fails: the
// parser recovers, so whatever markers survive are returned.
func Extract(body string) []Ref {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var refs []Ref
	seen := make(map[Ref]struct{})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if ref, ok := refFromAnchor(n); ok {
				if _, dup := seen[ref]; !dup {
					seen[ref] = struct{}{}
					refs = append(refs, ref)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return refs
}

func refFromAnchor(n *html.Node) (Ref, bool) {
	var kind, target string
	for _, attr := range n.Attr {
		switch attr.Key {
		case attrKind:
			kind = strings.TrimSpace(attr.Val)
		case attrTarget:
			target = strings.TrimSpace(attr.Val)
		}
	}
	if target == "" {
		return Ref{}, false
	}
	switch Kind(kind) {
	case KindDefinition, KindClaim:
		return Ref{Kind: Kind(kind), Target: target}, true
	}
	return Ref{}, false
}

// Target resolution outcome for a single reference.
type Resolution struct {
	Found   bool
	Deleted bool
	Label   string
}

// Lookup resolves reference targets within one investigation.
type Lookup interface {
	ResolveDefinitionRef(ctx context.Context, investigationID, slug string) (Resolution, error)
	ResolveClaimRef(ctx context.Context, investigationID, claimID string) (Resolution, error)
}

// Resolver annotates bodies against a Lookup.
type Resolver struct {
	lookup Lookup
}

func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Annotate extracts and validates every reference in body against the
// current state of the investigation.
func (r *Resolver) Annotate(ctx context.Context, investigationID, body string) ([]Link, error) {
	refs := Extract(body)
	annotated := make([]Link, 0, len(refs))
	for _, ref := range refs {
		var res Resolution
		var err error
		switch ref.Kind {
		case KindDefinition:
			res, err = r.lookup.ResolveDefinitionRef(ctx, investigationID, ref.Target)
		case KindClaim:
			res, err = r.lookup.ResolveClaimRef(ctx, investigationID, ref.Target)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s ref %q: %w", ref.Kind, ref.Target, err)
		}

		link := Link{Kind: ref.Kind, Target: ref.Target, Resolved: res.Found, Label: res.Label}
		if !res.Found {
			link.Reason = ReasonUnknown
			if res.Deleted {
				link.Reason = ReasonDeleted
			}
		}
		annotated = append(annotated, link)
	}
	return annotated, nil
}

// Unresolved filters the annotation down to the warning list returned
// on writes.
func Unresolved(annotated []Link) []Ref {
	refs := make([]Ref, 0)
	for _, link := range annotated {
		if link.Resolved {
			continue
		}
		refs = append(refs, Ref{Kind: link.Kind, Target: link.Target})
	}
	return refs
}
