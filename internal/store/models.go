package store

import "time"

type Investigation struct {
	ID           string
	Slug         string
	Title        string
	OverviewHTML string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InvestigationSummary is the listing row, with child counts joined in.
type InvestigationSummary struct {
	Investigation
	DefinitionCount int
	ClaimCount      int
}

type Definition struct {
	ID              string
	InvestigationID string
	Slug            string
	Term            string
	DefinitionHTML  string
	SeeAlso         []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Claim struct {
	ID                   string
	InvestigationID      string
	ClaimText            string
	Position             int
	EvidenceCount        int
	CounterargumentCount int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Counterargument struct {
	ID           string
	ClaimID      string
	CounterText  string
	RebuttalText string
	Position     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SourceTypes enumerates the recognized evidence source types. Unknown
// values are stored verbatim; an empty value defaults to "other".
var SourceTypes = map[string]struct{}{
	"academic_paper":    {},
	"news_article":      {},
	"think_tank":        {},
	"government_report": {},
	"book":              {},
	"interview":         {},
	"dataset":           {},
	"legal_document":    {},
	"opinion":           {},
	"primary_source":    {},
	"other":             {},
}

type Evidence struct {
	ID            string
	ClaimID       string
	SourceTitle   string
	SourceType    string
	SourceURL     string
	KeyQuote      string
	KeyPoint      string
	KBResourceID  string
	AttachmentKey string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ShareLink struct {
	ID              string
	Token           string
	InvestigationID string
	PasswordHash    *string
	ExpiresAt       *time.Time
	AccessCount     int
	LastAccessedAt  *time.Time
	CreatedAt       time.Time
	RevokedAt       *time.Time
}

// SlugEntry is a row of the slug index.
type SlugEntry struct {
	Scope      string
	Slug       string
	EntityKind string
	EntityID   string
	ReservedAt time.Time
	ReleasedAt *time.Time
}

// CommitInfo describes one entry of an investigation's overview history.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
