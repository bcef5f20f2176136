package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

// SafeHTML marks a string as already-sanitized HTML for the template.
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

var dossierTemplate = template.Must(template.New("dossier").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"safeHTML": SafeHTML,
	"inc": func(i int) int {
		return i + 1
	},
}).Parse(dossierHTML))

// TemplateData holds data for dossier rendering.
type TemplateData struct {
	Title        string
	Status       string
	OverviewHTML template.HTML
	UpdatedAt    time.Time
	Definitions  []TemplateDefinition
	Claims       []TemplateClaim
}

// TemplateDefinition holds one glossary entry.
type TemplateDefinition struct {
	Term     string
	BodyHTML template.HTML
}

// TemplateClaim holds one claim plus its supporting material, in
// presentation order.
type TemplateClaim struct {
	Text             string
	Evidence         []TemplateEvidence
	Counterarguments []TemplateCounterargument
}

// TemplateEvidence holds one evidence citation.
type TemplateEvidence struct {
	Citation   string
	SourceType string
	Quote      string
}

// TemplateCounterargument holds one counterargument, in presentation order.
type TemplateCounterargument struct {
	Text     string
	Rebuttal string
}

// RenderDossierHTML renders the dossier template with provided data.
func RenderDossierHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := dossierTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const dossierHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .definition { margin: 0.75rem 0; }
    .definition dt { font-weight: bold; }
    .claim { margin: 1.5rem 0; }
    .claim-number { font-weight: bold; }
    .evidence { background: #f5f5f5; padding: 0.75rem; margin: 0.5rem 0 0.5rem 1.5rem; border-left: 3px solid #333; font-size: 0.95em; }
    .counter { padding: 0.75rem; margin: 0.5rem 0 0.5rem 1.5rem; border-left: 3px solid #a33; font-size: 0.95em; }
    .rebuttal { margin-top: 0.5rem; color: #444; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Status | lower}} | updated {{formatDate .UpdatedAt "Jan 2, 2006"}}</div>
  <div>{{.OverviewHTML | safeHTML}}</div>

  {{if .Definitions}}
  <h2>Definitions</h2>
  <dl>
  {{range .Definitions}}
    <div class="definition"><dt>{{.Term}}</dt><dd>{{.BodyHTML | safeHTML}}</dd></div>
  {{end}}
  </dl>
  {{end}}

  {{if .Claims}}
  <h2>Claims</h2>
  {{range $i, $c := .Claims}}
  <div class="claim">
    <p><span class="claim-number">{{inc $i}}.</span> {{$c.Text}}</p>
    {{range $c.Evidence}}
    <div class="evidence">
      <div>{{.Citation}} <em>({{.SourceType}})</em></div>
      {{if .Quote}}<blockquote>{{.Quote}}</blockquote>{{end}}
    </div>
    {{end}}
    {{range $c.Counterarguments}}
    <div class="counter">
      <div>{{.Text}}</div>
      {{if .Rebuttal}}<div class="rebuttal">{{.Rebuttal}}</div>{{end}}
    </div>
    {{end}}
  </div>
  {{end}}
  {{end}}
</body>
</html>`
