package composer

import (
	"bytes"
	"context"
	"text/template"
)

// templates holds one message template per urgency tier. They serve as the
// offline composer when no generator API key is configured, and keep tests
// independent of the upstream service.
var templates = map[Urgency]string{
	UrgencyLow:    `Hi {{.Name}}! You were checking out {{.Products}}. They're waiting for you{{if .Link}}: {{.Link}}{{end}}`,
	UrgencyMedium: `Hi {{.Name}}, still thinking about {{.Products}}? Finish checking out soon{{if .Link}}: {{.Link}}{{end}}`,
	UrgencyHigh:   `{{.Name}}, your cart with {{.Products}} won't wait forever! Grab it now{{if .Link}}: {{.Link}}{{end}}`,
}

// TemplateComposer renders reminders from local templates instead of calling
// a generator.
type TemplateComposer struct{}

func NewTemplateComposer() *TemplateComposer {
	return &TemplateComposer{}
}

func (c *TemplateComposer) Compose(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	tmpl, err := template.New(string(req.Urgency)).Parse(templates[req.Urgency])
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req); err != nil {
		return "", &GenerationError{Err: err}
	}
	return normalize(buf.String()), nil
}
