package sessions

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

type ExportFormat string

const (
	FormatMarkdown ExportFormat = "markdown"
	FormatHTML     ExportFormat = "html"
	FormatJSON     ExportFormat = "json"
	FormatYAML     ExportFormat = "yaml"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatHTML, FormatJSON, FormatYAML:
		return f, nil
	case "md", "text":
		return FormatMarkdown, nil
	default:
		return "", errors.Errorf("unknown export format %q", s)
	}
}

// Exporter writes a stored session in a human or machine readable form.
type Exporter struct {
	// Concise drops the header and numbers.
	Concise bool
	// RenameRoles maps stored roles to display names, e.g. "model" to "Claude".
	RenameRoles map[string]string
}

type transcript struct {
	Path     string           `json:"path" yaml:"path"`
	Provider string           `json:"provider,omitempty" yaml:"provider,omitempty"`
	Created  string           `json:"created,omitempty" yaml:"created,omitempty"`
	Concise  bool             `json:"-" yaml:"-"`
	Turns    []transcriptTurn `json:"chat" yaml:"chat"`
}

type transcriptTurn struct {
	Role string `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

const transcriptTemplate = `
{{- if not .Concise -}}
# {{ .Path | base }}
{{ if .Provider }}Provider: {{ .Provider }}
{{ end }}{{ if .Created }}Created at: {{ .Created }}
{{ end }}
{{ end -}}
{{ range $idx, $turn := .Turns -}}
{{ if $.Concise -}}
**{{ $turn.Role | title }}**: {{ $turn.Text | trim }}
{{ else -}}
### {{ add $idx 1 }}. {{ $turn.Role | title }}

{{ $turn.Text | trim }}
{{ end }}
{{ end -}}
`

var transcriptTmpl = template.Must(template.New("transcript").Funcs(sprig.TxtFuncMap()).Parse(transcriptTemplate))

func (e *Exporter) buildTranscript(path string, doc *conversation.Document) transcript {
	t := transcript{
		Path:     path,
		Provider: doc.Model,
		Concise:  e.Concise,
		Turns:    []transcriptTurn{},
	}
	if created, ok := CreatedAt(path); ok {
		t.Created = created.UTC().Format(time.RFC3339)
	}
	for _, turn := range doc.Chat {
		role := string(turn.Role)
		if renamed, ok := e.RenameRoles[role]; ok {
			role = renamed
		}
		t.Turns = append(t.Turns, transcriptTurn{Role: role, Text: turn.Text})
	}
	return t
}

// Export writes the session document read from path to w.
func (e *Exporter) Export(w io.Writer, path string, doc *conversation.Document, format ExportFormat) error {
	t := e.buildTranscript(path, doc)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(t), "could not encode session")

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return errors.Wrap(err, "could not encode session")
		}
		return enc.Close()

	case FormatMarkdown:
		return errors.Wrap(transcriptTmpl.Execute(w, t), "could not render session")

	case FormatHTML:
		var md bytes.Buffer
		if err := transcriptTmpl.Execute(&md, t); err != nil {
			return errors.Wrap(err, "could not render session")
		}
		return errors.Wrap(goldmark.Convert(md.Bytes(), w), "could not convert session to html")

	default:
		return errors.Errorf("unknown export format %q", format)
	}
}
