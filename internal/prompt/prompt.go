// Package prompt assembles the conversation sent to providers: a system
// prompt carrying the search context, prior chat history and the new query.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"answerd/internal/generation"
	"answerd/internal/search"
)

// NoResultsMarker replaces the search context when the gate produced nothing.
const NoResultsMarker = "No search results available."

// DefaultSystemTemplate is used when no template is configured.
const DefaultSystemTemplate = `You are a helpful assistant that answers the user's question.
Today is {{.Date}}.
{{if .Results}}Use the following search results as context. Cite sources by their number when you rely on them.
{{range $i, $r := .Results}}
[{{inc $i}}] {{$r.Title}}
URL: {{$r.URL}}
{{$r.Snippet}}
{{end}}{{else}}{{.NoResults}}
{{end}}
Answer in the same language as the question. Use markdown.`

// Builder renders the system prompt from a template.
type Builder struct {
	tmpl *template.Template
	now  func() time.Time
}

// NewBuilder parses text as a system prompt template; empty text selects
// DefaultSystemTemplate.
func NewBuilder(text string) (*Builder, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultSystemTemplate
	}
	t, err := template.New("system").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	return &Builder{tmpl: t, now: time.Now}, nil
}

// System renders the system prompt for the given results.
func (b *Builder) System(results []search.Result) (string, error) {
	var sb strings.Builder
	data := struct {
		Date      string
		Results   []search.Result
		NoResults string
	}{
		Date:      b.now().Format("January 2, 2006"),
		Results:   results,
		NoResults: NoResultsMarker,
	}
	if err := b.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Compose returns a function that builds the conversation for a session once
// its search gate resolves. A render error falls back to the bare marker.
func (b *Builder) Compose(history []generation.Message, query string) func([]search.Result) []generation.Message {
	return func(results []search.Result) []generation.Message {
		system, err := b.System(results)
		if err != nil {
			system = NoResultsMarker
		}
		return Conversation(system, history, query)
	}
}

// Conversation puts system first and appends query as a user turn when
// non-empty. When history already opens with a system message, system is
// appended to it so the search context still reaches the model. The input
// slice is never modified.
func Conversation(system string, history []generation.Message, query string) []generation.Message {
	out := make([]generation.Message, 0, len(history)+2)
	if len(history) > 0 && history[0].Role == generation.RoleSystem {
		merged := history[0]
		if system != "" {
			merged.Content = strings.TrimRight(merged.Content, "\n") + "\n\n" + system
		}
		out = append(out, merged)
		history = history[1:]
	} else {
		out = append(out, generation.Message{Role: generation.RoleSystem, Content: system})
	}
	out = append(out, history...)
	if q := strings.TrimSpace(query); q != "" {
		out = append(out, generation.Message{Role: generation.RoleUser, Content: q})
	}
	return out
}
