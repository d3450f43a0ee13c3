// Package prompt merges an instruction template with the budgeted listing
// payload into the system and user messages sent to the model.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Template is the YAML instruction file.
type Template struct {
	Identity  string   `yaml:"identity"`
	Rules     []string `yaml:"rules"`
	Style     []string `yaml:"style"`
	NoResults string   `yaml:"no_results"`
}

const defaultTemplate = `
identity: >
  You are a helpful real estate assistant for a local brokerage. You answer
  questions about the property listings provided to you.
rules:
  - Only use the listing data in the [LISTING DATA] section. Do not invent listings, prices or features.
  - Always mention a listing's MLS or listing ID exactly as it appears in the data when you refer to it.
  - Never recommend or mention other real estate websites, apps or portals.
  - If the data does not answer the question, say so and suggest contacting a local real estate agent.
style:
  - Be concise and friendly.
  - Use short Markdown lists for multiple listings.
  - Use **bold** for prices and addresses.
no_results: >
  No listings matched this question. Tell the user nothing matched and
  suggest rephrasing or contacting a local real estate agent.
`

// Default returns the built-in template.
func Default() *Template {
	t, err := Parse([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("prompt: built-in template: %v", err))
	}
	return t
}

// Parse decodes a YAML template. Identity is required.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "prompt: parse template yaml")
	}
	t.Identity = strings.TrimSpace(t.Identity)
	t.NoResults = strings.TrimSpace(t.NoResults)
	if t.Identity == "" {
		return nil, eris.New("prompt: template identity is empty")
	}
	return &t, nil
}

// Load reads a template file. An empty path returns the built-in template.
func Load(path string) (*Template, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "prompt: read template")
	}
	return Parse(data)
}

// Instructions renders the template as the instruction part of the system message.
func (t *Template) Instructions() string {
	var sb strings.Builder
	sb.WriteString(t.Identity)
	if len(t.Rules) > 0 {
		sb.WriteString("\n\nRules:\n")
		sb.WriteString(bullets(t.Rules))
	}
	if len(t.Style) > 0 {
		sb.WriteString("\n\nStyle:\n")
		sb.WriteString(bullets(t.Style))
	}
	return sb.String()
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + strings.TrimSpace(it)
	}
	return strings.Join(lines, "\n")
}
