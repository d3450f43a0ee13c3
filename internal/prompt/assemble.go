package prompt

import (
	"strings"

	"github.com/KaramelBytes/listingloom/internal/retrieval"
	"github.com/KaramelBytes/listingloom/internal/utils"
)

// Prompt is the pair of messages sent to the model.
type Prompt struct {
	System string
	User   string
	Tokens int
}

// Assembler builds prompts from a compiled template.
type Assembler struct {
	instructions string
	noResults    string
}

// NewAssembler compiles t once. A nil template uses Default.
func NewAssembler(t *Template) *Assembler {
	if t == nil {
		t = Default()
	}
	noResults := t.NoResults
	if noResults == "" {
		noResults = "(no matching listings)"
	}
	return &Assembler{instructions: t.Instructions(), noResults: noResults}
}

// Assemble places the instructions and the serialized payload in the system
// message and the query in the user message.
func (a *Assembler) Assemble(query string, res *retrieval.Result) Prompt {
	var sb strings.Builder
	sb.WriteString("[INSTRUCTIONS]\n")
	sb.WriteString(a.instructions)
	sb.WriteString("\n\n[LISTING DATA]\n")
	data := ""
	if res != nil {
		data = res.Serialized()
	}
	if data == "" {
		sb.WriteString(a.noResults)
	} else {
		sb.WriteString(data)
	}
	sb.WriteString("\n")

	p := Prompt{System: sb.String(), User: strings.TrimSpace(query)}
	p.Tokens = utils.CountTokens(p.System) + utils.CountTokens(p.User)
	return p
}
