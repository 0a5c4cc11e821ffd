package executor

import (
	"context"
	"strings"

	"github.com/kbukum/agentflow/workflow"
)

// Template renders a fixed text with {input}, {node} and {image}
// substituted. It never fails.
type Template struct {
	text string
}

// NewTemplate creates a template executor.
func NewTemplate(text string) *Template {
	return &Template{text: text}
}

// Kind implements workflow.Kinded.
func (t *Template) Kind() string { return string(TypeTemplate) }

// Execute implements workflow.Executor.
func (t *Template) Execute(_ context.Context, req workflow.Request) (string, error) {
	return strings.NewReplacer(
		"{input}", req.Input,
		"{node}", req.Node,
		"{image}", req.Image,
	).Replace(t.text), nil
}
