// Package prompt renders LLM prompts from a catalog of named
// templates with {{name}} placeholder substitution.
package prompt

import (
	"regexp"
)

// Request is a rendered prompt. It is immutable once built; Text is
// what the processing collaborator sends to the model.
type Request struct {
	TemplateID string
	Values     map[string]string
	Text       string
}

// Placeholders are {{name}} with optional whitespace inside the
// braces; names are word characters only.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render substitutes values into every placeholder of template. A
// name absent from values renders as the empty string, which permits
// optional template sections but also silently drops typoed names.
// Render always returns a string and has no side effects.
func Render(template string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(marker string) string {
		name := placeholderPattern.FindStringSubmatch(marker)[1]
		return values[name]
	})
}
