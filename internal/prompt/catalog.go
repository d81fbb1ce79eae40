package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultTemplateID = "default"

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

// Catalog maps template ids to template text. Built-in templates ship
// embedded in the binary; an optional YAML override file replaces or
// adds entries by id.
type Catalog struct {
	templates map[string]string
}

// LoadCatalog builds the catalog from the embedded defaults, then
// applies overrides from overridePath when it is non-empty. The
// override file is a flat YAML mapping of template id to template
// text.
func LoadCatalog(overridePath string) (*Catalog, error) {
	templates := map[string]string{}

	entries, err := fs.Glob(builtinTemplates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("list builtin templates: %w", err)
	}
	for _, path := range entries {
		raw, err := builtinTemplates.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read builtin template %q: %w", path, err)
		}
		id := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".tmpl")
		templates[id] = string(raw)
	}

	if overridePath != "" {
		raw, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read template catalog %q: %w", overridePath, err)
		}
		overrides := map[string]string{}
		if err := yaml.Unmarshal(raw, &overrides); err != nil {
			return nil, fmt.Errorf("parse template catalog %q: %w", overridePath, err)
		}
		for id, text := range overrides {
			templates[id] = text
		}
	}

	if _, ok := templates[defaultTemplateID]; !ok {
		return nil, fmt.Errorf("template catalog has no %q template", defaultTemplateID)
	}
	return &Catalog{templates: templates}, nil
}

// TemplateFor returns the template id to use for a webhook event
// type, falling back to the default template when no event-specific
// one exists.
func (c *Catalog) TemplateFor(eventType string) string {
	if _, ok := c.templates[eventType]; ok {
		return eventType
	}
	return defaultTemplateID
}

// Build renders the template with the given id and returns the
// immutable Request. Unknown ids are an error; missing placeholder
// values render empty per Render's contract.
func (c *Catalog) Build(id string, values map[string]string) (Request, error) {
	template, ok := c.templates[id]
	if !ok {
		return Request{}, fmt.Errorf("unknown template id %q", id)
	}
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Request{
		TemplateID: id,
		Values:     copied,
		Text:       Render(template, copied),
	}, nil
}
