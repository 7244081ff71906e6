package composer

import (
	"bytes"
	"fmt"
	"html/template"
)

// Activator decides from a stored document whether a badge applies.
type Activator func(field *FieldSpec, doc Document) bool

// ActivateIfTrue activates when the field holds the boolean true.
func ActivateIfTrue(field *FieldSpec, doc Document) bool {
	if field == nil {
		return false
	}

	b, ok := doc[field.Key].(bool)
	return ok && b
}

// ActivateIfTruthy activates when the field holds a non-zero value: true,
// a non-blank string, a non-zero number or a non-empty list.
func ActivateIfTruthy(field *FieldSpec, doc Document) bool {
	if field == nil {
		return false
	}

	switch v := doc[field.Key].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

// RenderContext carries what badge renderers need from the web layer.
type RenderContext struct {
	Templates *template.Template
	Localize  func(id string) string
}

func (rc RenderContext) localize(id string) string {
	if rc.Localize == nil {
		return id
	}

	return rc.Localize(id)
}

// Renderer produces the markup of an active badge.
type Renderer interface {
	Render(rc RenderContext, field *FieldSpec, doc Document) (template.HTML, error)
}

// TemplateStringRenderer renders an inline template. The template sees
// .field, .item and .T, a function translating message ids.
type TemplateStringRenderer struct {
	Source string
	tmpl   *template.Template
}

// NewTemplateStringRenderer parses src.
func NewTemplateStringRenderer(src string) (*TemplateStringRenderer, error) {
	tmpl, err := template.New("badge").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("badge template: %w", err)
	}

	return &TemplateStringRenderer{Source: src, tmpl: tmpl}, nil
}

func (r *TemplateStringRenderer) Render(rc RenderContext, field *FieldSpec, doc Document) (template.HTML, error) {
	return execute(r.tmpl, "", badgeData(rc, field, doc, nil))
}

// TemplateRenderer renders a named template of the application's template
// set, with Data added to the template data.
type TemplateRenderer struct {
	Name string
	Data map[string]any
}

func (r TemplateRenderer) Render(rc RenderContext, field *FieldSpec, doc Document) (template.HTML, error) {
	if rc.Templates == nil {
		return "", fmt.Errorf("badge template %s: no template set", r.Name)
	}

	return execute(rc.Templates, r.Name, badgeData(rc, field, doc, r.Data))
}

func badgeData(rc RenderContext, field *FieldSpec, doc Document, extra map[string]any) map[string]any {
	data := map[string]any{
		"field": field,
		"item":  doc,
		"T":     rc.localize,
	}

	for k, v := range extra {
		data[k] = v
	}

	return data
}

func execute(tmpl *template.Template, name string, data any) (template.HTML, error) {
	var buf bytes.Buffer

	var err error
	if name == "" {
		err = tmpl.Execute(&buf, data)
	} else {
		err = tmpl.ExecuteTemplate(&buf, name, data)
	}

	if err != nil {
		return "", fmt.Errorf("render badge: %w", err)
	}

	// the template package already escaped the output
	return template.HTML(buf.String()), nil
}
