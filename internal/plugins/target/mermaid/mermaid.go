// Package mermaid exposes the diagram renderers as plugins so the draftsman
// can discover them through the registry.
package mermaid

import (
	"context"

	"github.com/efebarandurmaz/codechart/internal/diagram"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

// Diagram kinds, also the keys of the result payload.
const (
	KindClass     = "class"
	KindComponent = "component"
	KindER        = "er"
)

// Plugin adapts a pure render function to plugins.DiagramPlugin.
type Plugin struct {
	kind   string
	render func(*ir.Model) string
}

// NewClass renders one class per file.
func NewClass() *Plugin { return &Plugin{kind: KindClass, render: diagram.RenderClass} }

// NewComponent renders one block per category.
func NewComponent() *Plugin { return &Plugin{kind: KindComponent, render: diagram.RenderComponent} }

// NewER renders inferred entities using er's tables.
func NewER(er *diagram.ER) *Plugin {
	if er == nil {
		er = diagram.NewER()
	}
	return &Plugin{kind: KindER, render: er.Render}
}

func (p *Plugin) Kind() string     { return p.kind }
func (p *Plugin) FileName() string { return p.kind + ".mmd" }

func (p *Plugin) Render(ctx context.Context, m *ir.Model) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.render(m), nil
}

// RegisterDefaults adds the class, component and ER plugins to reg.
func RegisterDefaults(reg *plugins.Registry) {
	reg.RegisterDiagram(NewClass())
	reg.RegisterDiagram(NewComponent())
	reg.RegisterDiagram(NewER(nil))
}
