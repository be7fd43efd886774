package plugins

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry stores available source and diagram plugins.
type Registry struct {
	mu       sync.RWMutex
	sources  map[string]SourcePlugin
	byExt    map[string]SourcePlugin
	diagrams map[string]DiagramPlugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:  make(map[string]SourcePlugin),
		byExt:    make(map[string]SourcePlugin),
		diagrams: make(map[string]DiagramPlugin),
	}
}

func (r *Registry) RegisterSource(p SourcePlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[p.Language()] = p
	if ep, ok := p.(FileExtensionsProvider); ok {
		for _, ext := range ep.FileExtensions() {
			r.byExt[strings.ToLower(ext)] = p
		}
	}
}

func (r *Registry) RegisterDiagram(p DiagramPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagrams[p.Kind()] = p
}

func (r *Registry) Source(lang string) (SourcePlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.sources[lang]
	if !ok {
		return nil, fmt.Errorf("no source plugin for language %q", lang)
	}
	return p, nil
}

// SourceForExtension looks up the plugin that declared ext.
func (r *Registry) SourceForExtension(ext string) (SourcePlugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[strings.ToLower(ext)]
	return p, ok
}

// Extensions returns every extension declared by a registered source plugin,
// sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Diagram(kind string) (DiagramPlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.diagrams[kind]
	if !ok {
		return nil, fmt.Errorf("no diagram plugin for kind %q", kind)
	}
	return p, nil
}

// Diagrams returns the registered diagram plugins ordered by kind.
func (r *Registry) Diagrams() []DiagramPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.diagrams))
	for k := range r.diagrams {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	out := make([]DiagramPlugin, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, r.diagrams[k])
	}
	return out
}
