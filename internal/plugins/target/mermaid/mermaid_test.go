package mermaid

import (
	"context"
	"strings"
	"testing"

	"github.com/efebarandurmaz/codechart/internal/diagram"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

func TestRegisterDefaults(t *testing.T) {
	reg := plugins.NewRegistry()
	RegisterDefaults(reg)

	got := reg.Diagrams()
	if len(got) != 3 {
		t.Fatalf("expected 3 diagram plugins, got %d", len(got))
	}
	want := []string{KindClass, KindComponent, KindER}
	for i, p := range got {
		if p.Kind() != want[i] {
			t.Errorf("plugin %d: expected kind %q, got %q", i, want[i], p.Kind())
		}
		if p.FileName() != want[i]+".mmd" {
			t.Errorf("plugin %d: unexpected file name %q", i, p.FileName())
		}
	}
}

func TestRender(t *testing.T) {
	m := &ir.Model{Files: []*ir.FileRecord{ir.NewFileRecord("/src/a.js")}}
	ctx := context.Background()

	out, err := NewClass().Render(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if out != diagram.RenderClass(m) {
		t.Error("class plugin output differs from RenderClass")
	}

	out, err = NewComponent().Render(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "classDiagram") {
		t.Errorf("unexpected component output: %q", out)
	}

	out, err = NewER(nil).Render(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "erDiagram") {
		t.Errorf("unexpected er output: %q", out)
	}
}

func TestRender_CustomERTables(t *testing.T) {
	er := diagram.NewER()
	er.Fallback = []string{"Account"}

	out, err := NewER(er).Render(context.Background(), &ir.Model{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Account {") || strings.Contains(out, "User {") {
		t.Errorf("custom fallback not applied: %q", out)
	}
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClass().Render(ctx, &ir.Model{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
