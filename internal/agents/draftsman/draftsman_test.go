package draftsman

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/agents/aggregator"
	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
	"github.com/efebarandurmaz/codechart/internal/plugins/target/mermaid"
)

func model() *ir.Model {
	a := ir.NewFileRecord("/src/userModel.js")
	a.Category = "Database"
	a.Functions = []string{"createUser"}
	a.Dependencies = []ir.DependencyEdge{{From: "userModel.js", To: "db.js", RelativePath: "./db"}}
	b := ir.NewFileRecord("/src/db.js")
	b.Category = "Utilities"
	return aggregator.Fold([]*ir.FileRecord{a, b})
}

func TestRun_RendersAllKinds(t *testing.T) {
	reg := plugins.NewRegistry()
	mermaid.RegisterDefaults(reg)

	res, err := New().Run(context.Background(), &agents.AgentContext{Model: model(), Registry: reg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != agents.StatusSuccess {
		t.Errorf("status = %v, want success", res.Status)
	}
	if len(res.Diagrams) != 3 {
		t.Fatalf("diagrams = %d, want 3", len(res.Diagrams))
	}

	byKind := map[string]plugins.Diagram{}
	for _, d := range res.Diagrams {
		byKind[d.Kind] = d
	}
	if !strings.HasPrefix(byKind["class"].Content, "classDiagram\n") {
		t.Errorf("class diagram header: %q", byKind["class"].Content)
	}
	if byKind["class"].FileName != "class.mmd" {
		t.Errorf("class file name = %q", byKind["class"].FileName)
	}
	if !strings.Contains(byKind["component"].Content, "..>") {
		t.Errorf("component diagram has no dependency arrow:\n%s", byKind["component"].Content)
	}
	if er := byKind["er"].Content; !strings.HasPrefix(er, "erDiagram\n") || !strings.Contains(er, "User {") {
		t.Errorf("er diagram:\n%s", er)
	}
}

type brokenPlugin struct{}

func (brokenPlugin) Kind() string     { return "broken" }
func (brokenPlugin) FileName() string { return "broken.mmd" }
func (brokenPlugin) Render(ctx context.Context, m *ir.Model) (string, error) {
	return "", errors.New("cannot draw")
}

func TestRun_FailingRendererIsPartial(t *testing.T) {
	reg := plugins.NewRegistry()
	reg.RegisterDiagram(mermaid.NewClass())
	reg.RegisterDiagram(brokenPlugin{})

	res, err := New().Run(context.Background(), &agents.AgentContext{Model: model(), Registry: reg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != agents.StatusPartial {
		t.Errorf("status = %v, want partial", res.Status)
	}
	if len(res.Diagrams) != 1 || res.Diagrams[0].Kind != "class" {
		t.Fatalf("diagrams = %+v", res.Diagrams)
	}
	if res.Score != 0.5 {
		t.Errorf("score = %v, want 0.5", res.Score)
	}
}

func TestRun_NoModel(t *testing.T) {
	res, err := New().Run(context.Background(), &agents.AgentContext{Registry: plugins.NewRegistry()})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Status != agents.StatusFailed {
		t.Errorf("status = %v, want failed", res.Status)
	}
}

func TestRun_Idempotent(t *testing.T) {
	reg := plugins.NewRegistry()
	mermaid.RegisterDefaults(reg)
	m := model()

	first, err := New().Run(context.Background(), &agents.AgentContext{Model: m, Registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	second, err := New().Run(context.Background(), &agents.AgentContext{Model: m, Registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Diagrams, second.Diagrams) {
		t.Error("diagrams differ between runs")
	}
}
