package javascript

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

func extract(t *testing.T, path, src string) *ir.FileRecord {
	t.Helper()
	return New().Extract(context.Background(), plugins.SourceFile{Path: path, Content: []byte(src)})
}

func TestExtract_Functions(t *testing.T) {
	src := `
function foo() {}
export async function loadUser(id) {}
export default function App() {}
function* walk(tree) {}
const bar = () => {};
let baz = async (a, b) => a + b;
var single = x => x * 2;
const typed = (req: Request): Promise<void> => {};
const notAFunction = compute(1, 2);
function foo() {}
`
	rec := extract(t, "/src/a.js", src)

	if got, want := rec.Functions, []string{"foo", "loadUser", "App", "walk", "bar", "baz", "single", "typed"}; !reflect.DeepEqual(got, want) {
		t.Errorf("functions = %v, want %v", got, want)
	}
}

func TestExtract_Imports(t *testing.T) {
	src := `import React, { useState } from 'react';
import type { User } from "./types";
import {
  a,
  b,
} from '../lib/helpers';
import './styles.css';
export { thing } from './thing';
const fs = require("fs");
const lazy = () => import('./lazy');
import React2 from 'react';
`
	rec := extract(t, "/src/a.tsx", src)

	if got, want := rec.Libraries, []string{"react", "./types", "../lib/helpers", "./styles.css", "./thing", "fs", "./lazy"}; !reflect.DeepEqual(got, want) {
		t.Errorf("libraries = %v, want %v", got, want)
	}
}

func TestExtract_NoMatchesIsNotAnError(t *testing.T) {
	rec := extract(t, "/src/empty.js", "// nothing here\n")

	if rec.Degraded {
		t.Errorf("record degraded: %s", rec.Error)
	}
	if len(rec.Functions) != 0 || len(rec.Libraries) != 0 {
		t.Errorf("functions = %v, libraries = %v; want none", rec.Functions, rec.Libraries)
	}
	if got, want := rec.Practices, []string{PracticeNone}; !reflect.DeepEqual(got, want) {
		t.Errorf("practices = %v, want %v", got, want)
	}
	if rec.Category != ir.DefaultCategory || rec.Name != "empty.js" {
		t.Errorf("category = %q, name = %q", rec.Category, rec.Name)
	}
}

func TestExtract_InvalidUTF8IsDegraded(t *testing.T) {
	rec := New().Extract(context.Background(), plugins.SourceFile{
		Path:    "/src/bin.js",
		Content: []byte{0xff, 0xfe, 0x00, 'a'},
	})

	if !rec.Degraded || rec.Category != ir.UnreadableCategory {
		t.Errorf("degraded = %v, category = %q", rec.Degraded, rec.Category)
	}
	if len(rec.Functions)+len(rec.Libraries)+len(rec.Dependencies) != 0 {
		t.Errorf("degraded record carries facts: %+v", rec)
	}
}

func TestExtract_StripsBOM(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("function foo() {}\n")...)
	rec := New().Extract(context.Background(), plugins.SourceFile{Path: "/a.js", Content: content})

	if rec.Degraded {
		t.Errorf("record degraded: %s", rec.Error)
	}
	if got, want := rec.Functions, []string{"foo"}; !reflect.DeepEqual(got, want) {
		t.Errorf("functions = %v, want %v", got, want)
	}
}

func TestDetectPractices(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"none", "const a = 1;", []string{PracticeNone}},
		{"async", "async function f() { await g(); }", []string{PracticeAsyncAwait}},
		{"promise", "fetch(u).then(r => r.json())", []string{PracticePromises}},
		{"hook", "useEffect(() => {}, [])", []string{PracticeReactHooks}},
		{"iteration", "xs.map(x => x).filter(Boolean)", []string{PracticeArrayIteration}},
		{
			"all in fixed order",
			"xs.forEach(f); useEffect(() => {}); p.then(f); await x;",
			[]string{PracticeAsyncAwait, PracticePromises, PracticeReactHooks, PracticeArrayIteration},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectPractices(tt.src); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectPractices = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
		{"\n\n", 2},
	}
	for _, tt := range tests {
		if got := CountLines(tt.src); got != tt.want {
			t.Errorf("CountLines(%q) = %d, want %d", tt.src, got, tt.want)
		}
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestResolveDependencies(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.js":          "",
		"src/b.js":          "",
		"src/c.ts":          "",
		"src/c.js":          "",
		"src/lib/index.tsx": "",
		"src/styles.css":    "",
		"shared/util.jsx":   "",
		"src/explicit.ts":   "",
	})
	p := New()
	rec := ir.NewFileRecordAt(root, filepath.Join(root, "src", "a.js"))
	rec.Libraries = []string{
		"./b",
		"./c",
		"./lib",
		"./styles.css",
		"../shared/util",
		"./explicit.ts",
		"./missing",
		"react",
		"@scope/pkg",
	}

	p.ResolveDependencies(context.Background(), rec, root)

	want := []ir.DependencyEdge{
		{From: "a.js", To: "b.js", RelativePath: "./b", FromPath: "src/a.js", ToPath: "src/b.js"},
		{From: "a.js", To: "c.js", RelativePath: "./c", FromPath: "src/a.js", ToPath: "src/c.js"},
		{From: "a.js", To: "index.tsx", RelativePath: "./lib", FromPath: "src/a.js", ToPath: "src/lib/index.tsx"},
		{From: "a.js", To: "util.jsx", RelativePath: "../shared/util", FromPath: "src/a.js", ToPath: "shared/util.jsx"},
		{From: "a.js", To: "explicit.ts", RelativePath: "./explicit.ts", FromPath: "src/a.js", ToPath: "src/explicit.ts"},
	}
	if !reflect.DeepEqual(rec.Dependencies, want) {
		t.Errorf("edges = %+v\nwant %+v", rec.Dependencies, want)
	}
}

func TestResolveDependencies_WithoutRootUsesBasenames(t *testing.T) {
	root := writeTree(t, map[string]string{"a.js": "", "b.js": ""})
	rec := ir.NewFileRecord(filepath.Join(root, "a.js"))
	rec.Libraries = []string{"./b"}

	New().ResolveDependencies(context.Background(), rec, "")

	want := []ir.DependencyEdge{{From: "a.js", To: "b.js", RelativePath: "./b", FromPath: "a.js", ToPath: "b.js"}}
	if !reflect.DeepEqual(rec.Dependencies, want) {
		t.Errorf("edges = %+v, want %+v", rec.Dependencies, want)
	}
}

func TestResolve_PrefersFixedExtensionOrder(t *testing.T) {
	root := writeTree(t, map[string]string{
		"x.tsx": "",
		"x.ts":  "",
		"x.jsx": "",
	})

	got, ok := Resolve(root, "./x")
	if !ok {
		t.Fatal("./x did not resolve")
	}
	if filepath.Base(got) != "x.jsx" {
		t.Errorf("resolved %s, want x.jsx", got)
	}
}

func TestResolve_DirectoryIsNotAFile(t *testing.T) {
	root := writeTree(t, map[string]string{"pkg.js/readme.md": ""})

	if got, ok := Resolve(root, "./pkg.js"); ok {
		t.Errorf("directory resolved as a file: %s", got)
	}
}

func TestIsRelative(t *testing.T) {
	for spec, want := range map[string]bool{
		"./a":     true,
		"../a":    true,
		".":       true,
		"react":   false,
		"@x/y":    false,
		"/abs/a":  false,
		".hidden": false,
	} {
		if got := IsRelative(spec); got != want {
			t.Errorf("IsRelative(%q) = %v, want %v", spec, got, want)
		}
	}
}

func TestTwoFileScenario(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.js": "import './b'\nfunction foo(){}\n",
		"b.js": "const bar = () => {}\n",
	})
	p := New()

	var edges []ir.DependencyEdge
	for _, name := range []string{"a.js", "b.js"} {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		rec := p.Extract(context.Background(), plugins.SourceFile{Path: path, Root: root, Content: data})
		p.ResolveDependencies(context.Background(), rec, root)
		edges = append(edges, rec.Dependencies...)

		want := map[string][]string{"a.js": {"foo"}, "b.js": {"bar"}}[name]
		if !reflect.DeepEqual(rec.Functions, want) {
			t.Errorf("%s functions = %v, want %v", name, rec.Functions, want)
		}
	}

	want := []ir.DependencyEdge{{From: "a.js", To: "b.js", RelativePath: "./b", FromPath: "a.js", ToPath: "b.js"}}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("edges = %+v, want %+v", edges, want)
	}
}
