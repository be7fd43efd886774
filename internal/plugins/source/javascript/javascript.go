// Package javascript extracts functions, imports and coding-practice tags
// from JavaScript and TypeScript sources.
//
// Extraction is lexical and best effort. Patterns are matched against raw
// text, so identifiers inside comments or string literals may be picked up,
// and unusual syntax may be missed.
package javascript

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/plugins"
)

// Practice tags, in detection order.
const (
	PracticeAsyncAwait     = "Uses async/await"
	PracticePromises       = "Uses Promises"
	PracticeReactHooks     = "Uses React Hooks"
	PracticeArrayIteration = "Uses array iteration"
	PracticeNone           = "No specific pattern detected"
)

// ResolveExtensions is the preference order used when a relative import is
// written without an extension.
var ResolveExtensions = []string{".js", ".jsx", ".ts", ".tsx"}

// Plugin implements plugins.SourcePlugin for JavaScript and TypeScript.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Language() string { return "javascript" }

func (p *Plugin) FileExtensions() []string {
	return []string{".js", ".jsx", ".ts", ".tsx"}
}

var (
	// function foo(, async function foo(, function* gen(
	funcDeclPattern = regexp.MustCompile(`\bfunction\s*\*?\s*([A-Za-z_$][\w$]*)\s*(?:<[^>]*>)?\s*\(`)

	// const foo = () =>, let bar = async x =>, const baz = (a: T): R =>
	arrowPattern = regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s*)?(?:\([^()]*\)|[A-Za-z_$][\w$]*)\s*(?::[^=;]+)?=>`)

	importFromPattern    = regexp.MustCompile(`\bimport\s+[^'";]*?\bfrom\s*['"]([^'"\n]+)['"]`)
	importBarePattern    = regexp.MustCompile(`\bimport\s*['"]([^'"\n]+)['"]`)
	exportFromPattern    = regexp.MustCompile(`\bexport\s+[^'";]*?\bfrom\s*['"]([^'"\n]+)['"]`)
	requirePattern       = regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"\n]+)['"]\s*\)`)
	dynamicImportPattern = regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"\n]+)['"]\s*\)`)

	asyncPattern     = regexp.MustCompile(`\basync\b|\bawait\b`)
	promisePattern   = regexp.MustCompile(`\.then\s*\(`)
	hookPattern      = regexp.MustCompile(`\buseEffect\s*\(`)
	iterationPattern = regexp.MustCompile(`\.(?:map|filter|reduce|forEach)\s*\(`)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extract builds the lexical facts of one file. Category and summary are
// left at their defaults; classification happens elsewhere.
func (p *Plugin) Extract(ctx context.Context, f plugins.SourceFile) *ir.FileRecord {
	content := bytes.TrimPrefix(f.Content, utf8BOM)
	if !utf8.Valid(content) {
		return ir.NewDegradedRecordAt(f.Root, f.Path, "content is not valid UTF-8")
	}
	src := string(content)

	rec := ir.NewFileRecordAt(f.Root, f.Path)
	rec.Functions = matchOrdered(src, funcDeclPattern, arrowPattern)
	rec.Libraries = matchOrdered(src,
		importFromPattern,
		importBarePattern,
		exportFromPattern,
		requirePattern,
		dynamicImportPattern,
	)
	rec.Practices = DetectPractices(src)
	rec.Metrics.LOC = CountLines(src)
	return rec
}

// ResolveDependencies records one edge for every relative import that
// resolves to an existing source file. Unresolved imports are dropped
// silently.
func (p *Plugin) ResolveDependencies(ctx context.Context, rec *ir.FileRecord, root string) {
	dir := filepath.Dir(rec.Path)
	for _, lib := range rec.Libraries {
		if ctx.Err() != nil {
			return
		}
		if !IsRelative(lib) {
			continue
		}
		target, ok := Resolve(dir, lib)
		if !ok {
			continue
		}
		rec.Dependencies = append(rec.Dependencies, ir.DependencyEdge{
			From:         rec.Name,
			To:           filepath.Base(target),
			RelativePath: lib,
			FromPath:     rec.Key(),
			ToPath:       ir.RelativeTo(root, target),
		})
	}
}

// IsRelative reports whether an import specifier points into the local tree.
func IsRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// Resolve maps a relative specifier to a file on disk. The specifier is
// tried as written, then with each of ResolveExtensions appended, then as a
// directory index. The first existing file with a recognized extension wins.
func Resolve(dir, spec string) (string, bool) {
	base := filepath.Join(dir, filepath.FromSlash(spec))

	candidates := make([]string, 0, 1+2*len(ResolveExtensions))
	candidates = append(candidates, base)
	for _, ext := range ResolveExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range ResolveExtensions {
		candidates = append(candidates, filepath.Join(base, "index"+ext))
	}

	for _, c := range candidates {
		if !recognized(c) {
			continue
		}
		info, err := os.Stat(c)
		if err == nil && info.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

// DetectPractices returns the practice tags found in src. The result is
// never empty.
func DetectPractices(src string) []string {
	var tags []string
	if asyncPattern.MatchString(src) {
		tags = append(tags, PracticeAsyncAwait)
	}
	if promisePattern.MatchString(src) {
		tags = append(tags, PracticePromises)
	}
	if hookPattern.MatchString(src) {
		tags = append(tags, PracticeReactHooks)
	}
	if iterationPattern.MatchString(src) {
		tags = append(tags, PracticeArrayIteration)
	}
	if len(tags) == 0 {
		tags = append(tags, PracticeNone)
	}
	return tags
}

// CountLines counts lines the way a line splitter would: a trailing newline
// does not start a new line and empty content has zero lines.
func CountLines(src string) int {
	if src == "" {
		return 0
	}
	n := strings.Count(src, "\n")
	if !strings.HasSuffix(src, "\n") {
		n++
	}
	return n
}

func recognized(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ResolveExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

type match struct {
	pos  int
	text string
}

// matchOrdered collects the first capture group of every pattern, ordered by
// position in src and deduplicated on first occurrence.
func matchOrdered(src string, patterns ...*regexp.Regexp) []string {
	var found []match
	for _, re := range patterns {
		for _, loc := range re.FindAllStringSubmatchIndex(src, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			found = append(found, match{pos: loc[2], text: src[loc[2]:loc[3]]})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	out := make([]string, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, m := range found {
		if seen[m.text] {
			continue
		}
		seen[m.text] = true
		out = append(out, m.text)
	}
	return out
}
