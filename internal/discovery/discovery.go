// Package discovery walks a source tree and selects the JavaScript and
// TypeScript files that the extractor understands.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// ErrRootNotFound is returned when the root cannot be enumerated at all.
// It is the only discovery error that aborts a run.
var ErrRootNotFound = errors.New("source root not found")

// DefaultExtensions are the file extensions handed to the extractor.
var DefaultExtensions = []string{".js", ".jsx", ".ts", ".tsx"}

// DefaultIgnore holds directory globs that never contain project sources.
var DefaultIgnore = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/.next/**",
	"**/coverage/**",
}

// Options configures a walk. Zero values fall back to the defaults above.
type Options struct {
	Extensions   []string
	Ignore       []string
	MaxFileBytes int64
	Logger       *slog.Logger
}

// Skip records a path that was not visited and why.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the outcome of a walk. Files are sorted lexicographically so
// that downstream output is reproducible.
type Result struct {
	Root    string   `json:"root"`
	Files   []string `json:"files"`
	Skipped []Skip   `json:"skipped,omitempty"`
}

// Walk recursively collects candidate files under root. Unreadable
// subtrees are skipped and reported; only a missing or non-directory root
// is an error.
func Walk(root string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootNotFound, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, root)
	}

	exts := extensionSet(opts.Extensions)
	patterns := opts.Ignore
	if patterns == nil {
		patterns = DefaultIgnore
	}
	ignore, err := compileGlobs(patterns)
	if err != nil {
		return nil, err
	}

	res := &Result{Root: root}
	skip := func(path, reason string) {
		res.Skipped = append(res.Skipped, Skip{Path: path, Reason: reason})
		logger.Warn("discovery: skipping path", "path", path, "reason", reason)
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			skip(p, walkErr.Error())
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p != root && matchesAny(ignore, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		if matchesAny(ignore, rel) {
			return nil
		}
		if opts.MaxFileBytes > 0 {
			fi, err := d.Info()
			if err != nil {
				skip(p, err.Error())
				return nil
			}
			if fi.Size() > opts.MaxFileBytes {
				skip(p, fmt.Sprintf("file size %d exceeds limit %d", fi.Size(), opts.MaxFileBytes))
				return nil
			}
		}
		res.Files = append(res.Files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootNotFound, root, err)
	}

	sort.Strings(res.Files)
	return res, nil
}

// HasExtension reports whether path carries one of the given extensions.
func HasExtension(path string, exts []string) bool {
	return extensionSet(exts)[strings.ToLower(filepath.Ext(path))]
}

func extensionSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	out := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(strings.ToLower(ext))
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		out[ext] = true
	}
	return out
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		m, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

// matchesAny tests rel both as-is and anchored with a leading slash, so that
// "**/node_modules/**" also matches a top-level node_modules directory.
func matchesAny(matchers []glob.Glob, rel string) bool {
	for _, m := range matchers {
		if m.Match(rel) || m.Match("/"+rel) {
			return true
		}
	}
	return false
}
