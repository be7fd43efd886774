package ir

import (
	"path/filepath"
	"time"
)

// Category and summary values used when classification is unavailable.
const (
	DefaultCategory    = "other"
	DefaultSummary     = "No summary available."
	UnreadableCategory = "unreadable"
)

// FileRecord holds the facts extracted from a single source file. It is
// created once per discovered file and not modified after extraction.
type FileRecord struct {
	Path string `json:"path"`
	// RelPath is Path relative to the analysis root, slash separated.
	RelPath      string           `json:"rel_path"`
	Name         string           `json:"name"`
	Category     string           `json:"category"`
	Summary      string           `json:"summary"`
	Functions    []string         `json:"functions"`
	Libraries    []string         `json:"libraries"`
	Practices    []string         `json:"practices"`
	Metrics      FileMetrics      `json:"metrics"`
	Dependencies []DependencyEdge `json:"dependencies,omitempty"`

	// Degraded is set when the file could not be read or decoded.
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewFileRecord returns an empty record for path with the default category
// and summary set. Without a root the record is keyed by its basename.
func NewFileRecord(path string) *FileRecord {
	return NewFileRecordAt("", path)
}

// NewFileRecordAt is NewFileRecord for a file discovered under root.
func NewFileRecordAt(root, path string) *FileRecord {
	return &FileRecord{
		Path:      path,
		RelPath:   RelativeTo(root, path),
		Name:      filepath.Base(path),
		Category:  DefaultCategory,
		Summary:   DefaultSummary,
		Functions: []string{},
		Libraries: []string{},
		Practices: []string{},
	}
}

// NewDegradedRecord returns the record used for a file that could not be
// read or decoded. Its fact sets are empty.
func NewDegradedRecord(path string, reason string) *FileRecord {
	return NewDegradedRecordAt("", path, reason)
}

// NewDegradedRecordAt is NewDegradedRecord for a file discovered under root.
func NewDegradedRecordAt(root, path, reason string) *FileRecord {
	rec := NewFileRecordAt(root, path)
	rec.Category = UnreadableCategory
	rec.Summary = "File could not be analyzed: " + reason
	rec.Degraded = true
	rec.Error = reason
	return rec
}

// Key identifies the record within one analysis. Basenames may repeat
// across directories, root-relative paths do not.
func (f *FileRecord) Key() string {
	if f.RelPath != "" {
		return f.RelPath
	}
	return f.Name
}

// FileSummary returns the per-file entry stored in a category group.
func (f *FileRecord) FileSummary() FileSummary {
	return FileSummary{
		Name:      f.Name,
		Path:      f.Key(),
		Summary:   f.Summary,
		Functions: f.Functions,
		Libraries: f.Libraries,
		Practices: f.Practices,
		Metrics:   f.Metrics,
	}
}

// RelativeTo returns path relative to root with forward slashes. An empty
// root yields the basename.
func RelativeTo(root, path string) string {
	if root == "" {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// FileSummary is one file as listed under its category.
type FileSummary struct {
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Summary   string      `json:"summary"`
	Functions []string    `json:"functions"`
	Libraries []string    `json:"libraries"`
	Practices []string    `json:"practices"`
	Metrics   FileMetrics `json:"metrics"`
}

// FileMetrics are simple size and freshness measurements.
type FileMetrics struct {
	LOC          int        `json:"loc"`
	LastModified *time.Time `json:"last_commit"`
}

// DependencyEdge is a resolved relative import between two files. From and
// To are basenames; RelativePath is the import specifier as written.
// FromPath and ToPath are the endpoints' root-relative paths when known.
type DependencyEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelativePath string `json:"relative_path"`
	FromPath     string `json:"from_path,omitempty"`
	ToPath       string `json:"to_path,omitempty"`
}

// FromKey matches FileRecord.Key of the importing file.
func (e DependencyEdge) FromKey() string {
	if e.FromPath != "" {
		return e.FromPath
	}
	return e.From
}

// ToKey matches FileRecord.Key of the imported file.
func (e DependencyEdge) ToKey() string {
	if e.ToPath != "" {
		return e.ToPath
	}
	return e.To
}

// Model is the aggregated view of a whole run. It is produced once by a
// pure fold and shared read-only with every diagram renderer.
type Model struct {
	Files []*FileRecord `json:"files"`
	// Groups maps a category to its files' summaries, in file order.
	Groups map[string][]FileSummary `json:"files_by_category"`
	// CategoryOrder lists categories in first-seen order.
	CategoryOrder []string         `json:"category_order"`
	Edges         []DependencyEdge `json:"dependencies"`
	Summary       string           `json:"overall_summary"`
	KeyFlows      []string         `json:"key_flows"`
}

// FileByName returns the first record whose basename matches name.
func (m *Model) FileByName(name string) *FileRecord {
	for _, f := range m.Files {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FunctionCount returns the total number of extracted functions.
func (m *Model) FunctionCount() int {
	n := 0
	for _, f := range m.Files {
		n += len(f.Functions)
	}
	return n
}

// TotalLines returns the sum of LOC over all files.
func (m *Model) TotalLines() int {
	n := 0
	for _, f := range m.Files {
		n += f.Metrics.LOC
	}
	return n
}
