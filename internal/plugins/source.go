package plugins

import (
	"context"

	"github.com/efebarandurmaz/codechart/internal/ir"
)

// SourceFile represents a single input file to be analyzed.
type SourceFile struct {
	Path string
	// Root is the analysis root Path was discovered under. It may be empty.
	Root    string
	Content []byte
}

// SourcePlugin extracts lexical facts from files of one language family.
type SourcePlugin interface {
	// Language returns the source language identifier (e.g. "javascript").
	Language() string
	// Extract builds a record for one file. It never fails: content that
	// cannot be decoded yields a degraded record.
	Extract(ctx context.Context, file SourceFile) *ir.FileRecord
	// ResolveDependencies turns the record's relative imports into edges,
	// checking candidates on disk next to rec.Path. Edge paths are made
	// relative to root.
	ResolveDependencies(ctx context.Context, rec *ir.FileRecord, root string)
}

// FileExtensionsProvider is an optional interface for source plugins to declare
// which file extensions they can parse (e.g. []string{".js",".ts"}).
//
// When not implemented, the Cartographer falls back to the discovery defaults.
type FileExtensionsProvider interface {
	FileExtensions() []string
}
