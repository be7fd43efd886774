// Package vcs reads version-control metadata for analyzed files and fetches
// remote repositories for analysis.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned by Open when no repository encloses the path.
var ErrNotRepository = errors.New("not a git repository")

// History answers "when was this file last committed". Implementations
// return nil when the answer is unknown.
type History interface {
	LastModified(ctx context.Context, path string) *time.Time
}

// NoHistory is a History that knows nothing.
type NoHistory struct{}

func (NoHistory) LastModified(context.Context, string) *time.Time { return nil }

// Repo wraps an opened working tree. go-git repositories are not safe for
// concurrent log walks, so lookups are serialized.
type Repo struct {
	mu   sync.Mutex
	repo *gogit.Repository
	root string
}

// Open finds the repository enclosing path, walking up parent directories.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, abs)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return &Repo{repo: repo, root: wt.Filesystem.Root()}, nil
}

// OpenHistory returns a History for path, or NoHistory when path is not
// inside a repository.
func OpenHistory(path string) History {
	r, err := Open(path)
	if err != nil {
		return NoHistory{}
	}
	return r
}

// Root returns the working tree directory.
func (r *Repo) Root() string { return r.root }

// LastModified returns the committer time of the most recent commit that
// touched path. Untracked files, files outside the worktree and any git
// failure all yield nil.
func (r *Repo) LastModified(ctx context.Context, path string) *time.Time {
	if ctx.Err() != nil {
		return nil
	}
	rel, ok := r.relative(path)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	iter, err := r.repo.Log(&gogit.LogOptions{
		FileName: &rel,
		Order:    gogit.LogOrderCommitterTime,
	})
	if err != nil {
		return nil
	}
	defer iter.Close()

	var when *time.Time
	err = iter.ForEach(func(c *object.Commit) error {
		t := c.Committer.When
		when = &t
		return io.EOF
	})
	if err != nil && err != io.EOF {
		return nil
	}
	return when
}

func (r *Repo) relative(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// CloneOptions tunes Clone.
type CloneOptions struct {
	// Depth limits history; zero fetches everything. Shallow clones still
	// carry last-commit dates for files touched inside the window.
	Depth    int
	Progress io.Writer
}

// Clone fetches url into dir and returns the opened repository.
func Clone(ctx context.Context, url, dir string, opts CloneOptions) (*Repo, error) {
	if url == "" {
		return nil, errors.New("clone: empty url")
	}
	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:          url,
		Depth:        opts.Depth,
		SingleBranch: true,
		Progress:     opts.Progress,
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return &Repo{repo: repo, root: wt.Filesystem.Root()}, nil
}

// RepoName derives a display name from a clone URL or a local path.
func RepoName(source string) string {
	s := strings.TrimRight(source, "/\\")
	s = strings.TrimSuffix(s, ".git")
	if i := strings.LastIndexAny(s, "/\\:"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "repository"
	}
	return s
}

// IsRemote reports whether source looks like something Clone can fetch
// rather than a local directory.
func IsRemote(source string) bool {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "git@"} {
		if strings.HasPrefix(source, prefix) {
			return true
		}
	}
	return false
}
