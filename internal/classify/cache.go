package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/efebarandurmaz/codechart/internal/observability"
)

// CachedClassifier memoizes successful classifications by content hash, so
// identical files (vendored copies, generated barrels) cost one call.
// Failures are not cached.
type CachedClassifier struct {
	inner Classifier
	cache *lru.Cache[string, Classification]
}

// NewCachedClassifier wraps inner with an LRU of the given size. A size of
// zero or less returns inner unchanged.
func NewCachedClassifier(inner Classifier, size int) (Classifier, error) {
	if size <= 0 {
		return inner, nil
	}
	cache, err := lru.New[string, Classification](size)
	if err != nil {
		return nil, err
	}
	return &CachedClassifier{inner: inner, cache: cache}, nil
}

func (c *CachedClassifier) Classify(ctx context.Context, path, snippet string) (Classification, error) {
	key := contentKey(snippet)
	if v, ok := c.cache.Get(key); ok {
		observability.Metrics().RecordCacheLookup(true)
		return v, nil
	}
	observability.Metrics().RecordCacheLookup(false)

	v, err := c.inner.Classify(ctx, path, snippet)
	if err != nil {
		return v, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached entries.
func (c *CachedClassifier) Len() int { return c.cache.Len() }

func contentKey(snippet string) string {
	sum := sha256.Sum256([]byte(snippet))
	return hex.EncodeToString(sum[:])
}
