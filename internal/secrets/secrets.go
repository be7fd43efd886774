// Package secrets resolves credentials referenced from configuration.
//
// A config value of the form "secret:<key>" is looked up through a Manager
// instead of being used literally, so API keys and database passwords can
// live in the environment, a local JSON file or Vault.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// RefPrefix marks a config value as a secret reference.
const RefPrefix = "secret:"

// Well-known keys.
const (
	KeyLLMAPIKey     = "llm_api_key"
	KeyNeo4jPassword = "neo4j_password"
	KeyQdrantAPIKey  = "qdrant_api_key"
)

// ErrNotFound is returned when no provider holds the key.
var ErrNotFound = errors.New("secret not found")

// Provider is a secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

// Config selects the backend.
type Config struct {
	// Provider is "env" (default), "file" or "vault".
	Provider string
	// EnvPrefix defaults to "CODECHART_".
	EnvPrefix string
	File      string
	Vault     *VaultConfig
}

// Manager looks keys up in the primary provider, then in the environment,
// and caches hits.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager builds a manager for cfg. A nil cfg reads the environment only.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	env := NewEnvProvider(cfg.EnvPrefix)

	var primary Provider
	switch cfg.Provider {
	case "", "env":
		return &Manager{primary: env, cache: make(map[string]string)}, nil
	case "file":
		p, err := NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("file secrets: %w", err)
		}
		primary = p
	case "vault":
		p, err := NewVaultProvider(cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("vault secrets: %w", err)
		}
		primary = p
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}
	return &Manager{primary: primary, fallback: env, cache: make(map[string]string)}, nil
}

// Get returns the value for key.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	var errs []error
	for _, p := range []Provider{m.primary, m.fallback} {
		if p == nil {
			continue
		}
		val, err := p.Get(ctx, key)
		if err == nil && val != "" {
			m.mu.Lock()
			m.cache[key] = val
			m.mu.Unlock()
			return val, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Resolve returns value unchanged unless it is a "secret:<key>" reference,
// in which case the referenced secret is returned.
func (m *Manager) Resolve(ctx context.Context, value string) (string, error) {
	key, ok := strings.CutPrefix(value, RefPrefix)
	if !ok {
		return value, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	return m.Get(ctx, key)
}

// EnvProvider reads PREFIX_KEY, then KEY, from the environment.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "CODECHART_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	name := strings.ToUpper(key)
	if val := os.Getenv(p.prefix + name); val != "" {
		return val, nil
	}
	if val := os.Getenv(name); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%w: %s%s", ErrNotFound, p.prefix, name)
}
