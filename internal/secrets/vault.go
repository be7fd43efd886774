package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// VaultConfig points at a KV v2 secret holding every codechart key.
type VaultConfig struct {
	Address    string
	Token      string
	MountPath  string
	SecretPath string
	Timeout    time.Duration
}

// VaultProvider reads one KV v2 secret and serves keys from it. The secret is
// fetched on first use.
type VaultProvider struct {
	config VaultConfig
	client *http.Client

	mu   sync.Mutex
	data map[string]any
}

func NewVaultProvider(cfg *VaultConfig) (*VaultProvider, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("vault address required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token required")
	}
	c := *cfg
	if c.MountPath == "" {
		c.MountPath = "secret"
	}
	if c.SecretPath == "" {
		c.SecretPath = "codechart"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	return &VaultProvider{config: c, client: &http.Client{Timeout: c.Timeout}}, nil
}

func (p *VaultProvider) Name() string { return "vault" }

func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data == nil {
		data, err := p.fetch(ctx)
		if err != nil {
			return "", err
		}
		p.data = data
	}
	val, ok := p.data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", val), nil
}

func (p *VaultProvider) fetch(ctx context.Context) (map[string]any, error) {
	url := fmt.Sprintf("%s/v1/%s/data/%s",
		strings.TrimSuffix(p.config.Address, "/"), p.config.MountPath, p.config.SecretPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", p.config.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: vault path %s", ErrNotFound, p.config.SecretPath)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("vault error %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Data.Data == nil {
		return map[string]any{}, nil
	}
	return result.Data.Data, nil
}
