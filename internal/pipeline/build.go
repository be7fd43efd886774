package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/efebarandurmaz/codechart/internal/classify"
	"github.com/efebarandurmaz/codechart/internal/config"
	"github.com/efebarandurmaz/codechart/internal/discovery"
	"github.com/efebarandurmaz/codechart/internal/graph/neo4j"
	"github.com/efebarandurmaz/codechart/internal/history"
	"github.com/efebarandurmaz/codechart/internal/llm"
	"github.com/efebarandurmaz/codechart/internal/llm/providers"
	"github.com/efebarandurmaz/codechart/internal/redact"
	"github.com/efebarandurmaz/codechart/internal/secrets"
	"github.com/efebarandurmaz/codechart/internal/vector"
	"github.com/efebarandurmaz/codechart/internal/vector/qdrant"
)

// Assembly is a configured pipeline plus the connections it owns.
type Assembly struct {
	Pipeline *Pipeline
	// Provider is the classification provider, nil when running without one.
	Provider llm.Provider
	// Warnings lists optional collaborators that could not be reached.
	Warnings []string

	closers []func() error
}

// Close releases every store connection.
func (a *Assembly) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FromConfig wires a pipeline from cfg. An unknown LLM provider is an error;
// unreachable graph and vector stores are left out and reported as warnings.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Assembly, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := resolveSecrets(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p := New()
	p.Logger = logger
	p.Workers = cfg.Analysis.Workers
	p.ClassifyTimeout = cfg.Analysis.ClassifyTimeout
	p.NarrativeTimeout = cfg.Analysis.NarrativeTimeout
	p.SummarySample = cfg.Analysis.SummarySample
	p.WorkDir = cfg.Analysis.WorkDir
	p.Discovery = discovery.Options{
		Ignore:       cfg.Discovery.Ignore,
		MaxFileBytes: cfg.Discovery.MaxFileBytes,
		Logger:       logger,
	}
	a := &Assembly{Pipeline: p}

	factory := providers.NewFactory()
	classifyProvider, err := factory.Create(providerConfig(cfg.LLM.ResolveForAgent("cartographer"), cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	narrateProvider, err := factory.Create(providerConfig(cfg.LLM.ResolveForAgent("aggregator"), cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	a.Provider = classifyProvider

	opts := classify.Options{
		Timeout:      cfg.Analysis.ClassifyTimeout,
		SnippetChars: cfg.Analysis.SnippetChars,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		Logger:       logger,
	}
	if cfg.Analysis.Redact {
		style, err := redact.ParseStyle(cfg.Analysis.RedactStyle)
		if err != nil {
			style = redact.StyleRedact
		}
		opts.Redactor = redact.New(redact.Config{Style: style})
	}
	if classifyProvider != nil {
		classifier, err := classify.NewCachedClassifier(classify.NewLLMClassifier(classifyProvider, opts), cfg.Analysis.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating classifier: %w", err)
		}
		p.Classifier = classifier
	}
	if narrateProvider != nil {
		p.Narrator = classify.NewLLMNarrator(narrateProvider, opts)
	}

	if cfg.Graph.URI != "" {
		repo, err := neo4j.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if err != nil {
			a.warn(logger, "graph store unavailable", err)
		} else {
			p.GraphDB = repo
			a.closers = append(a.closers, func() error { return repo.Close(context.Background()) })
		}
	}

	if cfg.Vector.Host != "" {
		embedder, ok := classifyProvider.(llm.Embedder)
		if !ok {
			a.warn(logger, "vector store disabled", llm.ErrEmbeddingsUnsupported)
		} else if idx, err := openIndexer(ctx, cfg.Vector, embedder); err != nil {
			a.warn(logger, "vector store unavailable", err)
		} else {
			p.VectorDB = idx
			a.closers = append(a.closers, idx.Close)
		}
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		p.History = store
		a.closers = append(a.closers, store.Close)
	}
	return a, nil
}

func (a *Assembly) warn(logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, "error", err)
	a.Warnings = append(a.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

// resolveSecrets returns a copy of cfg with every "secret:<key>" credential
// replaced by its value.
func resolveSecrets(ctx context.Context, cfg *config.Config) (*config.Config, error) {
	sc := cfg.Secrets
	mcfg := &secrets.Config{Provider: sc.Provider, File: sc.File}
	if sc.Provider == "vault" {
		mcfg.Vault = &secrets.VaultConfig{
			Address:    sc.VaultAddr,
			Token:      sc.VaultToken,
			MountPath:  sc.VaultMount,
			SecretPath: sc.VaultPath,
		}
	}
	m, err := secrets.NewManager(mcfg)
	if err != nil {
		return nil, err
	}

	out := *cfg
	fields := []struct {
		name string
		val  *string
	}{
		{"llm.api_key", &out.LLM.APIKey},
		{"graph.password", &out.Graph.Password},
	}
	if len(cfg.LLM.Agents) > 0 {
		out.LLM.Agents = make(map[string]config.LLMAgentOverride, len(cfg.LLM.Agents))
		for name, o := range cfg.LLM.Agents {
			if o.APIKey != "" {
				v, err := m.Resolve(ctx, o.APIKey)
				if err != nil {
					return nil, fmt.Errorf("llm.agents.%s.api_key: %w", name, err)
				}
				o.APIKey = v
			}
			out.LLM.Agents[name] = o
		}
	}
	for _, f := range fields {
		if *f.val == "" {
			continue
		}
		v, err := m.Resolve(ctx, *f.val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.val = v
	}
	return &out, nil
}

func providerConfig(c, base config.LLMConfig) llm.ProviderConfig {
	pc := llm.DefaultProviderConfig()
	pc.Provider = c.Provider
	pc.APIKey = c.APIKey
	pc.Model = c.Model
	pc.BaseURL = c.BaseURL
	pc.EmbedModel = base.EmbedModel
	pc.RequestsPerMinute = base.RequestsPerMinute
	return pc
}

func openIndexer(ctx context.Context, cfg config.VectorConfig, embedder llm.Embedder) (*vector.Indexer, error) {
	repo, err := qdrant.NewQdrant(ctx, cfg.Host, cfg.Port, cfg.Collection)
	if err != nil {
		return nil, err
	}
	if cfg.Dimension > 0 {
		if err := repo.EnsureCollection(ctx, cfg.Dimension); err != nil {
			repo.Close()
			return nil, err
		}
	}
	return vector.NewIndexer(embedder, repo), nil
}
