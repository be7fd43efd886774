package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/codechart/internal/config"
	"github.com/efebarandurmaz/codechart/internal/depgraph"
	"github.com/efebarandurmaz/codechart/internal/llm"
	"github.com/efebarandurmaz/codechart/internal/llm/providers"
	"github.com/efebarandurmaz/codechart/internal/observability"
	"github.com/efebarandurmaz/codechart/internal/pipeline"
	"github.com/efebarandurmaz/codechart/internal/tui"
)

var version = "dev"

type analyzeOptions struct {
	configPath  string
	repo        string
	outputPath  string
	graphFormat string
	jsonReport  bool
	noHistory   bool
	showStats   bool
	interactive bool
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "codechart",
		Short:        "Class, component and ER diagrams from JavaScript/TypeScript sources",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/codechart.yaml", "Config file path")

	var opts analyzeOptions
	analyzeCmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a local tree or a git repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = configPath
			if len(args) == 1 {
				if opts.repo != "" {
					return fmt.Errorf("give either a path argument or --repo, not both")
				}
				opts.repo = args[0]
			}
			if opts.repo == "" {
				return fmt.Errorf("nothing to analyze: pass a path or --repo <url>")
			}
			return runAnalyze(cmd.Context(), opts)
		},
	}
	analyzeCmd.Flags().StringVar(&opts.repo, "repo", "", "Git URL or local directory to analyze")
	analyzeCmd.Flags().StringVar(&opts.outputPath, "output", "", "Directory for .mmd files and result.json")
	analyzeCmd.Flags().StringVar(&opts.graphFormat, "format", "", "Also export the file dependency graph: dot, mermaid or json")
	analyzeCmd.Flags().BoolVar(&opts.jsonReport, "json", false, "Print the result as JSON instead of the report")
	analyzeCmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the analysis in history")
	analyzeCmd.Flags().BoolVar(&opts.showStats, "stats", false, "Print dependency graph statistics")
	analyzeCmd.Flags().BoolVar(&opts.interactive, "tui", false, "Show live progress, then browse the result")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			names := providers.NewFactory().Names()
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for _, name := range names {
				url := llm.KnownProviders[name]
				if name == "custom" {
					url = "(set base_url to any OpenAI-compatible endpoint)"
				}
				fmt.Printf("  %-14s %s\n", name, url)
			}
			fmt.Println("  none           (run without LLM: every file is categorized \"other\")")
			fmt.Println()
			fmt.Println("Configure in codechart.yaml or via environment:")
			fmt.Println("  CODECHART_LLM_PROVIDER=groq")
			fmt.Println("  CODECHART_LLM_API_KEY=gsk_...")
			fmt.Println("  CODECHART_LLM_MODEL=llama-3.3-70b-versatile")
		},
	}

	var topK int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed file summaries (requires a vector store)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), configPath, args[0], topK)
		},
	}
	searchCmd.Flags().IntVar(&topK, "top", 5, "Number of results")

	browseCmd := &cobra.Command{
		Use:   "browse <result.json>",
		Short: "Browse a saved analysis result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := tui.LoadResult(args[0])
			if err != nil {
				return err
			}
			return tui.Browse(res)
		},
	}

	rootCmd.AddCommand(analyzeCmd, browseCmd, newHistoryCmd(&configPath), newServeCmd(&configPath), providersCmd, searchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = config.Default()
	}
	for _, w := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	return cfg
}

func runAnalyze(ctx context.Context, opts analyzeOptions) error {
	if opts.interactive && opts.jsonReport {
		return fmt.Errorf("--tui and --json cannot be combined")
	}
	cfg := loadConfig(opts.configPath)
	var logOut io.Writer = os.Stderr
	if opts.interactive {
		// The progress screen owns the terminal.
		logOut = io.Discard
	}
	logger := observability.NewLogger(logOut, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tracingCfg.SampleRate = cfg.Telemetry.SampleRate
	tp, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	if opts.noHistory {
		cfg.History.Path = ""
	}
	assembly, err := pipeline.FromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer assembly.Close()

	p := assembly.Pipeline
	if !opts.jsonReport && !opts.interactive {
		p.Progress = os.Stdout
		if assembly.Provider == nil {
			fmt.Println("Running without LLM (default categories)")
		} else {
			fmt.Printf("Using LLM provider: %s\n", assembly.Provider.Name())
		}
	}

	req := pipeline.Request{Source: opts.repo}
	var res *pipeline.Result
	if opts.interactive {
		res, err = tui.RunAnalysis(ctx, p, req)
	} else {
		res, err = p.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	if opts.outputPath != "" {
		written, err := res.WriteFiles(opts.outputPath, opts.graphFormat)
		if err != nil {
			return err
		}
		if !opts.jsonReport && !opts.interactive {
			fmt.Printf("\nWrote %d files to %s\n", len(written), opts.outputPath)
		}
	}

	if path := cfg.Telemetry.MetricsFile; path != "" {
		if err := observability.Metrics().WriteTextfile(path); err != nil {
			logger.Warn("metrics textfile not written", "path", path, "error", err)
		}
	}

	if opts.interactive {
		return tui.Browse(res)
	}
	if opts.jsonReport {
		data, err := res.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if opts.showStats {
		fmt.Println()
		fmt.Print(depgraph.FormatStats(res.Graph))
	}
	res.Metrics.PrintSummary(os.Stdout)
	if p.History != nil {
		fmt.Printf("Analysis id: %s\n", res.AnalysisID)
	}
	return nil
}

func runSearch(ctx context.Context, configPath, query string, topK int) error {
	cfg := loadConfig(configPath)
	cfg.History.Path = ""
	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	assembly, err := pipeline.FromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer assembly.Close()

	idx := assembly.Pipeline.VectorDB
	if idx == nil {
		return fmt.Errorf("no vector store available (set vector.host and an embedding-capable provider)")
	}
	results, err := idx.Search(ctx, query, topK)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	for _, r := range results {
		fmt.Printf("%.3f  %-30s %s\n", r.Score, r.Path(), r.Content)
	}
	return nil
}
