package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/codechart/internal/history"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored analyses",
	}

	var jsonOutput bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*configPath, func(s *history.Store) error {
				sums, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, sums)
				}
				printSummaries(os.Stdout, sums)
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*configPath, func(s *history.Store) error {
				rec, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					if len(rec.Result) > 0 {
						_, err := os.Stdout.Write(append(rec.Result, '\n'))
						return err
					}
					return printJSON(os.Stdout, rec)
				}
				printRecord(os.Stdout, rec)
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the stored result payload")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*configPath, func(s *history.Store) error {
				if err := s.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", args[0])
				return nil
			})
		},
	}

	diffCmd := &cobra.Command{
		Use:   "diff <old-id> [new-id]",
		Short: "Compare two analyses; new-id defaults to the latest run of the same repository",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(*configPath, func(s *history.Store) error {
				return runDiff(cmd.Context(), s, args)
			})
		},
	}

	historyCmd.AddCommand(listCmd, showCmd, deleteCmd, diffCmd)
	return historyCmd
}

func withStore(configPath string, fn func(*history.Store) error) error {
	cfg := loadConfig(configPath)
	if cfg.History.Path == "" {
		return fmt.Errorf("history is disabled (history.path is empty)")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runDiff(ctx context.Context, s *history.Store, args []string) error {
	oldRec, err := s.Get(ctx, args[0])
	if err != nil {
		return err
	}
	var newRec *history.Record
	if len(args) == 2 {
		newRec, err = s.Get(ctx, args[1])
	} else {
		newRec, err = s.Latest(ctx, oldRec.RepoName)
	}
	if err != nil {
		return err
	}
	fmt.Print(history.FormatDiff(history.Diff(oldRec, newRec)))
	return nil
}

func printSummaries(w io.Writer, sums []history.Summary) {
	if len(sums) == 0 {
		fmt.Fprintln(w, "No analyses recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREPOSITORY\tANALYZED\tSTATUS\tSCORE\tFILES")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%d\n",
			s.ID, s.RepoURL, s.AnalyzedAt.Format("2006-01-02 15:04:05"), s.Status, s.Score, s.FileCount)
	}
	tw.Flush()
}

func printRecord(w io.Writer, rec *history.Record) {
	fmt.Fprintf(w, "Analysis:   %s\n", rec.ID)
	fmt.Fprintf(w, "Repository: %s (%s)\n", rec.RepoName, rec.RepoURL)
	fmt.Fprintf(w, "Analyzed:   %s\n", rec.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Status:     %s (score %.2f)\n", rec.Status, rec.Score)

	fmt.Fprintln(w, "\nStages:")
	for _, st := range rec.Stages {
		fmt.Fprintf(w, "  %-14s %-12s %.2f  %s  %d llm calls\n", st.Name, st.Status, st.Score, st.Duration, st.LLMCalls)
	}

	fmt.Fprintf(w, "\nFiles (%d):\n", len(rec.Files))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range rec.Files {
		fmt.Fprintf(tw, "  %s\t%s\t%d lines\n", f.Path, f.Category, f.LOC)
	}
	tw.Flush()

	if len(rec.Diagrams) > 0 {
		fmt.Fprintln(w, "\nDiagrams:")
		for _, kind := range []string{"class", "component", "er"} {
			if content, ok := rec.Diagrams[kind]; ok {
				fmt.Fprintf(w, "  %-10s %d bytes\n", kind, len(content))
			}
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
