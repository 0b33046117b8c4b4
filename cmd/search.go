package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var searchMaxResults int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base and print ranked articles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchMaxResults, "max-results", "n", 0, "maximum results (0 = configured default)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, query string) error {
	a, err := buildApp()
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	max := searchMaxResults
	if max <= 0 {
		max = a.cfg.Search.MaxResults
	}

	articles, err := a.engine.Search(cmd.Context(), query, max)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(articles) == 0 {
		fmt.Fprintln(os.Stdout, "no matching articles")
		return nil
	}

	for i, art := range articles {
		fmt.Fprintf(os.Stdout, "%2d. %s\n", i+1, art.Title)
		fmt.Fprintf(os.Stdout, "    %s | %s\n", art.Category, art.URL)
	}
	return nil
}
