package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/search"
	"github.com/ca-srg/treesearch/internal/types"
)

var (
	searchCorpus     string
	searchPattern    string
	searchComponents []string
	searchContext    bool
	searchVariables  variablesFlag
	searchLimit      int
	searchCursorFile string
	searchAll        bool
	searchJSON       bool
	searchTimeout    time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search a corpus with an XPath pattern",
	Long: `
Search the components of a corpus and print one page of hits.

With --cursor the continuation state is read from and written back to a
file, so repeated invocations page through the whole corpus. With --all
pages are fetched until the search is exhausted.

Examples:
  # First 20 hits over every component
  treesearch search -c sonar -p '//node[@cat="np"]' --limit 20

  # Page through one component, keeping the cursor on disk
  treesearch search -c sonar -p '//node[@cat="np"]' --component WRPE --cursor np.cursor

  # Capture variables relative to the matched node
  treesearch search -c lassy -p '//node[@rel="su"]' --var '$head=node[@rel="hd"]' --json
`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchCorpus, "corpus", "c", "", "Corpus to search (required)")
	searchCmd.Flags().StringVarP(&searchPattern, "pattern", "p", "", "XPath pattern (required)")
	searchCmd.Flags().StringSliceVar(&searchComponents, "component", nil, "Components to search, in order (default: all)")
	searchCmd.Flags().BoolVar(&searchContext, "context", false, "Include the previous and next sentence")
	searchCmd.Flags().Var(&searchVariables, "var", "Variable as '$name=path', may be repeated")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Hits per page (default: SEARCH_BATCH_LIMIT)")
	searchCmd.Flags().StringVar(&searchCursorFile, "cursor", "", "File the cursor is read from and written to")
	searchCmd.Flags().BoolVar(&searchAll, "all", false, "Fetch pages until the search is exhausted")
	searchCmd.Flags().BoolVarP(&searchJSON, "json", "j", false, "Output results in JSON format")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 5*time.Minute, "Overall timeout")

	_ = searchCmd.MarkFlagRequired("corpus")
	_ = searchCmd.MarkFlagRequired("pattern")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout)
	defer cancel()

	svc, err := newServices(ctx, logger)
	if err != nil {
		return err
	}
	store, err := svc.openSearchLog()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	plan := types.SearchPlan{
		Pattern:     searchPattern,
		Corpus:      searchCorpus,
		WantContext: searchContext,
		Variables:   searchVariables,
	}

	cursor, resumed, err := loadCursor(searchCursorFile)
	if err != nil {
		return err
	}
	if !resumed {
		components, err := svc.componentsOrAll(searchCorpus, searchComponents)
		if err != nil {
			return err
		}
		cursor = types.NewCursor(reverse(components)...)
	}

	budget := searchLimit
	if budget <= 0 {
		budget = svc.cfg.SearchBatchLimit
	}

	for {
		page, err := svc.executor.Search(ctx, plan, cursor, budget)
		if err != nil {
			return err
		}
		if err := printPage(page); err != nil {
			return err
		}
		cursor = page.Cursor
		if err := saveCursor(searchCursorFile, cursor); err != nil {
			return err
		}
		if !searchAll || page.Done() {
			if page.Done() {
				logger.Debug("search exhausted", zap.String("corpus", searchCorpus))
			}
			return nil
		}
	}
}

func printPage(page *search.Page) error {
	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(page)
	}
	for _, hit := range page.Hits {
		fmt.Printf("%s\t%s\t%s\t%s\n", hit.Component, hit.Database, hit.SentenceID, hit.Sentence)
		if hit.Variables != "" {
			fmt.Printf("\t%s\n", hit.Variables)
		}
	}
	if page.Done() {
		fmt.Fprintf(os.Stderr, "%d hits, search complete\n", len(page.Hits))
	} else {
		fmt.Fprintf(os.Stderr, "%d hits, more available\n", len(page.Hits))
	}
	return nil
}

// variablesFlag collects repeated '$name=path' flags.
type variablesFlag []types.Variable

var _ pflag.Value = (*variablesFlag)(nil)

func (v *variablesFlag) String() string {
	parts := make([]string, 0, len(*v))
	for _, variable := range *v {
		parts = append(parts, variable.Name+"="+variable.Path)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (v *variablesFlag) Set(raw string) error {
	name, path, ok := strings.Cut(raw, "=")
	if !ok {
		return fmt.Errorf("invalid variable %q, expected '$name=path'", raw)
	}
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "$") {
		name = "$" + name
	}
	*v = append(*v, types.Variable{Name: name, Path: strings.TrimSpace(path)})
	return nil
}

func (v *variablesFlag) Type() string {
	return "variable"
}

// loadCursor reads a saved cursor. A missing file starts a new search.
func loadCursor(path string) (types.Cursor, bool, error) {
	if path == "" {
		return types.Cursor{}, false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return types.Cursor{}, false, nil
	}
	if err != nil {
		return types.Cursor{}, false, fmt.Errorf("failed to read cursor: %w", err)
	}
	var cursor types.Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return types.Cursor{}, false, fmt.Errorf("failed to parse cursor %s: %w", path, err)
	}
	if cursor.Done() {
		return types.Cursor{}, false, fmt.Errorf("cursor %s is exhausted, remove it to search again", path)
	}
	return cursor, true, nil
}

func saveCursor(path string, cursor types.Cursor) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cursor: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cursor: %w", err)
	}
	return nil
}

func reverse(s []string) []string {
	out := make([]string, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		out = append(out, s[i])
	}
	return out
}
