package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	countCorpus     string
	countPattern    string
	countComponents []string
	countJSON       bool
	countTimeout    time.Duration
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count matches per component",
	Long: `
Count the matches of an XPath pattern in each component of a corpus.
Components are counted in parallel, bounded by COUNT_CONCURRENCY.

Example:
  treesearch count -c sonar -p '//node[@cat="np"]' --component WRPE,WRPP
`,
	RunE: runCount,
}

func init() {
	countCmd.Flags().StringVarP(&countCorpus, "corpus", "c", "", "Corpus to count in (required)")
	countCmd.Flags().StringVarP(&countPattern, "pattern", "p", "", "XPath pattern (required)")
	countCmd.Flags().StringSliceVar(&countComponents, "component", nil, "Components to count (default: all)")
	countCmd.Flags().BoolVarP(&countJSON, "json", "j", false, "Output results in JSON format")
	countCmd.Flags().DurationVar(&countTimeout, "timeout", 10*time.Minute, "Overall timeout")

	_ = countCmd.MarkFlagRequired("corpus")
	_ = countCmd.MarkFlagRequired("pattern")
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), countTimeout)
	defer cancel()

	svc, err := newServices(ctx, logger)
	if err != nil {
		return err
	}
	components, err := svc.componentsOrAll(countCorpus, countComponents)
	if err != nil {
		return err
	}

	counts, err := svc.counter.Count(ctx, countCorpus, components, countPattern)
	if err != nil {
		return err
	}

	if countJSON {
		return json.NewEncoder(os.Stdout).Encode(counts)
	}

	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	return w.Flush()
}
