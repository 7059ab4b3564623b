package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ca-srg/treesearch/internal/querylog"
)

var (
	statsPath   string
	statsRecent int
	statsCorpus string
	statsDate   string
	statsJSON   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the search log",
	Long: `
Show totals per corpus from the search log written by the serve command,
followed by the most recent searches.

Example:
  treesearch stats --recent 10
  treesearch stats -c sonar --date 2026-10-01
`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsPath, "db", "", "Search log database (default: QUERY_LOG_PATH or ~/.treesearch/searches.db)")
	statsCmd.Flags().IntVar(&statsRecent, "recent", 10, "Number of recent searches to show")
	statsCmd.Flags().StringVarP(&statsCorpus, "corpus", "c", "", "Only count searches of this corpus on --date")
	statsCmd.Flags().StringVar(&statsDate, "date", "", "Day to count searches for (YYYY-MM-DD, default: today)")
	statsCmd.Flags().BoolVarP(&statsJSON, "json", "j", false, "Output results in JSON format")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	path := statsPath
	if path == "" {
		path = os.Getenv("QUERY_LOG_PATH")
	}
	store, err := querylog.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if statsCorpus != "" {
		date := statsDate
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		n, err := store.CountByDate(ctx, statsCorpus, date)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%d\n", statsCorpus, date, n)
		return nil
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		return err
	}
	recent, err := store.Recent(ctx, statsRecent)
	if err != nil {
		return err
	}

	if statsJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"totals": totals,
			"recent": recent,
		})
	}

	corpora := make([]string, 0, len(totals))
	for corpus := range totals {
		corpora = append(corpora, corpus)
	}
	sort.Strings(corpora)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CORPUS\tSEARCHES\tHITS")
	for _, corpus := range corpora {
		fmt.Fprintf(w, "%s\t%d\t%d\n", corpus, totals[corpus].Searches, totals[corpus].Hits)
	}
	if len(recent) > 0 {
		fmt.Fprintln(w, "\nDATE\tCORPUS\tCOMPONENTS\tHITS\tPATTERN")
		for _, e := range recent {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.Date, e.Corpus, strings.Join(e.Components, ","), e.Hits, e.Pattern)
		}
	}
	return w.Flush()
}
