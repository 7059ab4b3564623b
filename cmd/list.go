package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appconfig "github.com/ca-srg/treesearch/internal/config"
	"github.com/ca-srg/treesearch/internal/types"
)

var (
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured treebanks",
	Long: `
List every corpus in the topology file with its components and whether
it ships grinded data. Only the topology is read; BaseX is not contacted.

Example:
  treesearch list
  treesearch list --json
`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listJSON, "json", "j", false, "Output results in JSON format")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	topology, err := appconfig.LoadTopology(cfg.TopologyPath)
	if err != nil {
		return err
	}

	return printTreebanks(os.Stdout, topology.Treebanks(), listJSON)
}

func printTreebanks(out io.Writer, treebanks []types.Treebank, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(treebanks)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CORPUS\tGRINDED\tCOMPONENTS\tTITLE")
	for _, tb := range treebanks {
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", tb.Name, tb.Grinded, strings.Join(tb.Components, ","), tb.Title)
	}
	return w.Flush()
}
