package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	treeCorpus    string
	treeComponent string
	treeDatabase  string
	treeSentence  string
	treeTimeout   time.Duration
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the full tree of a sentence",
	Long: `
Print the alpino_ds document of a sentence. The sentence id may be copied
from a hit, including its +match suffix.

Example:
  treesearch tree -c sonar --component WRPE --db WRPE0001 --sentid 'WR-P-E-A-0000000001.p.1.s.1+match=4'
`,
	RunE: runTree,
}

func init() {
	treeCmd.Flags().StringVarP(&treeCorpus, "corpus", "c", "", "Corpus (required)")
	treeCmd.Flags().StringVar(&treeComponent, "component", "", "Component (required)")
	treeCmd.Flags().StringVar(&treeDatabase, "db", "", "Database holding the sentence (default: the component)")
	treeCmd.Flags().StringVar(&treeSentence, "sentid", "", "Sentence id (required)")
	treeCmd.Flags().DurationVar(&treeTimeout, "timeout", 30*time.Second, "Request timeout")

	_ = treeCmd.MarkFlagRequired("corpus")
	_ = treeCmd.MarkFlagRequired("component")
	_ = treeCmd.MarkFlagRequired("sentid")
}

func runTree(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), treeTimeout)
	defer cancel()

	svc, err := newServices(ctx, logger)
	if err != nil {
		return err
	}
	if _, err := svc.componentsOrAll(treeCorpus, []string{treeComponent}); err != nil {
		return err
	}

	tree, err := svc.trees.Tree(ctx, treeCorpus, treeComponent, treeDatabase, treeSentence)
	if err != nil {
		return err
	}
	fmt.Println(tree)
	return nil
}
