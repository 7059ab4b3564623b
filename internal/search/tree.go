package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/basex"
	"github.com/ca-srg/treesearch/internal/results"
	"github.com/ca-srg/treesearch/internal/xquery"
)

var (
	// ErrTreeNotFound is returned when the sentence is not in the database.
	ErrTreeNotFound = errors.New("tree not found")
	// ErrInvalidSentenceID is returned for ids that cannot be looked up.
	ErrInvalidSentenceID = errors.New("invalid sentence id")
)

// TreeFetcher looks up the full tree of a hit.
type TreeFetcher struct {
	connector basex.Connector
	topology  Topology
	logger    *zap.Logger
}

// NewTreeFetcher creates a TreeFetcher
func NewTreeFetcher(connector basex.Connector, topology Topology, logger *zap.Logger) *TreeFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeFetcher{connector: connector, topology: topology, logger: logger}
}

// Tree returns the alpino_ds document of a sentence. sentenceID may carry
// the match suffix of a hit. An empty database means the component itself.
func (f *TreeFetcher) Tree(ctx context.Context, corpus, component, database, sentenceID string) (string, error) {
	id, _, _ := results.SplitSentenceID(sentenceID)
	if id == "" {
		return "", fmt.Errorf("%w: sentence id is required", ErrInvalidSentenceID)
	}
	if strings.ContainsAny(id, `"'`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSentenceID, id)
	}
	if database == "" {
		database = component
	}

	info, err := f.topology.ServerInfo(corpus, component)
	if err != nil {
		return "", fmt.Errorf("failed to resolve server: %w", err)
	}

	session, err := f.connector.Connect(ctx, info)
	if err != nil {
		return "", basex.NewConnectionError(corpus, component, info, err)
	}
	defer session.Close()

	tree, err := session.Execute(ctx, xquery.Tree(database, id))
	if err != nil {
		return "", annotateDatabase(err, database)
	}
	tree = strings.TrimSpace(tree)
	if tree == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrTreeNotFound, id, database)
	}

	f.logger.Debug("fetched tree", zap.String("database", database), zap.String("sentence", id))
	return tree, nil
}

func annotateDatabase(err error, database string) error {
	var queryErr *basex.QueryError
	if errors.As(err, &queryErr) {
		return queryErr.WithDatabase(database)
	}
	return err
}
