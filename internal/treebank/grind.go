package treebank

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/basex"
	"github.com/ca-srg/treesearch/internal/xquery"
)

// Expander follows the include references between grinded databases.
type Expander struct {
	logger *zap.Logger
}

// NewExpander creates an Expander
func NewExpander(logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{logger: logger}
}

// Expand marks database as visited and returns the databases it includes
// that are not yet visited. A database that does not exist is a dead end:
// exists is false and no children are returned. visited must not be nil.
//
// Includes form a DAG; the same database can be included by several
// parents, so visited is what keeps it from being searched twice.
func (e *Expander) Expand(ctx context.Context, session basex.Session, database string, visited map[string]bool) (children []string, exists bool, err error) {
	visited[database] = true

	result, err := session.Execute(ctx, xquery.Exists(database))
	if err != nil {
		return nil, false, annotate(err, database)
	}
	if strings.TrimSpace(result) != "true" {
		e.logger.Debug("grind database does not exist", zap.String("database", database))
		return nil, false, nil
	}

	result, err = session.Execute(ctx, xquery.Includes(database))
	if err != nil {
		return nil, true, annotate(err, database)
	}

	for _, file := range xquery.ParseIncludes(result) {
		if visited[file] {
			continue
		}
		children = append(children, file)
	}

	e.logger.Debug("expanded grind database",
		zap.String("database", database),
		zap.Int("children", len(children)))
	return children, true, nil
}

func annotate(err error, database string) error {
	var queryErr *basex.QueryError
	if errors.As(err, &queryErr) {
		return queryErr.WithDatabase(database)
	}
	return err
}
