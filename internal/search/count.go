package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/treesearch/internal/basex"
	"github.com/ca-srg/treesearch/internal/xquery"
)

// DefaultCountConcurrency is the number of components counted at once.
const DefaultCountConcurrency = 4

// ManifestResolver lists the ungrinded databases of a component.
type ManifestResolver interface {
	Ungrinded(ctx context.Context, corpus, component string) ([]string, error)
}

// Counter counts the matches of a pattern per component.
type Counter struct {
	connector   basex.Connector
	topology    Topology
	resolver    ManifestResolver
	concurrency int
	logger      *zap.Logger
}

// NewCounter creates a Counter
func NewCounter(connector basex.Connector, topology Topology, resolver ManifestResolver, concurrency int, logger *zap.Logger) *Counter {
	if concurrency <= 0 {
		concurrency = DefaultCountConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{
		connector:   connector,
		topology:    topology,
		resolver:    resolver,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Count returns the number of matches in each component. Components are
// counted in parallel, each over its own session; the first failure cancels
// the rest.
func (c *Counter) Count(ctx context.Context, corpus string, components []string, pattern string) (map[string]int, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("pattern is required")
	}

	var mu sync.Mutex
	counts := make(map[string]int, len(components))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, component := range components {
		component := component
		g.Go(func() error {
			n, err := c.countComponent(gctx, corpus, component, pattern)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[component] = n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (c *Counter) countComponent(ctx context.Context, corpus, component, pattern string) (int, error) {
	info, err := c.topology.ServerInfo(corpus, component)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve server: %w", err)
	}

	databases, err := c.resolver.Ungrinded(ctx, corpus, component)
	if err != nil {
		return 0, err
	}

	session, err := c.connector.Connect(ctx, info)
	if err != nil {
		return 0, basex.NewConnectionError(corpus, component, info, err)
	}
	defer session.Close()

	total := 0
	for _, db := range databases {
		result, err := session.Execute(ctx, xquery.Count(db, pattern))
		if err != nil {
			return 0, annotateDatabase(err, db)
		}
		n, err := strconv.Atoi(strings.TrimSpace(result))
		if err != nil {
			return 0, basex.NewQueryError(xquery.Count(db, pattern), fmt.Errorf("unexpected count %q: %w", result, err)).WithDatabase(db)
		}
		total += n
	}

	c.logger.Debug("counted component",
		zap.String("corpus", corpus),
		zap.String("component", component),
		zap.Int("databases", len(databases)),
		zap.Int("count", total))
	return total, nil
}
