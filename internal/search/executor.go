// Package search runs resumable searches over the shards of a corpus.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/basex"
	"github.com/ca-srg/treesearch/internal/results"
	"github.com/ca-srg/treesearch/internal/treebank"
	"github.com/ca-srg/treesearch/internal/types"
	"github.com/ca-srg/treesearch/internal/xquery"
)

// DefaultTimeCeiling bounds how long one page keeps querying new shards.
const DefaultTimeCeiling = 10 * time.Second

var searchTracer = otel.Tracer("treesearch/search")

// Topology resolves where a corpus lives.
type Topology interface {
	ServerInfo(corpus, component string) (types.ServerInfo, error)
	IsGrinded(corpus string) bool
}

// ShardResolver lists the databases of a component.
type ShardResolver interface {
	Resolve(ctx context.Context, corpus, component string, strategy treebank.Strategy) ([]string, error)
}

// GraphExpander walks the include graph of grinded databases.
type GraphExpander interface {
	Expand(ctx context.Context, session basex.Session, database string, visited map[string]bool) ([]string, bool, error)
}

// Recorder stores a summary of each executed page.
type Recorder interface {
	RecordSearch(ctx context.Context, corpus string, components []string, pattern string, hits int) error
}

// Page is the result of one Search call.
type Page struct {
	Hits            []types.Hit  `json:"hits"`
	Cursor          types.Cursor `json:"cursor"`
	RemainingBudget int          `json:"remainingBudget"`
	// Query is the last XQuery sent to BaseX, empty when no shard was queried.
	Query string `json:"query,omitempty"`
}

// Done reports whether the search has nothing left to return.
func (p *Page) Done() bool {
	return p.Cursor.Done()
}

// Executor runs one page of a search at a time. It keeps no state between
// calls: everything needed to continue is in the returned cursor.
type Executor struct {
	connector basex.Connector
	topology  Topology
	resolver  ShardResolver
	expander  GraphExpander
	ceiling   time.Duration
	now       func() time.Time
	recorder  Recorder
	logger    *zap.Logger
}

// NewExecutor creates an Executor. A non-positive ceiling uses DefaultTimeCeiling.
func NewExecutor(connector basex.Connector, topology Topology, resolver ShardResolver, expander GraphExpander, ceiling time.Duration, logger *zap.Logger) *Executor {
	if ceiling <= 0 {
		ceiling = DefaultTimeCeiling
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		connector: connector,
		topology:  topology,
		resolver:  resolver,
		expander:  expander,
		ceiling:   ceiling,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces the clock used for the time ceiling.
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// SetRecorder logs every page to r.
func (e *Executor) SetRecorder(r Recorder) {
	e.recorder = r
}

// Search returns at most budget hits, continuing from cursor. The cursor
// passed in is never modified.
//
// Components and shards are searched one after the other. When the budget
// runs out in the middle of a shard, that shard and its offset are kept on
// top of the returned cursor. After the time ceiling no further shard is
// queried and a short page is returned.
func (e *Executor) Search(ctx context.Context, plan types.SearchPlan, cursor types.Cursor, budget int) (*Page, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if budget <= 0 {
		return &Page{Hits: []types.Hit{}, Cursor: cursor.Clone(), RemainingBudget: budget}, nil
	}

	ctx, span := searchTracer.Start(ctx, "search.Executor.Search", trace.WithAttributes(
		attribute.String("search.corpus", plan.Corpus),
		attribute.Int("search.budget", budget),
		attribute.Int("search.offset", cursor.Offset),
	))
	defer span.End()

	start := e.now()
	strategy := treebank.StrategyFor(plan.Pattern, e.topology.IsGrinded(plan.Corpus))
	span.SetAttributes(
		attribute.Bool("search.grinded", strategy.Grinded),
		attribute.String("search.breadth_first", strategy.BreadthFirst),
	)

	run := &pageRun{
		plan:      plan,
		strategy:  strategy,
		cursor:    cursor.Clone(),
		remaining: budget,
		hits:      []types.Hit{},
		start:     start,
	}

	err := e.run(ctx, run)
	elapsed := e.now().Sub(start)
	recordSearchMetrics(ctx, plan.Corpus, strategy.Grinded, len(run.hits), elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorStatus(err))
		e.logger.Warn("search failed",
			zap.String("corpus", plan.Corpus),
			zap.Strings("components", run.components),
			zap.Error(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("search.hits", len(run.hits)),
		attribute.Int("search.queries", run.queries),
		attribute.Bool("search.done", run.cursor.Done()),
	)
	e.logger.Info("search page",
		zap.String("corpus", plan.Corpus),
		zap.Bool("grinded", strategy.Grinded),
		zap.Strings("components", run.components),
		zap.Int("hits", len(run.hits)),
		zap.Int("queries", run.queries),
		zap.Duration("elapsed", elapsed),
		zap.Bool("done", run.cursor.Done()))

	if e.recorder != nil {
		if err := e.recorder.RecordSearch(ctx, plan.Corpus, run.components, plan.Pattern, len(run.hits)); err != nil {
			e.logger.Warn("failed to record search", zap.Error(err))
		}
	}

	return &Page{Hits: run.hits, Cursor: run.cursor, RemainingBudget: run.remaining, Query: run.lastQuery}, nil
}

// pageRun is the working state of one Search call.
type pageRun struct {
	plan       types.SearchPlan
	strategy   treebank.Strategy
	cursor     types.Cursor
	remaining  int
	hits       []types.Hit
	start      time.Time
	components []string
	queries    int
	lastQuery  string
}

func (e *Executor) run(ctx context.Context, r *pageRun) error {
	for len(r.cursor.ComponentStack) > 0 && r.remaining > 0 {
		var component string
		r.cursor, component, _ = r.cursor.PopComponent()
		r.components = append(r.components, component)

		info, err := e.topology.ServerInfo(r.plan.Corpus, component)
		if err != nil {
			return fmt.Errorf("failed to resolve server: %w", err)
		}

		session, err := e.connector.Connect(ctx, info)
		if err != nil {
			return basex.NewConnectionError(r.plan.Corpus, component, info, err)
		}

		err = e.searchComponent(ctx, session, r, component)
		if closeErr := session.Close(); closeErr != nil {
			e.logger.Debug("failed to close session", zap.String("component", component), zap.Error(closeErr))
		}
		if err != nil {
			return err
		}

		if len(r.cursor.ShardStack) > 0 {
			r.cursor = r.cursor.PushComponent(component)
			return nil
		}
		r.cursor = r.cursor.FinishComponent()
	}
	return nil
}

func (e *Executor) searchComponent(ctx context.Context, session basex.Session, r *pageRun, component string) error {
	if len(r.cursor.ShardStack) == 0 {
		shards, err := e.resolver.Resolve(ctx, r.plan.Corpus, component, r.strategy)
		if err != nil {
			return err
		}
		// first shard in the list is searched first
		reversed := make([]string, 0, len(shards))
		for i := len(shards) - 1; i >= 0; i-- {
			reversed = append(reversed, shards[i])
		}
		r.cursor = r.cursor.ResetOffset().PushShards(reversed...)
	}

	for len(r.cursor.ShardStack) > 0 && r.remaining > 0 {
		var shard string
		r.cursor, shard, _ = r.cursor.PopShard()

		if r.strategy.Grinded && !r.cursor.Visited(shard) {
			exists, err := e.expand(ctx, session, r, shard)
			if err != nil {
				return err
			}
			if !exists {
				r.cursor = r.cursor.ResetOffset()
				e.checkCeiling(r)
				continue
			}
		}

		if err := e.searchShard(ctx, session, r, component, shard); err != nil {
			return err
		}
	}
	return nil
}

// expand marks shard visited and queues the databases it includes.
func (e *Executor) expand(ctx context.Context, session basex.Session, r *pageRun, shard string) (bool, error) {
	r.cursor = r.cursor.MarkVisited(shard)

	children, exists, err := e.expander.Expand(ctx, session, shard, r.cursor.Clone().VisitedShards)
	if err != nil {
		return false, err
	}
	r.cursor = r.cursor.PushShards(children...)
	return exists, nil
}

// checkCeiling ends the page once the time ceiling has passed.
func (e *Executor) checkCeiling(r *pageRun) {
	if e.now().Sub(r.start) > e.ceiling {
		e.logger.Debug("time ceiling reached", zap.Duration("ceiling", e.ceiling))
		r.remaining = 0
	}
}

func (e *Executor) searchShard(ctx context.Context, session basex.Session, r *pageRun, component, shard string) error {
	offset := r.cursor.Offset
	window := r.remaining

	query := xquery.Search(xquery.SearchQuery{
		Grinded:   r.strategy.Grinded,
		Component: component,
		Database:  shard,
		Start:     offset,
		End:       offset + window,
		Context:   r.plan.WantContext,
		Pattern:   r.plan.Pattern,
		Variables: r.plan.Variables,
	})

	raw, err := session.Execute(ctx, query)
	r.queries++
	r.lastQuery = query
	if err != nil {
		var queryErr *basex.QueryError
		if errors.As(err, &queryErr) {
			return queryErr.WithDatabase(shard)
		}
		return basex.NewQueryError(query, err).WithDatabase(shard)
	}

	batch := results.Parse(raw, shard, component, offset)
	r.hits = append(r.hits, batch.Hits...)
	r.remaining -= len(batch.Hits)

	e.logger.Debug("searched shard",
		zap.String("component", component),
		zap.String("database", shard),
		zap.Int("offset", offset),
		zap.Int("window", window),
		zap.Int("records", batch.Records),
		zap.Int("hits", len(batch.Hits)))

	e.checkCeiling(r)

	if batch.Records >= window {
		// the window was full, the shard may have more
		r.cursor = r.cursor.Resume(shard, offset+batch.Records)
		return nil
	}
	r.cursor = r.cursor.ResetOffset()
	return nil
}

func errorStatus(err error) string {
	var connErr *basex.ConnectionError
	var queryErr *basex.QueryError
	switch {
	case errors.As(err, &connErr):
		return string(connErr.Type)
	case errors.As(err, &queryErr):
		return string(queryErr.Type)
	default:
		return "search_failed"
	}
}
