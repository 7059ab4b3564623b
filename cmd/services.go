package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	appconfig "github.com/ca-srg/treesearch/internal/config"
	"github.com/ca-srg/treesearch/internal/basex"
	"github.com/ca-srg/treesearch/internal/querylog"
	"github.com/ca-srg/treesearch/internal/search"
	"github.com/ca-srg/treesearch/internal/treebank"
	"github.com/ca-srg/treesearch/internal/types"
)

// services holds everything the commands need to talk to BaseX.
type services struct {
	cfg      *types.Config
	topology *appconfig.Topology
	resolver *treebank.Resolver
	executor *search.Executor
	counter  *search.Counter
	trees    *search.TreeFetcher
}

func newServices(ctx context.Context, log *zap.Logger) (*services, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	topology, err := appconfig.LoadTopology(cfg.TopologyPath)
	if err != nil {
		return nil, err
	}

	manifests, err := newManifestSource(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	dialer := basex.NewDialer(cfg.BaseXDialTimeout, log)
	resolver := treebank.NewResolver(manifests, topology.Categories, log)
	expander := treebank.NewExpander(log)

	return &services{
		cfg:      cfg,
		topology: topology,
		resolver: resolver,
		executor: search.NewExecutor(dialer, topology, resolver, expander, cfg.SearchTimeCeiling, log),
		counter:  search.NewCounter(dialer, topology, resolver, cfg.CountConcurrency, log),
		trees:    search.NewTreeFetcher(dialer, topology, log),
	}, nil
}

func newManifestSource(ctx context.Context, cfg *types.Config, log *zap.Logger) (treebank.ManifestSource, error) {
	if cfg.ManifestBucket == "" {
		log.Debug("reading manifests from disk", zap.String("dir", cfg.ManifestDir))
		return treebank.NewFileManifests(cfg.ManifestDir), nil
	}

	log.Debug("reading manifests from S3",
		zap.String("bucket", cfg.ManifestBucket),
		zap.String("prefix", cfg.ManifestPrefix))
	manifests, err := treebank.NewS3Manifests(ctx, cfg.ManifestBucket, cfg.ManifestPrefix, cfg.ManifestS3Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 manifest source: %w", err)
	}
	return manifests, nil
}

// openSearchLog attaches the search log to the executor. The store is nil
// when the log is disabled.
func (s *services) openSearchLog() (*querylog.Store, error) {
	if !s.cfg.QueryLogEnabled {
		return nil, nil
	}
	store, err := querylog.NewStore(s.cfg.QueryLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open search log: %w", err)
	}
	s.executor.SetRecorder(store)
	return store, nil
}

// componentsOrAll checks components against the corpus, defaulting to
// every component in name order.
func (s *services) componentsOrAll(corpus string, components []string) ([]string, error) {
	all := s.topology.Components(corpus)
	if len(all) == 0 {
		return nil, fmt.Errorf("unknown corpus %q", corpus)
	}
	if len(components) == 0 {
		return all, nil
	}
	for _, c := range components {
		if !s.topology.HasComponent(corpus, c) {
			return nil, fmt.Errorf("unknown component %q in corpus %q", c, corpus)
		}
	}
	return components, nil
}
