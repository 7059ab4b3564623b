package treebank

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/types"
)

// ManifestError is returned when a component's manifest exists but cannot
// be read.
type ManifestError struct {
	Type      types.ErrorType
	Corpus    string
	Component string
	Err       error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("[%s] failed to read manifest for %s/%s: %v", e.Type, e.Corpus, e.Component, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// Strategy is decided once per search from the query and the corpus.
type Strategy struct {
	Grinded      bool
	BreadthFirst string
}

// StrategyFor picks grinded data only when the corpus has it and the query
// decomposes into a usable breadth-first pattern.
func StrategyFor(pattern string, corpusGrinded bool) Strategy {
	bf, ok := BreadthFirst(pattern)
	if !UseGrinded(corpusGrinded, bf, ok) {
		return Strategy{}
	}
	return Strategy{Grinded: true, BreadthFirst: bf}
}

// Resolver lists the databases to search for a component.
type Resolver struct {
	manifests  ManifestSource
	categories []string
	logger     *zap.Logger
}

// NewResolver creates a Resolver. categories are used to fan out
// breadth-first patterns starting with AllCategories.
func NewResolver(manifests ManifestSource, categories []string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		manifests:  manifests,
		categories: append([]string(nil), categories...),
		logger:     logger,
	}
}

// Resolve returns the databases of component in search order.
func (r *Resolver) Resolve(ctx context.Context, corpus, component string, strategy Strategy) ([]string, error) {
	if strategy.Grinded {
		entries := GrindEntries(component, strategy.BreadthFirst, r.categories)
		r.logger.Debug("resolved grind entry databases",
			zap.String("component", component),
			zap.String("bf", strategy.BreadthFirst),
			zap.Int("entries", len(entries)))
		return entries, nil
	}
	return r.Ungrinded(ctx, corpus, component)
}

// Ungrinded returns the databases listed in the component's manifest, or
// the component itself when there is none.
func (r *Resolver) Ungrinded(ctx context.Context, corpus, component string) ([]string, error) {
	if r.manifests == nil {
		return []string{component}, nil
	}

	databases, found, err := r.manifests.Databases(ctx, corpus, component)
	if err != nil {
		return nil, &ManifestError{Type: types.ErrorTypeManifest, Corpus: corpus, Component: component, Err: err}
	}
	if !found || len(databases) == 0 {
		return []string{component}, nil
	}

	r.logger.Debug("resolved manifest databases",
		zap.String("corpus", corpus),
		zap.String("component", component),
		zap.Int("databases", len(databases)))
	return databases, nil
}

// GrindEntries names the grinded databases a search starts from. A pattern
// containing AllCategories yields one entry per category, with every
// occurrence replaced. Entries are not checked for existence.
func GrindEntries(component, bf string, categories []string) []string {
	if !strings.Contains(bf, AllCategories) {
		return []string{component + bf}
	}
	entries := make([]string, 0, len(categories))
	for _, category := range categories {
		entries = append(entries, component+strings.ReplaceAll(bf, AllCategories, category))
	}
	return entries
}
