package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/basex"
	"github.com/ca-srg/treesearch/internal/search"
	"github.com/ca-srg/treesearch/internal/treebank"
	"github.com/ca-srg/treesearch/internal/types"
)

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

// errUnknownCorpus marks requests for corpora missing from the topology.
var errUnknownCorpus = errors.New("unknown corpus")

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req ResultsRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	plan := types.SearchPlan{
		Pattern:     req.Pattern,
		Corpus:      req.Corpus,
		WantContext: req.RetrieveContext,
		Variables:   req.Variables,
	}
	if err := plan.Validate(); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	cursor, err := s.cursorFor(&req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	budget := s.config.DefaultBudget
	if req.BatchBudget != nil {
		budget = min(*req.BatchBudget, s.config.MaxBudget)
	}

	page, err := s.deps.Searcher.Search(r.Context(), plan, cursor, budget)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, &ResultsResponse{
		Hits:            page.Hits,
		ComponentStack:  nonNil(page.Cursor.ComponentStack),
		ShardStack:      nonNil(page.Cursor.ShardStack),
		VisitedShards:   nonNilMap(page.Cursor.VisitedShards),
		Offset:          page.Cursor.Offset,
		RemainingBudget: page.RemainingBudget,
		Done:            page.Done(),
		Query:           page.Query,
	})
}

// cursorFor rebuilds the cursor echoed back by the client. A request with
// no component stack starts a new search over every component, searched in
// name order.
func (s *Server) cursorFor(req *ResultsRequest) (types.Cursor, error) {
	components := s.deps.Catalog.Components(req.Corpus)
	if len(components) == 0 {
		return types.Cursor{}, fmt.Errorf("%w: %q", errUnknownCorpus, req.Corpus)
	}

	if len(req.ComponentStack) == 0 {
		if len(req.ShardStack) > 0 {
			return types.Cursor{}, fmt.Errorf("%w: shardStack without componentStack", errBadRequest)
		}
		stack := make([]string, 0, len(components))
		for i := len(components) - 1; i >= 0; i-- {
			stack = append(stack, components[i])
		}
		return types.NewCursor(stack...), nil
	}

	for _, c := range req.ComponentStack {
		if !s.deps.Catalog.HasComponent(req.Corpus, c) {
			return types.Cursor{}, fmt.Errorf("%w: unknown component %q in corpus %q", errBadRequest, c, req.Corpus)
		}
	}
	if req.Offset < 0 {
		return types.Cursor{}, fmt.Errorf("%w: offset must not be negative", errBadRequest)
	}
	if req.Offset > 0 && len(req.ShardStack) == 0 {
		return types.Cursor{}, fmt.Errorf("%w: offset without shardStack", errBadRequest)
	}

	return types.Cursor{
		ComponentStack: req.ComponentStack,
		ShardStack:     req.ShardStack,
		VisitedShards:  req.VisitedShards,
		Offset:         req.Offset,
	}.Clone(), nil
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req CountRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Pattern == "" || req.Corpus == "" {
		s.fail(w, r, fmt.Errorf("%w: corpus and pattern are required", errBadRequest))
		return
	}

	all := s.deps.Catalog.Components(req.Corpus)
	if len(all) == 0 {
		s.fail(w, r, fmt.Errorf("%w: %q", errUnknownCorpus, req.Corpus))
		return
	}
	components := req.Components
	if len(components) == 0 {
		components = all
	}
	for _, c := range components {
		if !s.deps.Catalog.HasComponent(req.Corpus, c) {
			s.fail(w, r, fmt.Errorf("%w: unknown component %q in corpus %q", errBadRequest, c, req.Corpus))
			return
		}
	}

	counts, err := s.deps.Counter.Count(r.Context(), req.Corpus, components, req.Pattern)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	s.writeJSON(w, http.StatusOK, &CountResponse{Counts: counts, Total: total})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r, http.MethodGet)
		return
	}

	q := r.URL.Query()
	corpus := q.Get("corpus")
	component := q.Get("component")
	database := q.Get("db")
	sentenceID := q.Get("sentid")

	if corpus == "" || component == "" || sentenceID == "" {
		s.fail(w, r, fmt.Errorf("%w: corpus, component and sentid are required", errBadRequest))
		return
	}
	if len(s.deps.Catalog.Components(corpus)) == 0 {
		s.fail(w, r, fmt.Errorf("%w: %q", errUnknownCorpus, corpus))
		return
	}
	if !s.deps.Catalog.HasComponent(corpus, component) {
		s.fail(w, r, fmt.Errorf("%w: unknown component %q in corpus %q", errBadRequest, component, corpus))
		return
	}

	tree, err := s.deps.Trees.Tree(r.Context(), corpus, component, database, sentenceID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if database == "" {
		database = component
	}

	if strings.Contains(r.Header.Get("Accept"), "application/xml") {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(tree)); err != nil {
			s.logger.Debug("failed to write tree", zap.Error(err))
		}
		return
	}
	s.writeJSON(w, http.StatusOK, &TreeResponse{SentenceID: sentenceID, Database: database, Tree: tree})
}

func (s *Server) handleTreebanks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r, http.MethodGet)
		return
	}
	treebanks := s.deps.Catalog.Treebanks()
	if treebanks == nil {
		treebanks = []types.Treebank{}
	}
	s.writeJSON(w, http.StatusOK, &TreebanksResponse{Treebanks: treebanks})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// fail maps err onto a status code and writes the error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp := &ErrorResponse{Message: err.Error()}
	status := http.StatusInternalServerError

	var queryErr *basex.QueryError
	var connErr *basex.ConnectionError
	var manifestErr *treebank.ManifestError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, search.ErrInvalidSentenceID):
		status = http.StatusBadRequest
		resp.Type = types.ErrorTypeValidation
	case errors.Is(err, errUnknownCorpus):
		status = http.StatusNotFound
		resp.Type = types.ErrorTypeTopology
	case errors.Is(err, search.ErrTreeNotFound):
		status = http.StatusNotFound
		resp.Type = types.ErrorTypeValidation
	case errors.As(err, &queryErr):
		resp.Type = queryErr.Type
		resp.FailedQuery = queryErr.Query
	case errors.As(err, &connErr):
		status = http.StatusBadGateway
		resp.Type = connErr.Type
		resp.Server = &ServerReference{
			Corpus:    connErr.Corpus,
			Component: connErr.Component,
			Host:      connErr.Host,
			Port:      connErr.Port,
		}
	case errors.As(err, &manifestErr):
		resp.Type = manifestErr.Type
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		resp.Type = types.ErrorTypeTimeout
	default:
		resp.Type = types.ErrorTypeUnknown
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
	}
	s.writeError(w, r, status, resp)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, resp *ErrorResponse) {
	resp.Error = true
	resp.RequestID = requestIDFrom(r.Context())
	s.writeJSON(w, status, resp)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, r, http.StatusMethodNotAllowed, &ErrorResponse{
		Type:    types.ErrorTypeValidation,
		Message: "method not allowed",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON", zap.Error(err))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]bool) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	return m
}
