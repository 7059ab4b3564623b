package api

import (
	"github.com/ca-srg/treesearch/internal/types"
)

// ResultsRequest is the body of POST /results. The cursor fields are
// echoed back from the previous response; on the first call they can be
// omitted, and an empty componentStack means every component of the corpus.
type ResultsRequest struct {
	Pattern         string           `json:"pattern"`
	Corpus          string           `json:"corpus"`
	RetrieveContext bool             `json:"retrieveContext"`
	ComponentStack  []string         `json:"componentStack"`
	ShardStack      []string         `json:"shardStack,omitempty"`
	VisitedShards   map[string]bool  `json:"visitedShards,omitempty"`
	Offset          int              `json:"offset"`
	Variables       []types.Variable `json:"variables,omitempty"`
	// BatchBudget defaults to the configured batch limit when absent.
	BatchBudget *int `json:"batchBudget,omitempty"`
}

// ResultsResponse is the page returned by POST /results. The search is
// complete when both stacks are empty.
type ResultsResponse struct {
	Hits            []types.Hit     `json:"hits"`
	ComponentStack  []string        `json:"componentStack"`
	ShardStack      []string        `json:"shardStack"`
	VisitedShards   map[string]bool `json:"visitedShards"`
	Offset          int             `json:"offset"`
	RemainingBudget int             `json:"remainingBudget"`
	Done            bool            `json:"done"`
	// Query is the last XQuery sent to BaseX for this page.
	Query string `json:"query,omitempty"`
}

// CountRequest is the body of POST /treebank_counts.
type CountRequest struct {
	Corpus     string   `json:"corpus"`
	Components []string `json:"components"`
	Pattern    string   `json:"pattern"`
}

// CountResponse maps components to their number of matches.
type CountResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// TreeResponse is returned by GET /tree.
type TreeResponse struct {
	SentenceID string `json:"sentid"`
	Database   string `json:"database"`
	Tree       string `json:"tree"`
}

// TreebanksResponse is returned by GET /configured_treebanks.
type TreebanksResponse struct {
	Treebanks []types.Treebank `json:"treebanks"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error       bool             `json:"error"`
	Type        types.ErrorType  `json:"type,omitempty"`
	Message     string           `json:"message"`
	FailedQuery string           `json:"failedQuery,omitempty"`
	Server      *ServerReference `json:"server,omitempty"`
	RequestID   string           `json:"requestId,omitempty"`
}

// ServerReference names the BaseX server a connection failure happened on.
type ServerReference struct {
	Corpus    string `json:"corpus"`
	Component string `json:"component"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
}
