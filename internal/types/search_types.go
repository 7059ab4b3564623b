package types

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// Variable is a named path expression evaluated relative to the matched node.
// Name includes the leading "$".
type Variable struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// SearchPlan describes one top-level search and does not change between pages.
type SearchPlan struct {
	Pattern     string     `json:"pattern"`
	Corpus      string     `json:"corpus"`
	WantContext bool       `json:"retrieveContext"`
	Variables   []Variable `json:"variables,omitempty"`
}

// Validate checks the fields every search needs.
func (p SearchPlan) Validate() error {
	if p.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if p.Corpus == "" {
		return fmt.Errorf("corpus is required")
	}
	for i, v := range p.Variables {
		if !variableName.MatchString(v.Name) {
			return fmt.Errorf("variables[%d]: invalid name %q", i, v.Name)
		}
		if v.Path == "" && v.Name != RootVariable {
			return fmt.Errorf("variables[%d]: path is required", i)
		}
	}
	return nil
}

var variableName = regexp.MustCompile(`^\$[A-Za-z_][A-Za-z0-9_.-]*$`)

// RootVariable is bound by every search query to the matched node.
const RootVariable = "$node"

// ServerInfo holds the BaseX coordinates for a component.
type ServerInfo struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"password"`
}

// Address returns host:port.
func (s ServerInfo) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Hit is one match returned by a shard query.
type Hit struct {
	// SentenceID is the sentence id suffixed with "+match=N".
	SentenceID string `json:"sentid"`
	Sentence   string `json:"sentence"`
	// Database is the ungrinded database the sentence can be found in.
	Database string `json:"database"`
	// SearchedDatabase is the database the query ran against.
	SearchedDatabase string `json:"searchedDatabase"`
	NodeIDs          []int  `json:"nodeIds"`
	NodeStarts       []int  `json:"nodeStarts"`
	Component        string `json:"component"`
	Meta             string `json:"meta,omitempty"`
	XML              string `json:"xml"`
	Variables        string `json:"variableResults,omitempty"`
}

// Treebank summarizes one configured corpus.
type Treebank struct {
	Name       string   `json:"name"`
	Title      string   `json:"title,omitempty"`
	Grinded    bool     `json:"grinded"`
	Components []string `json:"components"`
}
