// Package treebank decides which databases back a component and walks the
// include graph of grinded data.
package treebank

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// AllCategories stands for any phrasal category in a breadth-first pattern.
	AllCategories = "ALL"
	// childSeparator separates the root category from the child relations.
	childSeparator = "%"
	// relationSeparator separates the child relations.
	relationSeparator = "_"
)

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// BreadthFirst decomposes a structural query into the pattern grinded
// databases are named by: the category of the top node (or AllCategories)
// followed by the sorted relations of its direct children, e.g. "np%det_hd".
//
// Only a single top node whose predicate is a conjunction of attribute tests
// and child node tests is supported; everything else reports false. Every
// child must name its relation.
func BreadthFirst(pattern string) (string, bool) {
	p := &patternParser{input: strings.TrimSpace(pattern)}

	if !p.consume("//") && !p.consume("/") {
		return "", false
	}
	root, ok := p.node()
	if !ok || !p.done() {
		return "", false
	}

	category := root.attributes["cat"]
	if category == "" {
		category = AllCategories
	}

	relations := make([]string, 0, len(root.children))
	for _, child := range root.children {
		rel := child.attributes["rel"]
		if rel == "" {
			return "", false
		}
		relations = append(relations, rel)
	}
	sort.Strings(relations)

	if len(relations) == 0 {
		return category, true
	}
	return category + childSeparator + strings.Join(relations, relationSeparator), true
}

// UseGrinded reports whether grinded data can answer a query: the corpus
// must ship it and the query must decompose into something narrower than
// the universal pattern.
func UseGrinded(corpusGrinded bool, bf string, ok bool) bool {
	if !corpusGrinded || !ok {
		return false
	}
	return bf != "" && bf != AllCategories
}

type patternNode struct {
	attributes map[string]string
	children   []patternNode
}

type patternParser struct {
	input string
	pos   int
}

func (p *patternParser) skipSpace() {
	for p.pos < len(p.input) && strings.ContainsRune(" \t\r\n", rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *patternParser) consume(token string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], token) {
		p.pos += len(token)
		return true
	}
	return false
}

func (p *patternParser) done() bool {
	p.skipSpace()
	return p.pos == len(p.input)
}

// node parses `node` with an optional predicate.
func (p *patternParser) node() (patternNode, bool) {
	n := patternNode{attributes: map[string]string{}}
	if !p.consume("node") {
		return n, false
	}
	if !p.consume("[") {
		return n, true
	}
	for {
		if !p.term(&n) {
			return n, false
		}
		if p.consume("]") {
			return n, true
		}
		if !p.consume("and") {
			return n, false
		}
	}
}

func (p *patternParser) term(n *patternNode) bool {
	if p.consume("@") {
		name, ok := p.name()
		if !ok {
			return false
		}
		if !p.consume("=") {
			// existence test, does not narrow the pattern
			return true
		}
		value, ok := p.literal()
		if !ok {
			return false
		}
		if name == "cat" || name == "rel" {
			if !labelPattern.MatchString(value) {
				return false
			}
			if _, dup := n.attributes[name]; dup {
				return false
			}
		}
		n.attributes[name] = value
		return true
	}

	child, ok := p.node()
	if !ok {
		return false
	}
	n.children = append(n.children, child)
	return true
}

func (p *patternParser) name() (string, bool) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || c == '-' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos], p.pos > start
}

func (p *patternParser) literal() (string, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return "", false
	}
	quote := p.input[p.pos]
	if quote != '"' && quote != '\'' {
		return "", false
	}
	end := strings.IndexByte(p.input[p.pos+1:], quote)
	if end < 0 {
		return "", false
	}
	value := p.input[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return value, true
}
