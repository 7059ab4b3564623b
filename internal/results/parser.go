// Package results turns the text returned by a search query into hits.
package results

import (
	"strconv"
	"strings"

	"github.com/ca-srg/treesearch/internal/types"
	"github.com/ca-srg/treesearch/internal/xquery"
)

// MatchSuffix separates a sentence id from its match number.
const MatchSuffix = "+match="

// Batch is the parsed result of one shard query.
type Batch struct {
	Hits []types.Hit
	// Records counts every record the engine returned, including the
	// malformed ones that were dropped. Offsets advance by Records.
	Records int
}

// Parse splits raw into hits. Records missing a sentence id, sentence or
// node lists are dropped; they are expected under the text encoding and do
// not fail the batch. offset is the position of the first record within the
// shard and numbers the hits so repeated matches in one sentence stay
// addressable.
func Parse(raw, database, component string, offset int) Batch {
	var batch Batch

	for _, record := range strings.Split(raw, xquery.RecordEnd) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		position := offset + batch.Records
		batch.Records++

		hit, ok := parseRecord(record, position)
		if !ok {
			continue
		}
		hit.SearchedDatabase = database
		hit.Component = component
		if hit.Database == "" {
			hit.Database = database
		}
		batch.Hits = append(batch.Hits, hit)
	}

	return batch
}

func parseRecord(record string, position int) (types.Hit, bool) {
	record = strings.TrimPrefix(record, xquery.RecordStart)
	fields := strings.Split(record, xquery.FieldSeparator)
	if len(fields) <= xquery.FieldNodeStarts {
		return types.Hit{}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	field := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	sentenceID := field(xquery.FieldSentenceID)
	sentence := field(xquery.FieldSentence)
	if sentenceID == "" || sentence == "" {
		return types.Hit{}, false
	}

	nodeIDs, ok := parseIntList(field(xquery.FieldNodeIDs))
	if !ok || len(nodeIDs) == 0 {
		return types.Hit{}, false
	}
	nodeStarts, ok := parseIntList(field(xquery.FieldNodeStarts))
	if !ok {
		return types.Hit{}, false
	}

	return types.Hit{
		SentenceID: sentenceID + MatchSuffix + strconv.Itoa(position),
		Sentence:   sentence,
		Database:   field(xquery.FieldDatabase),
		NodeIDs:    nodeIDs,
		NodeStarts: nodeStarts,
		XML:        field(xquery.FieldNodeXML),
		Meta:       field(xquery.FieldMeta),
		Variables:  field(xquery.FieldVariables),
	}, true
}

func parseIntList(s string) ([]int, bool) {
	if s == "" {
		return []int{}, true
	}
	parts := strings.Split(s, "-")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// SplitSentenceID removes the match suffix from a hit's sentence id.
func SplitSentenceID(id string) (sentenceID string, match int, ok bool) {
	i := strings.LastIndex(id, MatchSuffix)
	if i < 0 {
		return id, 0, false
	}
	n, err := strconv.Atoi(id[i+len(MatchSuffix):])
	if err != nil {
		return id, 0, false
	}
	return id[:i], n, true
}
