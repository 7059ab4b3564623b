// Package xquery builds the XQuery text sent to BaseX.
//
// Search results are encoded as text: each hit is a <match> element whose
// fields are separated by FieldSeparator. The fields may hold arbitrary XML
// (matched subtree, metadata, variables), which is why no generic structured
// encoding is used.
package xquery

import (
	"fmt"
	"strings"

	"github.com/ca-srg/treesearch/internal/types"
)

const (
	// RecordEnd closes one hit record.
	RecordEnd = "</match>"
	// RecordStart opens one hit record.
	RecordStart = "<match>"
	// FieldSeparator separates the fields of one hit record.
	FieldSeparator = "||"
	// SentenceTableSuffix names the sentence table of a grinded component.
	SentenceTableSuffix = "sentence2treebank"
)

// Record field positions.
const (
	FieldSentenceID = iota
	FieldSentence
	FieldDatabase
	FieldNodeIDs
	FieldNodeStarts
	FieldNodeXML
	FieldMeta
	FieldVariables
	FieldCount
)

// SearchQuery holds the inputs of one shard query.
type SearchQuery struct {
	Grinded   bool
	Component string
	Database  string
	// Start and End form the 0-based half-open window [Start, End).
	Start     int
	End       int
	Context   bool
	Pattern   string
	Variables []types.Variable
}

// Search builds the query returning the hits of one shard in the window
// [Start, End). Evaluating adjacent windows yields the same records as one
// query over their union, as long as the database is unchanged.
func Search(q SearchQuery) string {
	var flwor string
	if q.Grinded {
		flwor = grindedFLWOR(q)
	} else {
		flwor = ungrindedFLWOR(q)
	}

	start := q.Start
	if start < 0 {
		start = 0
	}
	end := q.End
	if end < start {
		end = start
	}
	return fmt.Sprintf("(%s)[position() = %d to %d]", flwor, start+1, end)
}

// ungrinded layout:
//
//	<treebank>
//	  <alpino_ds id="sentence_id"><node .../><sentence>...</sentence><metadata/></alpino_ds>
//	</treebank>
func ungrindedFLWOR(q SearchQuery) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nfor $node in db:open(%s)/treebank%s", Quote(q.Database), rootedPattern(q.Pattern))
	b.WriteString(`
    let $tree := ($node/ancestor::alpino_ds)
    let $sentid := ($tree/@id)
    let $sentence := ($tree/sentence)`)
	writeNodeLets(&b, "    ")
	b.WriteString(`
    let $meta := ($tree/metadata/meta)`)
	if q.Context {
		b.WriteString(`
    let $prevs := ($tree/preceding-sibling::alpino_ds[1]/sentence)
    let $nexts := ($tree/following-sibling::alpino_ds[1]/sentence)`)
	}
	writeVariableLets(&b, "    ", q.Variables)
	b.WriteString("\n    return")
	writeMatch(&b, "    ", q, "{"+Quote(q.Database)+"}")

	return b.String()
}

// grinded layout:
//
//	<treebank component="COMPONENT" cat="np" file="...">
//	  <include file="other_database"/>
//	  <tree id="sentence_id"><node .../></tree>
//	</treebank>
//
// The sentence text lives in the component's sentence table:
//
//	<sentence2treebank><sentence nr="sentence_id" part="DATABASE">text</sentence></sentence2treebank>
func grindedFLWOR(q SearchQuery) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nfor $node in db:open(%s)/treebank/tree/%s", Quote(q.Database), strings.TrimLeft(q.Pattern, "/"))
	b.WriteString(`
    let $tree := ($node/ancestor::tree)
    let $sentid := ($tree/@id)
    let $meta := ($tree/metadata/meta)
`)
	fmt.Fprintf(&b, "    return for $sentence in (db:open(%s)/%s/sentence[@nr=$sentid])",
		Quote(SentenceTable(q.Component)), SentenceTableSuffix)
	// @part is only present when the ungrinded component is split into
	// several databases; otherwise the database is named after the component.
	fmt.Fprintf(&b, "\n        let $ungrindedDatabase := (if ($sentence/@part) then string($sentence/@part) else %s)",
		Quote(q.Component))
	writeNodeLets(&b, "        ")
	if q.Context {
		b.WriteString(`
        let $text := fn:replace($sentid[1], '(.+?)(\d+)$', '$1')
        let $snr := fn:replace($sentid[1], '(.+?)(\d+)$', '$2')
        let $previd := concat($text, number($snr) - 1)
        let $nextid := concat($text, number($snr) + 1)
        let $prevs := root($sentence)/sentence2treebank/sentence[@nr=$previd]
        let $nexts := root($sentence)/sentence2treebank/sentence[@nr=$nextid]`)
	}
	writeVariableLets(&b, "        ", q.Variables)
	b.WriteString("\n        return")
	writeMatch(&b, "        ", q, "{data($ungrindedDatabase)}")

	return b.String()
}

// writeNodeLets binds the ids and begin offsets of the matched nodes,
// including nodes co-indexed with them so discontinuous constituents are
// highlighted completely.
func writeNodeLets(b *strings.Builder, indent string) {
	lets := []string{
		"let $indexs := (distinct-values($node//@index))",
		"let $indexed := ($tree//node[@index=$indexs])",
		"let $ids := (for $id in distinct-values(($node | $indexed)//@id) order by number($id) return $id)",
		"let $beginlist := (for $begin in distinct-values(($node | $indexed)//@begin) order by number($begin) return $begin)",
	}
	for _, l := range lets {
		b.WriteString("\n" + indent + l)
	}
}

func writeVariableLets(b *strings.Builder, indent string, variables []types.Variable) {
	for _, v := range variables {
		if v.Name == types.RootVariable {
			continue
		}
		fmt.Fprintf(b, "\n%slet %s := (%s)[1]", indent, v.Name, variablePath(v.Path))
	}
}

func writeMatch(b *strings.Builder, indent string, q SearchQuery, database string) {
	sentence := "{data($sentence)}"
	if q.Context {
		sentence = "{data($prevs)} <em>{data($sentence)}</em> {data($nexts)}"
	}

	fields := make([]string, FieldCount)
	fields[FieldSentenceID] = "{data($sentid)}"
	fields[FieldSentence] = sentence
	fields[FieldDatabase] = database
	fields[FieldNodeIDs] = "{string-join($ids, '-')}"
	fields[FieldNodeStarts] = "{string-join($beginlist, '-')}"
	fields[FieldNodeXML] = "{$node}"
	fields[FieldMeta] = "{$meta}"
	fields[FieldVariables] = variableResults(q.Variables)

	inner := indent + "    "
	b.WriteString("\n" + indent + RecordStart)
	for i, f := range fields {
		if i > 0 {
			b.WriteString("\n" + inner + FieldSeparator)
		}
		b.WriteString("\n" + inner + f)
	}
	b.WriteString("\n" + indent + RecordEnd)
}

func variableResults(variables []types.Variable) string {
	if len(variables) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<vars>")
	for _, v := range variables {
		fmt.Fprintf(&b, `<var name="%s">{%s/@*}</var>`, attributeText(v.Name), v.Name)
	}
	b.WriteString("</vars>")
	return b.String()
}

// variablePath makes a path relative to the matched node unless it already
// starts from a variable. A leading // keeps the descendant axis.
func variablePath(path string) string {
	path = strings.TrimSpace(path)
	switch {
	case strings.HasPrefix(path, "$"):
		return path
	case strings.HasPrefix(path, "/"):
		return types.RootVariable + path
	case path == ".":
		return types.RootVariable
	case strings.HasPrefix(path, "./"):
		return types.RootVariable + path[1:]
	}
	return types.RootVariable + "/" + path
}

// rootedPattern makes sure the pattern continues the /treebank step.
func rootedPattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if strings.HasPrefix(pattern, "/") {
		return pattern
	}
	return "/" + pattern
}

// SentenceTable names the database holding the sentences of a grinded component.
func SentenceTable(component string) string {
	return component + SentenceTableSuffix
}

// Quote renders s as an XQuery string literal.
func Quote(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, `"`, `""`)
	return `"` + s + `"`
}

// attributeText escapes s for a direct attribute constructor.
func attributeText(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		`"`, "&quot;",
		"{", "{{",
		"}", "}}",
	)
	return r.Replace(s)
}
