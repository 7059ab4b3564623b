package xquery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/treesearch/internal/types"
)

const npPattern = `//node[@cat="np" and node[@rel="det"]]`

func TestSearchUngrinded(t *testing.T) {
	q := Search(SearchQuery{
		Component: "WRPE",
		Database:  "WRPE00001",
		Start:     10,
		End:       20,
		Pattern:   npPattern,
	})

	assert.True(t, strings.HasPrefix(q, "(\nfor $node in db:open(\"WRPE00001\")/treebank//node[@cat=\"np\" and node[@rel=\"det\"]]"))
	assert.True(t, strings.HasSuffix(q, ")[position() = 11 to 20]"))
	assert.Contains(t, q, "let $tree := ($node/ancestor::alpino_ds)")
	assert.Contains(t, q, "let $sentence := ($tree/sentence)")
	assert.Contains(t, q, `{"WRPE00001"}`)
	assert.Contains(t, q, "order by number($id)")
	assert.Contains(t, q, "($node | $indexed)//@begin")
	assert.NotContains(t, q, "preceding-sibling")
	assert.NotContains(t, q, SentenceTableSuffix)
	assert.NotContains(t, q, "<vars>")

	assert.Equal(t, FieldCount-1, strings.Count(q, FieldSeparator))
	assert.Equal(t, 1, strings.Count(q, RecordStart))
	assert.Equal(t, 1, strings.Count(q, RecordEnd))
}

func TestSearchUngrindedContext(t *testing.T) {
	q := Search(SearchQuery{Database: "WRPE", End: 5, Context: true, Pattern: npPattern})

	assert.Contains(t, q, "let $prevs := ($tree/preceding-sibling::alpino_ds[1]/sentence)")
	assert.Contains(t, q, "let $nexts := ($tree/following-sibling::alpino_ds[1]/sentence)")
	assert.Contains(t, q, "{data($prevs)} <em>{data($sentence)}</em> {data($nexts)}")
	assert.True(t, strings.HasSuffix(q, "[position() = 1 to 5]"))
}

func TestSearchGrinded(t *testing.T) {
	q := Search(SearchQuery{
		Grinded:   true,
		Component: "WRPEC",
		Database:  "WRPECnp%det",
		Start:     0,
		End:       100,
		Pattern:   npPattern,
	})

	assert.Contains(t, q, `for $node in db:open("WRPECnp%det")/treebank/tree/node[@cat="np" and node[@rel="det"]]`)
	assert.Contains(t, q, "let $tree := ($node/ancestor::tree)")
	assert.Contains(t, q, `db:open("WRPECsentence2treebank")/sentence2treebank/sentence[@nr=$sentid]`)
	assert.Contains(t, q, `else "WRPEC")`)
	assert.Contains(t, q, "{data($ungrindedDatabase)}")
	assert.NotContains(t, q, "alpino_ds")
	assert.NotContains(t, q, "$previd")
	assert.True(t, strings.HasSuffix(q, "[position() = 1 to 100]"))
}

func TestSearchGrindedContext(t *testing.T) {
	q := Search(SearchQuery{Grinded: true, Component: "WRPEC", Database: "WRPECnp", End: 1, Context: true, Pattern: npPattern})

	assert.Contains(t, q, `let $previd := concat($text, number($snr) - 1)`)
	assert.Contains(t, q, `let $nextid := concat($text, number($snr) + 1)`)
	assert.Contains(t, q, "root($sentence)/sentence2treebank/sentence[@nr=$previd]")
	assert.NotContains(t, q, "preceding-sibling")
}

func TestSearchVariables(t *testing.T) {
	q := Search(SearchQuery{
		Database: "WRPE",
		End:      10,
		Pattern:  npPattern,
		Variables: []types.Variable{
			{Name: "$node", Path: "*"},
			{Name: "$det", Path: `$node/node[@rel="det"]`},
			{Name: "$hd", Path: `node[@rel="hd"]`},
		},
	})

	assert.NotContains(t, q, "let $node :=")
	assert.Contains(t, q, `let $det := ($node/node[@rel="det"])[1]`)
	assert.Contains(t, q, `let $hd := ($node/node[@rel="hd"])[1]`)
	assert.Contains(t, q, `<vars><var name="$node">{$node/@*}</var><var name="$det">{$det/@*}</var><var name="$hd">{$hd/@*}</var></vars>`)

	// variable lets must come before the return clause
	require.Less(t, strings.Index(q, "let $hd"), strings.Index(q, "\n    return"))
}

func TestVariablePathKeepsAxis(t *testing.T) {
	testcases := []struct {
		path string
		want string
	}{
		{path: `node[@rel="hd"]`, want: `$node/node[@rel="hd"]`},
		{path: `/node[@rel="hd"]`, want: `$node/node[@rel="hd"]`},
		{path: `//node[@rel="hd"]`, want: `$node//node[@rel="hd"]`},
		{path: `./node[@rel="hd"]`, want: `$node/node[@rel="hd"]`},
		{path: `.//node[@rel="hd"]`, want: `$node//node[@rel="hd"]`},
		{path: `.`, want: `$node`},
		{path: ` $det/node `, want: `$det/node`},
	}

	for _, tt := range testcases {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, variablePath(tt.path))
		})
	}

	q := Search(SearchQuery{
		Database:  "WRPE",
		End:       10,
		Pattern:   npPattern,
		Variables: []types.Variable{{Name: "$hd", Path: `//node[@rel="hd"]`}},
	})
	assert.Contains(t, q, `let $hd := ($node//node[@rel="hd"])[1]`)
}

func TestSearchWindowBounds(t *testing.T) {
	q := Search(SearchQuery{Database: "WRPE", Start: -5, End: -1, Pattern: npPattern})
	assert.True(t, strings.HasSuffix(q, "[position() = 1 to 0]"), "an empty window selects nothing")

	q = Search(SearchQuery{Database: "WRPE", Start: 3, End: 3, Pattern: "node"})
	assert.Contains(t, q, "/treebank/node")
	assert.True(t, strings.HasSuffix(q, "[position() = 4 to 3]"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, Quote("plain"))
	assert.Equal(t, `"a""b"`, Quote(`a"b`))
	assert.Equal(t, `"a&amp;b"`, Quote("a&b"))
}

func TestHelperQueries(t *testing.T) {
	assert.Equal(t, `db:exists("WRPECnp")`, Exists("WRPECnp"))
	assert.Equal(t, `string-join(db:open("WRPECnp")/treebank/include/@file ! string(.), '&#10;')`, Includes("WRPECnp"))
	assert.Equal(t, `count(db:open("WRPE")/treebank//node[@cat="np"])`, Count("WRPE", `//node[@cat="np"]`))
	assert.Equal(t, `db:open("WRPE")/treebank/alpino_ds[@id="WR-P-E-A-0000000001.p.1.s.1"]`, Tree("WRPE", "WR-P-E-A-0000000001.p.1.s.1"))
}

func TestParseIncludes(t *testing.T) {
	assert.Nil(t, ParseIncludes(""))
	assert.Equal(t, []string{"WRPECnp%det_1", "WRPECnp%det_2"}, ParseIncludes("WRPECnp%det_1\n  \nWRPECnp%det_2\n"))
}
