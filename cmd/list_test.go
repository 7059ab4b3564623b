package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/treesearch/internal/types"
)

var listedTreebanks = []types.Treebank{
	{Name: "lassy", Components: []string{"WRPE", "WSU"}},
	{Name: "sonar", Title: "SoNaR-500", Grinded: true, Components: []string{"WRPEC"}},
}

func TestPrintTreebanks(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printTreebanks(&buf, listedTreebanks, false))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, []string{"CORPUS", "GRINDED", "COMPONENTS", "TITLE"}, strings.Fields(lines[0]))
		assert.Equal(t, []string{"lassy", "false", "WRPE,WSU"}, strings.Fields(lines[1]))
		assert.Equal(t, []string{"sonar", "true", "WRPEC", "SoNaR-500"}, strings.Fields(lines[2]))
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printTreebanks(&buf, listedTreebanks, true))

		var got []types.Treebank
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, listedTreebanks, got)
	})
}

func TestRunListReadsTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte("corpora:\n  lassy:\n    components:\n      WRPE: {}\n"), 0o644))
	t.Setenv("TREEBANK_TOPOLOGY", path)

	listJSON = true
	defer func() { listJSON = false }()

	var runErr error
	out := captureStdout(t, func() {
		runErr = runList(listCmd, nil)
	})
	require.NoError(t, runErr)

	var got []types.Treebank
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []types.Treebank{{Name: "lassy", Components: []string{"WRPE"}}}, got)
}
