package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree(t *testing.T) {
	engine := newFakeEngine()
	engine.trees["WRPE0001/s1"] = `<alpino_ds id="s1"><node cat="top"/></alpino_ds>`
	engine.trees["WRPE/s2"] = `<alpino_ds id="s2"/>`
	fetcher := NewTreeFetcher(engine, fakeTopology{}, nil)

	tree, err := fetcher.Tree(context.Background(), "sonar", "WRPE", "WRPE0001", "s1+match=12")
	require.NoError(t, err)
	assert.Equal(t, `<alpino_ds id="s1"><node cat="top"/></alpino_ds>`, tree)

	tree, err = fetcher.Tree(context.Background(), "sonar", "WRPE", "", "s2")
	require.NoError(t, err)
	assert.Equal(t, `<alpino_ds id="s2"/>`, tree, "database defaults to the component")
	assert.Zero(t, engine.open)
}

func TestTreeErrors(t *testing.T) {
	engine := newFakeEngine()
	fetcher := NewTreeFetcher(engine, fakeTopology{}, nil)

	_, err := fetcher.Tree(context.Background(), "sonar", "WRPE", "WRPE", "missing")
	assert.True(t, errors.Is(err, ErrTreeNotFound))

	_, err = fetcher.Tree(context.Background(), "sonar", "WRPE", "WRPE", `s1"] | db:drop("x`)
	assert.True(t, errors.Is(err, ErrInvalidSentenceID))

	_, err = fetcher.Tree(context.Background(), "sonar", "WRPE", "WRPE", "")
	assert.True(t, errors.Is(err, ErrInvalidSentenceID))

	assert.Len(t, engine.connects, 1, "invalid ids never reach the server")
}
