package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerClient(t *testing.T) {
	r := NewRateLimiter(2, 0)

	assert.True(t, r.Allow("10.0.0.1"))
	assert.True(t, r.Allow("10.0.0.1"))
	assert.False(t, r.Allow("10.0.0.1"))
	assert.True(t, r.Allow("10.0.0.2"), "other clients keep their own budget")
}

func TestRateLimiterGlobal(t *testing.T) {
	r := NewRateLimiter(10, 3)

	assert.True(t, r.Allow("a"))
	assert.True(t, r.Allow("b"))
	assert.True(t, r.Allow("c"))
	assert.False(t, r.Allow("d"))
}
