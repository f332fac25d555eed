package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpCacheRecordAndDrain(t *testing.T) {
	var c opCache[int]
	c.record(1)
	c.record(2)
	assert.Equal(t, 2, c.len())

	drained := c.drain()
	assert.Equal(t, []int{1, 2}, drained)
	assert.Equal(t, 0, c.len())
	assert.Empty(t, c.drain(), "draining an empty cache is a no-op, not an error")
}
