package crdt

import "sync"

// opCache buffers locally-minted ops produced while a component is still
// running under the site-0 sentinel (no site id assigned yet). Once
// AddSiteID runs, the cache is drained and every op's site-0 references are
// rewritten to the real id before being handed back for replication —
// nothing generated before site assignment is lost or sent with a
// dangling site-0 dot.
type opCache[OpT any] struct {
	mu  sync.Mutex
	ops []OpT
}

// record appends op to the pending buffer.
func (c *opCache[OpT]) record(op OpT) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, op)
}

// drain returns and clears every buffered op.
func (c *opCache[OpT]) drain() []OpT {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.ops
	c.ops = nil
	return out
}

// len reports how many ops are currently buffered.
func (c *opCache[OpT]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ops)
}
