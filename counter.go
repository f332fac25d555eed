package crdt

import "sync"

// counterEntry tracks one site's running positive and negative totals.
type counterEntry struct {
	pos int64
	neg int64
}

// CounterOp is the replicable description of a Counter increment: the
// acting site's new (pos, neg) totals after the delta was applied. Sending
// the new max, rather than the raw delta, makes remote application a
// simple point-wise max instead of requiring delivery-order bookkeeping.
type CounterOp struct {
	Site uint32
	Pos  int64
	Neg  int64
}

// Counter is a PN-Counter: each site tracks its own cumulative positive and
// negative totals, merged by taking the point-wise max per site. The
// visible value is the sum of all sites' positives minus the sum of all
// their negatives.
type Counter struct {
	mu     sync.RWMutex
	site   uint32
	totals map[uint32]counterEntry
	cache  opCache[CounterOp]
}

// NewCounter creates a zeroed Counter owned by site.
func NewCounter(site uint32) *Counter {
	return &Counter{site: site, totals: make(map[uint32]counterEntry)}
}

// Value returns the sum of positives minus the sum of negatives across all
// sites.
func (c *Counter) Value() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, e := range c.totals {
		total += e.pos - e.neg
	}
	return total
}

// Increment adds delta (positive or negative) to this site's running
// total.
func (c *Counter) Increment(delta int64) (CounterOp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.totals[c.site]
	if delta >= 0 {
		e.pos += delta
	} else {
		e.neg += -delta
	}
	c.totals[c.site] = e

	op := CounterOp{Site: c.site, Pos: e.pos, Neg: e.neg}
	if c.site == 0 {
		c.cache.record(op)
		return CounterOp{}, wrap(ErrAwaitingSite, "counter increment")
	}
	return op, nil
}

// ExecuteRemote applies a remote op by taking the point-wise max of the
// carried site's totals against what's already known.
func (c *Counter) ExecuteRemote(op CounterOp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.totals[op.Site]
	changed := false
	if op.Pos > e.pos {
		e.pos = op.Pos
		changed = true
	}
	if op.Neg > e.neg {
		e.neg = op.Neg
		changed = true
	}
	if changed {
		c.totals[op.Site] = e
	} else {
		logger().Debug("counter: discarding stale op", "site", op.Site)
	}
}

// Merge takes the point-wise max of every site's totals.
func (c *Counter) Merge(other *Counter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	for site, oe := range other.totals {
		e := c.totals[site]
		if oe.pos > e.pos {
			e.pos = oe.pos
		}
		if oe.neg > e.neg {
			e.neg = oe.neg
		}
		c.totals[site] = e
	}
}

// AddSiteID assigns site to a Counter created without one, folding its
// site-0 totals into site's bucket.
func (c *Counter) AddSiteID(site uint32) ([]CounterOp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.site != 0 {
		return nil, wrap(ErrAlreadyHasSiteId, "counter")
	}
	if e, ok := c.totals[0]; ok {
		dst := c.totals[site]
		if e.pos > dst.pos {
			dst.pos = e.pos
		}
		if e.neg > dst.neg {
			dst.neg = e.neg
		}
		c.totals[site] = dst
		delete(c.totals, 0)
	}

	pending := c.cache.drain()
	for i := range pending {
		if pending[i].Site == 0 {
			pending[i].Site = site
		}
	}
	c.site = site
	logger().Debug("counter: assigned site id", "site", site, "cached_ops", len(pending))
	return pending, nil
}

// CounterSiteState is the wire projection of one site's totals.
type CounterSiteState struct {
	Site uint32 `json:"site" msgpack:"site"`
	Pos  int64  `json:"pos" msgpack:"pos"`
	Neg  int64  `json:"neg" msgpack:"neg"`
}

// CounterState is the full snapshot of a Counter, without the owning site
// id.
type CounterState struct {
	Sites []CounterSiteState `json:"sites" msgpack:"sites"`
}

// State snapshots the counter.
func (c *Counter) State() CounterState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sites := make([]CounterSiteState, 0, len(c.totals))
	for site, e := range c.totals {
		sites = append(sites, CounterSiteState{Site: site, Pos: e.pos, Neg: e.neg})
	}
	return CounterState{Sites: sites}
}

// FromCounterState rebuilds a Counter from a snapshot, bound to site.
func FromCounterState(state CounterState, site uint32) *Counter {
	c := NewCounter(site)
	for _, s := range state.Sites {
		c.totals[s.Site] = counterEntry{pos: s.Pos, neg: s.Neg}
	}
	return c
}
