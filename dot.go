package crdt

import "sort"

// Dot uniquely names a single mutating event: the site that produced it and
// that site's logical counter at the time. A site's counter increases by
// exactly 1 for every dot it mints, so dots are globally unique given
// globally unique sites.
//
// Site 0 is a sentinel meaning "minted before this replica was assigned a
// site id" (see ErrAwaitingSite in errors.go and the AddSiteID method on every
// component). A Dot with Site 0 must never leave a CRDT as part of a
// replicated op.
type Dot struct {
	Site    uint32
	Counter uint64
}

// Unassigned reports whether d was minted by a replica still awaiting a
// site id.
func (d Dot) Unassigned() bool {
	return d.Site == 0
}

// Less gives dots a total order (site, then counter), used only for
// deterministic tie-breaks such as Register.Value() and Map's
// concurrent-insert resolution — not for the Dot's identity, which is
// exact equality.
func (d Dot) Less(o Dot) bool {
	if d.Site != o.Site {
		return d.Site < o.Site
	}
	return d.Counter < o.Counter
}

// summary is a per-site "max counter observed" map. It provides O(log sites)
// membership tests for dots and point-wise-max merging, and is the
// mechanism behind tombstoneless deletion: once a dot is in the summary, an
// incoming op carrying that dot is known-duplicate and is discarded without
// needing to retain the element it once described.
type summary struct {
	counters map[uint32]uint64
}

func newSummary() summary {
	return summary{counters: make(map[uint32]uint64)}
}

// contains reports whether d has already been observed, i.e. whether the
// max counter recorded for d.Site is at least d.Counter.
func (s *summary) contains(d Dot) bool {
	return s.counters[d.Site] >= d.Counter
}

// insert records d as observed, growing the site's max counter if needed.
func (s *summary) insert(d Dot) {
	if d.Counter > s.counters[d.Site] {
		s.counters[d.Site] = d.Counter
	}
}

// mint bumps site's counter and returns the freshly allocated dot. Every
// local mutation on a component calls this exactly once per dot it needs.
func (s *summary) mint(site uint32) Dot {
	next := s.counters[site] + 1
	s.counters[site] = next
	return Dot{Site: site, Counter: next}
}

// merge takes the point-wise max of two summaries.
func (s *summary) merge(other *summary) {
	for site, counter := range other.counters {
		if counter > s.counters[site] {
			s.counters[site] = counter
		}
	}
}

// clone returns a deep copy.
func (s *summary) clone() summary {
	c := make(map[uint32]uint64, len(s.counters))
	for k, v := range s.counters {
		c[k] = v
	}
	return summary{counters: c}
}

// rewriteSite moves the site-0 bucket (if any) onto `site`. Called once,
// from AddSiteID, when a replica created without a site id is finally
// assigned one.
func (s *summary) rewriteSite(site uint32) {
	if c, ok := s.counters[0]; ok {
		if c > s.counters[site] {
			s.counters[site] = c
		}
		delete(s.counters, 0)
	}
}

// SummaryEntry is the wire projection of one (site, counter) pair. Summaries
// encode as a sorted list of these, per the Serialization contracts (§6).
type SummaryEntry struct {
	Site    uint32 `json:"site" msgpack:"site"`
	Counter uint64 `json:"counter" msgpack:"counter"`
}

// entries returns the summary as a deterministically sorted (by site) slice,
// suitable for wire encoding and for byte-identical op/state comparison.
func (s *summary) entries() []SummaryEntry {
	out := make([]SummaryEntry, 0, len(s.counters))
	for site, counter := range s.counters {
		out = append(out, SummaryEntry{Site: site, Counter: counter})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}

// summaryFromEntries rebuilds a summary from its wire form.
func summaryFromEntries(entries []SummaryEntry) summary {
	s := newSummary()
	for _, e := range entries {
		if e.Counter > s.counters[e.Site] {
			s.counters[e.Site] = e.Counter
		}
	}
	return s
}
