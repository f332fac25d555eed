package crdt

import (
	"math/rand"

	"github.com/google/btree"
)

// pathBase sets the branching factor at path depth 0 to 2^pathBase; depth d
// branches by 2^(pathBase+d). This is the classical Logoot "boundary+"
// strategy: the arena of legal digits widens geometrically with depth so
// that paths stay short under heavy concurrent insertion at the same
// position. No library in the retrieval pack implements dense positional
// identifier allocation, so this stays hand-rolled against spec.md §4.B
// rather than reached for via a dependency.
const pathBase = 5

func levelWidth(depth int) uint32 {
	return 1 << uint(pathBase+depth)
}

// OrderKey is a dense, totally-ordered identifier for a position inside a
// Sequence. Comparison is lexicographic on Path, then Site, then Counter;
// a shorter path that is a prefix of a longer one sorts before it.
type OrderKey struct {
	Path    []uint32
	Site    uint32
	Counter uint64
}

// Compare returns -1, 0 or 1 as k sorts before, equal to, or after o.
func (k OrderKey) Compare(o OrderKey) int {
	n := len(k.Path)
	if len(o.Path) < n {
		n = len(o.Path)
	}
	for i := 0; i < n; i++ {
		if k.Path[i] != o.Path[i] {
			if k.Path[i] < o.Path[i] {
				return -1
			}
			return 1
		}
	}
	if len(k.Path) != len(o.Path) {
		if len(k.Path) < len(o.Path) {
			return -1
		}
		return 1
	}
	if k.Site != o.Site {
		if k.Site < o.Site {
			return -1
		}
		return 1
	}
	switch {
	case k.Counter < o.Counter:
		return -1
	case k.Counter > o.Counter:
		return 1
	default:
		return 0
	}
}

// Less reports whether k sorts strictly before o.
func (k OrderKey) Less(o OrderKey) bool {
	return k.Compare(o) < 0
}

// btreeKey adapts OrderKey to google/btree's Item interface, which the
// Sequence core (§4.C) uses as its "balanced ordered index".
type btreeKey struct {
	key OrderKey
}

func (k btreeKey) Less(than btree.Item) bool {
	return k.key.Less(than.(btreeKey).key)
}

// pathDigit returns the digit of path at depth, or 0 if path does not reach
// that deep.
func pathDigit(path []uint32, depth int) uint32 {
	if depth < len(path) {
		return path[depth]
	}
	return 0
}

// between generates an OrderKey strictly between lo and hi (nil meaning the
// synthetic minimum / maximum sentinel respectively), tagged with the
// minting site and counter. It never returns lo or hi, and always succeeds:
// the widening arena at each depth guarantees a gap eventually opens.
func between(lo, hi *OrderKey, site uint32, counter uint64) OrderKey {
	var loPath, hiPath []uint32
	if lo != nil {
		loPath = lo.Path
	}
	if hi != nil {
		hiPath = hi.Path
	}

	path := make([]uint32, 0, len(loPath)+1)
	depth := 0
	for {
		width := levelWidth(depth)
		loDigit := pathDigit(loPath, depth)

		var hiDigit uint32
		hiBounded := hi != nil && depth < len(hiPath)
		if hiBounded {
			hiDigit = hiPath[depth]
		} else {
			hiDigit = width
		}

		if hiDigit > loDigit+1 {
			gap := hiDigit - loDigit - 1
			// Boundary+: bias the pick toward lo's side of the interval by
			// capping the stride, rather than sampling the full gap.
			stride := gap
			if stride > 10 {
				stride = 10
			}
			digit := loDigit + 1 + uint32(rand.Intn(int(stride)))
			path = append(path, digit)
			break
		}

		// No gap at this depth yet: descend a level, carrying lo's digit
		// forward so the new path still sorts after lo at every shared
		// depth.
		path = append(path, loDigit)
		depth++
	}

	return OrderKey{Path: path, Site: site, Counter: counter}
}
