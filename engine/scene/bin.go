package scene

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/node"
)

// layerStride separates layer priorities in sort keys, so records group by layer first and by
// program within a layer.
const layerStride = 100000

func (s *scene) sortKey(n *node.Node) int {
	return s.layers.Priority(n.Layer)*layerStride + n.Program.ID()
}

func (s *scene) ForceSort(rebuildKeys bool) {
	s.needsSort = true
	if rebuildKeys {
		s.needsSortKeys = true
	}
}

func (s *scene) SetSortDelay(n int) {
	s.sortDelay = max(n, -1)
	s.countdown = s.sortDelay
}

// schedule rebuilds sort keys and sorts the bin when due. It reports whether a sort ran.
func (s *scene) schedule() bool {
	if s.needsSortKeys {
		for _, n := range s.bin {
			n.SortKey = s.sortKey(n)
		}
		s.needsSortKeys = false
	}
	if !s.sortDue() {
		return false
	}
	slices.SortStableFunc(s.bin, func(a, b *node.Node) int {
		return cmp.Compare(a.SortKey, b.SortKey)
	})
	s.needsSort = false
	s.countdown = s.sortDelay
	return true
}

func (s *scene) sortDue() bool {
	if s.needsSort {
		return true
	}
	switch {
	case s.sortDelay < 0:
		return false
	case s.sortDelay == 0:
		return true
	}
	s.countdown--
	return s.countdown <= 0
}

// compact removes tombstoned records in one stable pass.
func (s *scene) compact() {
	if s.destroyed == 0 {
		return
	}
	live := 0
	for _, n := range s.bin {
		if !n.Destroyed {
			s.bin[live] = n
			live++
		}
	}
	clear(s.bin[live:])
	s.bin = s.bin[:live]
	s.destroyed = 0
}
