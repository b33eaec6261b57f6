package whaledetector

import "container/list"

// txHashLRU is a fixed-capacity dedup set keyed by transaction hash: a
// hash is not re-emitted while it remains in the set, and the oldest entry
// is evicted when the set is full, after which that hash counts as unseen
// again (spec §4.6: capacity 1000).
type txHashLRU struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newTxHashLRU(capacity int) *txHashLRU {
	return &txHashLRU{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// SeenOrAdd reports whether hash was already recorded; if not, it records
// it and evicts the oldest entry if the set is now over capacity.
func (l *txHashLRU) SeenOrAdd(hash string) bool {
	if _, ok := l.index[hash]; ok {
		return true
	}
	el := l.order.PushBack(hash)
	l.index[hash] = el

	if l.order.Len() > l.capacity {
		oldest := l.order.Front()
		l.order.Remove(oldest)
		delete(l.index, oldest.Value.(string))
	}
	return false
}
