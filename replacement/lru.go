package replacement

import "github.com/sarchlab/spmv-cache-trace/circularbuffer"

// LRU evicts the least-recently-used resident tag. The recency list is
// kept in a circularbuffer.Buffer from LRU-end (front) to MRU-end (back);
// every tag appears in it at most once, which is what makes searching from
// the MRU end on a hit safe — an optimization that relies on the
// no-duplicates invariant rather than changing the result.
type LRU struct {
	base
	q *circularbuffer.Buffer[Tag]
}

// NewLRU creates an LRU policy. The initial state's given order becomes
// the initial recency order, from LRU-end to MRU-end.
func NewLRU(cacheLines, lineSize uint64, initial []Tag) *LRU {
	q := circularbuffer.New[Tag](2 * int(cacheLines))
	for _, t := range initial {
		q.PushBack(t)
	}
	return &LRU{base: newBase(cacheLines, lineSize, initial), q: q}
}

// Allocate implements Policy.
func (l *LRU) Allocate(addr uint64, _ int) uint64 {
	t := l.tagOf(addr)
	if l.hit(t) {
		if idx := l.q.ReverseEach(func(v Tag) bool { return v != t }); idx != -1 {
			l.q.RemoveAt(idx)
			l.q.PushBack(t)
		}
		return 0
	}

	if uint64(len(l.resident)) == l.cacheLines {
		victim := l.q.Front()
		l.q.PopFront()
		delete(l.resident, victim)
	}
	l.resident[t] = struct{}{}
	l.q.PushBack(t)
	return 1
}
