package replacement

// FIFO evicts the resident tag that was inserted longest ago, regardless of
// how recently it was re-referenced. Membership is tested purely by set
// lookup; re-checking position in the insertion queue on a hit would be a
// redundant equality check once the set lookup already succeeded.
type FIFO struct {
	base
	queue []Tag
}

// NewFIFO creates a FIFO policy. The initial state's insertion order (the
// order it is given in) becomes the initial queue order.
func NewFIFO(cacheLines, lineSize uint64, initial []Tag) *FIFO {
	queue := make([]Tag, len(initial))
	copy(queue, initial)
	return &FIFO{base: newBase(cacheLines, lineSize, initial), queue: queue}
}

// Allocate implements Policy.
func (f *FIFO) Allocate(addr uint64, _ int) uint64 {
	t := f.tagOf(addr)
	if f.hit(t) {
		return 0
	}

	if uint64(len(f.resident)) == f.cacheLines {
		victim := f.queue[0]
		f.queue = f.queue[1:]
		delete(f.resident, victim)
	}
	f.resident[t] = struct{}{}
	f.queue = append(f.queue, t)
	return 1
}
