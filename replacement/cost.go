package replacement

import "github.com/sarchlab/spmv-cache-trace/refstring"

// Cost runs reference string w through policy p sequentially, tallying
// misses per NUMA domain. The returned slice has length numNUMADomains.
func Cost(p Policy, w refstring.String, numNUMADomains int) []uint64 {
	misses := make([]uint64, numNUMADomains)
	for _, ref := range w {
		misses[ref.NUMA] += p.Allocate(ref.Addr, ref.NUMA)
	}
	return misses
}

// CostInterleaved runs P reference strings against a single shared policy
// instance, stepping through them in round-robin order:
// (t=0,p=0),(t=0,p=1),...,(t=0,p=P-1),(t=1,p=0),... A stream that has
// fewer references than the longest stream is simply skipped once
// exhausted; it never blocks the others. The result is one per-NUMA-domain
// miss vector per input stream, in input order.
func CostInterleaved(p Policy, ws []refstring.String, numNUMADomains int) [][]uint64 {
	streams := len(ws)
	misses := make([][]uint64, streams)
	for i := range misses {
		misses[i] = make([]uint64, numNUMADomains)
	}

	maxLen := 0
	for _, w := range ws {
		if len(w) > maxLen {
			maxLen = len(w)
		}
	}

	for t := 0; t < maxLen; t++ {
		for stream := 0; stream < streams; stream++ {
			if t >= len(ws[stream]) {
				continue
			}
			ref := ws[stream][t]
			misses[stream][ref.NUMA] += p.Allocate(ref.Addr, ref.NUMA)
		}
	}
	return misses
}
