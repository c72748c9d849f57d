// Package cachetrace implements the top-level cache-miss estimator (spec
// §4.7): for every cache in a trace-config, it finds the threads that feed
// it, builds their reference strings, runs them through a shared LRU, and
// scatters the per-active-thread results back into a full per-thread,
// per-NUMA-domain matrix.
package cachetrace

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/sarchlab/spmv-cache-trace/kernel"
	"github.com/sarchlab/spmv-cache-trace/refstring"
	"github.com/sarchlab/spmv-cache-trace/replacement"
	"github.com/sarchlab/spmv-cache-trace/traceconfig"
)

// Report is the full JSON output shape: the parsed trace-config, the kernel
// description, and cache_misses keyed by cache name.
type Report struct {
	TraceConfig *traceconfig.TraceConfig `json:"trace_config"`
	Kernel      kernel.Description       `json:"kernel"`
	CacheMisses map[string][][]uint64    `json:"cache_misses"`
}

// Trace runs the estimator over every cache in cfg against k, returning a
// complete Report.
func Trace(cfg *traceconfig.TraceConfig, k kernel.Kernel) (*Report, error) {
	numThreads := len(cfg.ThreadAffinities)
	numNUMADomains := len(cfg.NUMADomains)

	cacheMisses := make(map[string][][]uint64, len(cfg.Caches))
	for name, cache := range cfg.Caches {
		misses, err := traceCache(cfg, k, cache, numThreads, numNUMADomains)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		cacheMisses[name] = misses
	}

	return &Report{TraceConfig: cfg, Kernel: k.Describe(), CacheMisses: cacheMisses}, nil
}

// traceCache computes one cache's miss counts: find its active threads,
// build their reference strings, run a correctly-sized policy over the
// interleaved streams, then scatter the per-stream results back onto the
// full thread × NUMA-domain matrix.
func traceCache(
	cfg *traceconfig.TraceConfig,
	k kernel.Kernel,
	cache traceconfig.Cache,
	numThreads, numNUMADomains int,
) ([][]uint64, error) {
	threads := cfg.ActiveThreads(cache)
	glog.Infof("cachetrace: cache %s: %d active of %d threads", cache.Name, len(threads), numThreads)

	strings := make([]refstring.String, len(threads))
	for n, t := range threads {
		w, err := k.ReferenceString(cfg, t, numThreads)
		if err != nil {
			return nil, err
		}
		strings[n] = w
	}

	cacheLines := ceilDiv(cache.Size, cache.LineSize)
	policy := replacement.NewLRU(cacheLines, cache.LineSize, nil)

	activeMisses := replacement.CostInterleaved(policy, strings, numNUMADomains)

	misses := make([][]uint64, numThreads)
	for t := 0; t < numThreads; t++ {
		misses[t] = make([]uint64, numNUMADomains)
	}
	for n, t := range threads {
		misses[t] = activeMisses[n]
	}
	return misses, nil
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
