// Package kernel binds a sparse matrix, in one of the recognized formats,
// plus its x/y operand arrays, into the uniform contract the top-level
// cache trace estimator drives: each format's reference-string generator,
// unified behind one interface.
package kernel

import (
	"fmt"

	"github.com/sarchlab/spmv-cache-trace/matrix/coo"
	"github.com/sarchlab/spmv-cache-trace/matrix/csr"
	"github.com/sarchlab/spmv-cache-trace/matrix/ellpack"
	"github.com/sarchlab/spmv-cache-trace/matrix/hybrid"
	"github.com/sarchlab/spmv-cache-trace/refstring"
	"github.com/sarchlab/spmv-cache-trace/traceconfig"
)

// Description is the kernel-description field of the JSON report, alongside
// the parsed trace-config and cache_misses.
type Description struct {
	Format     string         `json:"format"`
	Rows       int            `json:"rows"`
	Columns    int            `json:"columns"`
	NumEntries int            `json:"num_entries"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Kernel is a matrix bound to a format and its operand arrays; it produces
// one thread's SpMV memory reference string against the NUMA placement a
// trace-config's thread affinities imply.
type Kernel interface {
	ReferenceString(cfg *traceconfig.TraceConfig, thread, numThreads int) (refstring.String, error)
	Describe() Description
}

// numaDomainsForThreads resolves each thread affinity's named NUMA domain
// to its index in cfg.NUMADomains, the []int form the matrix generators
// expect.
func numaDomainsForThreads(cfg *traceconfig.TraceConfig) ([]int, error) {
	domains := make([]int, len(cfg.ThreadAffinities))
	for i, a := range cfg.ThreadAffinities {
		idx, ok := cfg.NUMADomainIndex(a.NUMADomain)
		if !ok {
			return nil, fmt.Errorf("thread %d: numa_domain %q is not defined", i, a.NUMADomain)
		}
		domains[i] = idx
	}
	return domains, nil
}

// COOKernel wraps a coo.Matrix.
type COOKernel struct {
	Matrix *coo.Matrix
	X, Y   refstring.ArrayHandle
}

func (k *COOKernel) ReferenceString(cfg *traceconfig.TraceConfig, thread, numThreads int) (refstring.String, error) {
	domains, err := numaDomainsForThreads(cfg)
	if err != nil {
		return nil, err
	}
	return k.Matrix.SpMVReferenceString(k.X, k.Y, thread, numThreads, domains)
}

func (k *COOKernel) Describe() Description {
	return Description{Format: "coo", Rows: k.Matrix.Rows, Columns: k.Matrix.Columns, NumEntries: k.Matrix.NumEntries}
}

// CSRKernel wraps a csr.Matrix.
type CSRKernel struct {
	Matrix *csr.Matrix
	X, Y   refstring.ArrayHandle
}

func (k *CSRKernel) ReferenceString(cfg *traceconfig.TraceConfig, thread, numThreads int) (refstring.String, error) {
	domains, err := numaDomainsForThreads(cfg)
	if err != nil {
		return nil, err
	}
	return k.Matrix.SpMVReferenceString(k.X, k.Y, thread, numThreads, domains)
}

func (k *CSRKernel) Describe() Description {
	return Description{
		Format: "csr", Rows: k.Matrix.Rows, Columns: k.Matrix.Columns, NumEntries: k.Matrix.NumEntries,
		Extra: map[string]any{"row_alignment": k.Matrix.RowAlignment},
	}
}

// SourceVectorOnlyKernel wraps a csr.Matrix, using its x-read-only
// reference string variant, the source_vector_only format.
type SourceVectorOnlyKernel struct {
	Matrix *csr.Matrix
	X      refstring.ArrayHandle
}

func (k *SourceVectorOnlyKernel) ReferenceString(cfg *traceconfig.TraceConfig, thread, numThreads int) (refstring.String, error) {
	domains, err := numaDomainsForThreads(cfg)
	if err != nil {
		return nil, err
	}
	return k.Matrix.SourceVectorOnlyReferenceString(k.X, thread, numThreads, domains)
}

func (k *SourceVectorOnlyKernel) Describe() Description {
	return Description{Format: "source_vector_only", Rows: k.Matrix.Rows, Columns: k.Matrix.Columns, NumEntries: k.Matrix.NumEntries}
}

// EllpackKernel wraps an ellpack.Matrix.
type EllpackKernel struct {
	Matrix *ellpack.Matrix
	X, Y   refstring.ArrayHandle
}

func (k *EllpackKernel) ReferenceString(cfg *traceconfig.TraceConfig, thread, numThreads int) (refstring.String, error) {
	domains, err := numaDomainsForThreads(cfg)
	if err != nil {
		return nil, err
	}
	return k.Matrix.SpMVReferenceString(k.X, k.Y, thread, numThreads, domains)
}

func (k *EllpackKernel) Describe() Description {
	return Description{
		Format: "ellpack", Rows: k.Matrix.Rows, Columns: k.Matrix.Columns, NumEntries: k.Matrix.NumEntries,
		Extra: map[string]any{"row_length": k.Matrix.RowLength, "skip_padding": k.Matrix.SkipPadding},
	}
}

// HybridKernel wraps a hybrid.Matrix.
type HybridKernel struct {
	Matrix *hybrid.Matrix
	X, Y   refstring.ArrayHandle
}

func (k *HybridKernel) ReferenceString(cfg *traceconfig.TraceConfig, thread, numThreads int) (refstring.String, error) {
	domains, err := numaDomainsForThreads(cfg)
	if err != nil {
		return nil, err
	}
	return k.Matrix.SpMVReferenceString(k.X, k.Y, thread, numThreads, domains)
}

func (k *HybridKernel) Describe() Description {
	return Description{
		Format: "hybrid", Rows: k.Matrix.Rows, Columns: k.Matrix.Columns, NumEntries: k.Matrix.NumEntries,
		Extra: map[string]any{
			"ellpack_row_length": k.Matrix.EllpackRowLength,
			"num_coo_entries":    k.Matrix.NumCOOEntries,
		},
	}
}
