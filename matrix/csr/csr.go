// Package csr implements the compressed sparse row (CSR) matrix layout and
// its SpMV memory-reference-string generator, plus two related variants:
// per-row alignment padding and the source_vector_only reference-string
// variant (see SPEC_FULL.md).
package csr

import (
	"sort"

	"github.com/sarchlab/spmv-cache-trace/matrix/matrixerr"
	"github.com/sarchlab/spmv-cache-trace/matrix/mtx"
	"github.com/sarchlab/spmv-cache-trace/numa"
	"github.com/sarchlab/spmv-cache-trace/refstring"
)

// Matrix is a compressed-sparse-row matrix, optionally with each row's
// nonzero run padded out to a multiple of RowAlignment elements.
type Matrix struct {
	Rows, Columns, NumEntries int
	RowAlignment              int
	RowPtr                    []int32 // length Rows+1
	ColumnIndex               []int32
	Value                     []float64

	rowPtrArr   refstring.ArrayHandle
	colIndexArr refstring.ArrayHandle
	valueArr    refstring.ArrayHandle
}

// FromMTX builds an unaligned (RowAlignment=1) CSR matrix from a parsed
// Matrix Market file.
func FromMTX(m *mtx.Matrix, addrs *refstring.AddressSpace) *Matrix {
	return FromMTXRowAligned(m, 1, addrs)
}

// FromMTXRowAligned builds a CSR matrix whose rows are padded so each row's
// nonzero run occupies a multiple of rowAlignment elements, following
// original_source's from_matrix_market_row_aligned. Padding entries repeat
// column 0 with value 0, which contributes no weight to y but keeps the
// inner loop's column/value reads in the reference string.
func FromMTXRowAligned(m *mtx.Matrix, rowAlignment int, addrs *refstring.AddressSpace) *Matrix {
	entries := append([]mtx.Entry(nil), m.Entries...)
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].I != entries[b].I {
			return entries[a].I < entries[b].I
		}
		return entries[a].J < entries[b].J
	})

	rowPtr := make([]int32, m.Rows+1)
	k, l := 0, 0
	for r := 0; r < m.Rows; r++ {
		for l < len(entries) && entries[l].I-1 == r {
			l++
			k++
		}
		k = ceilDiv(k, rowAlignment) * rowAlignment
		rowPtr[r+1] = int32(k)
	}

	total := int(rowPtr[m.Rows])
	colIndex := make([]int32, total)
	value := make([]float64, total)
	k, l = 0, 0
	for r := 0; r < m.Rows; r++ {
		for l < len(entries) && entries[l].I-1 == r {
			colIndex[k] = int32(entries[l].J - 1)
			value[k] = entries[l].A
			k++
			l++
		}
		for k < int(rowPtr[r+1]) {
			colIndex[k] = 0
			value[k] = 0
			k++
		}
	}

	return &Matrix{
		Rows: m.Rows, Columns: m.Columns, NumEntries: m.NumEntries,
		RowAlignment: rowAlignment,
		RowPtr:       rowPtr, ColumnIndex: colIndex, Value: value,
		rowPtrArr:   addrs.Alloc(m.Rows+1, 4),
		colIndexArr: addrs.Alloc(total, 4),
		valueArr:    addrs.Alloc(total, 8),
	}
}

// ThreadRowRange returns the [start, end) row range thread handles out of
// numThreads under CSR's row-partitioned work split.
func ThreadRowRange(rows, thread, numThreads int) (start, end int) {
	rowsPerThread := ceilDiv(rows, numThreads)
	start = min(rows, thread*rowsPerThread)
	end = min(rows, (thread+1)*rowsPerThread)
	return start, end
}

// SpMVReferenceString produces thread's reference string for y += A*x: a
// leading row_ptr[start_row] read, then per row a row_ptr[i+1] read
// followed by (col_index[k], value[k], x[col_index[k]]) per nonzero, then
// a y[i] write.
func (m *Matrix) SpMVReferenceString(
	x, y refstring.ArrayHandle,
	thread, numThreads int,
	numaDomains []int,
) (refstring.String, error) {
	if _, err := matrixerr.CheckedMul("csr", "rows*numThreads", uint64(m.Rows), uint64(numThreads)); err != nil {
		return nil, err
	}

	start, end := ThreadRowRange(m.Rows, thread, numThreads)
	startNZ, endNZ := int(m.RowPtr[start]), int(m.RowPtr[end])
	localNNZ := endNZ - startNZ
	localRows := end - start

	w := make(refstring.String, 0, 1+3*localNNZ+2*localRows)
	threadDomain := numaDomains[thread]

	w = append(w, refstring.Ref{Addr: m.rowPtrArr.Addr(start), NUMA: threadDomain})
	for i := start; i < end; i++ {
		w = append(w, refstring.Ref{Addr: m.rowPtrArr.Addr(i + 1), NUMA: threadDomain})
		for k := int(m.RowPtr[i]); k < int(m.RowPtr[i+1]); k++ {
			j := int(m.ColumnIndex[k])
			w = append(w,
				refstring.Ref{Addr: m.colIndexArr.Addr(k), NUMA: threadDomain},
				refstring.Ref{Addr: m.valueArr.Addr(k), NUMA: threadDomain},
				refstring.Ref{
					Addr: x.Addr(j),
					NUMA: numaDomains[numa.ThreadOfIndex(uint64(j), uint64(m.Columns), uint64(numThreads))],
				},
			)
		}
		w = append(w, refstring.Ref{
			Addr: y.Addr(i),
			NUMA: numaDomains[numa.ThreadOfIndex(uint64(i), uint64(m.Rows), uint64(numThreads))],
		})
	}
	return w, nil
}

// SourceVectorOnlyReferenceString is the source_vector_only format (see
// SPEC_FULL.md): it isolates the x-read traffic by omitting row_ptr and
// value[k] reads and y[i] writes, reusing CSR's row partitioning and
// column-index traffic.
func (m *Matrix) SourceVectorOnlyReferenceString(
	x refstring.ArrayHandle,
	thread, numThreads int,
	numaDomains []int,
) (refstring.String, error) {
	if _, err := matrixerr.CheckedMul("csr", "rows*numThreads", uint64(m.Rows), uint64(numThreads)); err != nil {
		return nil, err
	}

	start, end := ThreadRowRange(m.Rows, thread, numThreads)
	threadDomain := numaDomains[thread]

	var w refstring.String
	for i := start; i < end; i++ {
		for k := int(m.RowPtr[i]); k < int(m.RowPtr[i+1]); k++ {
			j := int(m.ColumnIndex[k])
			w = append(w,
				refstring.Ref{Addr: m.colIndexArr.Addr(k), NUMA: threadDomain},
				refstring.Ref{
					Addr: x.Addr(j),
					NUMA: numaDomains[numa.ThreadOfIndex(uint64(j), uint64(m.Columns), uint64(numThreads))],
				},
			)
		}
	}
	return w, nil
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
