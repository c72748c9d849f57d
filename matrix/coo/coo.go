// Package coo implements the coordinate (COO) sparse matrix layout and its
// SpMV memory-reference-string generator.
package coo

import (
	"github.com/sarchlab/spmv-cache-trace/matrix/matrixerr"
	"github.com/sarchlab/spmv-cache-trace/matrix/mtx"
	"github.com/sarchlab/spmv-cache-trace/numa"
	"github.com/sarchlab/spmv-cache-trace/refstring"
)

// Matrix is a coordinate-format sparse matrix: parallel row/column/value
// arrays, one entry per nonzero, in no particular order.
type Matrix struct {
	Rows, Columns, NumEntries int
	RowIndex, ColumnIndex     []int32
	Value                     []float64

	rowIndexArr refstring.ArrayHandle
	colIndexArr refstring.ArrayHandle
	valueArr    refstring.ArrayHandle
}

// FromMTX builds a COO matrix from a parsed Matrix Market file, converting
// 1-based indices to 0-based and assigning synthetic addresses for the
// three backing arrays from addrs.
func FromMTX(m *mtx.Matrix, addrs *refstring.AddressSpace) *Matrix {
	rowIndex := make([]int32, m.NumEntries)
	colIndex := make([]int32, m.NumEntries)
	value := make([]float64, m.NumEntries)
	for k, e := range m.Entries {
		rowIndex[k] = int32(e.I - 1)
		colIndex[k] = int32(e.J - 1)
		value[k] = e.A
	}

	return &Matrix{
		Rows: m.Rows, Columns: m.Columns, NumEntries: m.NumEntries,
		RowIndex: rowIndex, ColumnIndex: colIndex, Value: value,
		rowIndexArr: addrs.Alloc(m.NumEntries, 4),
		colIndexArr: addrs.Alloc(m.NumEntries, 4),
		valueArr:    addrs.Alloc(m.NumEntries, 8),
	}
}

// ThreadEntryRange returns the [start, end) range of entry indices thread
// handles out of numThreads threads under COO's entries-divided-evenly
// work split.
func ThreadEntryRange(numEntries, thread, numThreads int) (start, end int) {
	entriesPerThread := ceilDiv(numEntries, numThreads)
	start = min(numEntries, thread*entriesPerThread)
	end = min(numEntries, (thread+1)*entriesPerThread)
	return start, end
}

// SpMVReferenceString produces thread's memory reference string for
// y += A*x against this matrix, where x has the matrix's column count and
// y has the matrix's row count. numaDomains[t] is the NUMA domain thread t is bound
// to; numThreads is the configured total thread count used for the
// partitioning math, which may exceed the number of threads actually
// driving this cache — inactive threads still count in the denominator,
// so the partitioning a cache sees matches the full-config partitioning.
func (m *Matrix) SpMVReferenceString(
	x, y refstring.ArrayHandle,
	thread, numThreads int,
	numaDomains []int,
) (refstring.String, error) {
	if _, err := matrixerr.CheckedMul("coo", "rows*numThreads", uint64(m.Rows), uint64(numThreads)); err != nil {
		return nil, err
	}
	if _, err := matrixerr.CheckedMul("coo", "columns*numThreads", uint64(m.Columns), uint64(numThreads)); err != nil {
		return nil, err
	}

	start, end := ThreadEntryRange(m.NumEntries, thread, numThreads)
	w := make(refstring.String, 0, 5*(end-start))
	threadDomain := numaDomains[thread]

	for k := start; k < end; k++ {
		i := int(m.RowIndex[k])
		j := int(m.ColumnIndex[k])

		w = append(w,
			refstring.Ref{Addr: m.rowIndexArr.Addr(k), NUMA: threadDomain},
			refstring.Ref{Addr: m.colIndexArr.Addr(k), NUMA: threadDomain},
			refstring.Ref{Addr: m.valueArr.Addr(k), NUMA: threadDomain},
			refstring.Ref{
				Addr: x.Addr(j),
				NUMA: numaDomains[numa.ThreadOfIndex(uint64(j), uint64(m.Columns), uint64(numThreads))],
			},
			refstring.Ref{
				Addr: y.Addr(i),
				NUMA: numaDomains[numa.ThreadOfIndex(uint64(i), uint64(m.Rows), uint64(numThreads))],
			},
		)
	}
	return w, nil
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
