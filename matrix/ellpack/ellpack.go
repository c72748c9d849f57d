// Package ellpack implements the ELLPACK sparse matrix layout and its SpMV
// memory-reference-string generator.
package ellpack

import (
	"math"
	"sort"

	"github.com/sarchlab/spmv-cache-trace/matrix/matrixerr"
	"github.com/sarchlab/spmv-cache-trace/matrix/mtx"
	"github.com/sarchlab/spmv-cache-trace/numa"
	"github.com/sarchlab/spmv-cache-trace/refstring"
)

// PaddingSentinel marks a padding slot's column index when SkipPadding is
// set, mirroring the original's std::numeric_limits<index_type>::max().
const PaddingSentinel = math.MaxInt32

// Matrix is an ELLPACK-format sparse matrix: every row occupies exactly
// RowLength slots, padded with either a sentinel column or the row's last
// valid column (see SkipPadding).
type Matrix struct {
	Rows, Columns, NumEntries int
	RowLength                 int
	ColumnIndex               []int32
	Value                     []float64
	SkipPadding               bool

	colIndexArr refstring.ArrayHandle
	valueArr    refstring.ArrayHandle
}

// MaxRowLength returns the length of the longest row among m's entries.
func MaxRowLength(m *mtx.Matrix) int {
	counts := make([]int, m.Rows)
	for _, e := range m.Entries {
		counts[e.I-1]++
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return max
}

// FromMTX converts m to ELLPACK, padding every row out to the longest row's
// length. With skipPadding, padding slots carry PaddingSentinel so a real
// kernel could branch out of its inner loop on the sentinel; otherwise they
// repeat the row's last valid column with value 0, following
// original_source's from_matrix_market.
func FromMTX(m *mtx.Matrix, skipPadding bool, addrs *refstring.AddressSpace) (*Matrix, error) {
	rowLength := MaxRowLength(m)
	total, err := matrixerr.CheckedMul("ellpack", "rows*rowLength", uint64(m.Rows), uint64(rowLength))
	if err != nil {
		return nil, err
	}

	entries := append([]mtx.Entry(nil), m.Entries...)
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].I != entries[b].I {
			return entries[a].I < entries[b].I
		}
		return entries[a].J < entries[b].J
	})

	colIndex := make([]int32, total)
	value := make([]float64, total)
	k, l := 0, 0
	for r := 0; r < m.Rows; r++ {
		rowStart := l
		for k < len(entries) && entries[k].I-1 == r {
			colIndex[l] = int32(entries[k].J - 1)
			value[l] = entries[k].A
			k++
			l++
		}
		lastCol := int32(0)
		if l > rowStart {
			lastCol = colIndex[l-1]
		}
		for l < (r+1)*rowLength {
			if skipPadding {
				colIndex[l] = PaddingSentinel
			} else {
				colIndex[l] = lastCol
			}
			value[l] = 0
			l++
		}
	}

	return &Matrix{
		Rows: m.Rows, Columns: m.Columns, NumEntries: m.NumEntries,
		RowLength: rowLength, ColumnIndex: colIndex, Value: value,
		SkipPadding: skipPadding,
		colIndexArr: addrs.Alloc(int(total), 4),
		valueArr:    addrs.Alloc(int(total), 8),
	}, nil
}

// ThreadRowRange returns the [start, end) row range thread handles out of
// numThreads, splitting rows evenly the same way CSR does.
func ThreadRowRange(rows, thread, numThreads int) (start, end int) {
	rowsPerThread := ceilDiv(rows, numThreads)
	start = min(rows, thread*rowsPerThread)
	end = min(rows, (thread+1)*rowsPerThread)
	return start, end
}

// SpMVReferenceString produces thread's reference string for y += A*x: for
// each row i in range and each l in [0, RowLength), with k = i*RowLength+l,
// emit col_idx[k], value[k], x[col_idx[k]]; after the row, emit y[i].
// Padding slots are still emitted, matching the real kernel the simulator
// never executes.
func (m *Matrix) SpMVReferenceString(
	x, y refstring.ArrayHandle,
	thread, numThreads int,
	numaDomains []int,
) (refstring.String, error) {
	if _, err := matrixerr.CheckedMul("ellpack", "rows*numThreads", uint64(m.Rows), uint64(numThreads)); err != nil {
		return nil, err
	}

	start, end := ThreadRowRange(m.Rows, thread, numThreads)
	w := make(refstring.String, 0, (end-start)*(3*m.RowLength+1))
	threadDomain := numaDomains[thread]

	for i := start; i < end; i++ {
		for l := 0; l < m.RowLength; l++ {
			k := i*m.RowLength + l
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
