// Package hybrid implements the HYBRID (ELLPACK+COO) sparse matrix layout
// and its SpMV memory-reference-string generator.
package hybrid

import (
	"sort"

	"github.com/sarchlab/spmv-cache-trace/matrix/matrixerr"
	"github.com/sarchlab/spmv-cache-trace/matrix/mtx"
	"github.com/sarchlab/spmv-cache-trace/numa"
	"github.com/sarchlab/spmv-cache-trace/refstring"
)

// Matrix is a HYBRID matrix: a fixed-row-length ELLPACK block holding each
// row's first EllpackRowLength entries, with any overflow stored as a COO
// tail.
type Matrix struct {
	Rows, Columns, NumEntries int

	EllpackRowLength  int
	NumEllpackEntries int
	EllpackColumn     []int32
	EllpackValue      []float64
	EllpackSkipPad    bool

	NumCOOEntries int
	COORowIndex   []int32
	COOColumnIdx  []int32
	COOValue      []float64

	ellpackColArr refstring.ArrayHandle
	ellpackValArr refstring.ArrayHandle
	cooRowArr     refstring.ArrayHandle
	cooColArr     refstring.ArrayHandle
	cooValArr     refstring.ArrayHandle
}

// ellpackRowLength picks the smallest row length R such that at least 2/3
// of rows have length <= R, following original_source's histogram walk.
func ellpackRowLength(rowLengths []int, rows int) int {
	maxLen := 0
	for _, l := range rowLengths {
		if l > maxLen {
			maxLen = l
		}
	}
	countAtLength := make([]int, maxLen+1)
	for _, l := range rowLengths {
		countAtLength[l]++
	}

	threshold := (2 * rows) / 3
	cumulative := 0
	candidate := 0
	for cumulative < threshold {
		cumulative += countAtLength[candidate]
		candidate++
	}
	if candidate == 0 {
		return 0
	}
	return candidate - 1
}

// FromMTX converts m to HYBRID format, storing each row's first R entries
// in the ELLPACK block (R chosen by ellpackRowLength) and any remainder in
// the COO tail.
func FromMTX(m *mtx.Matrix, skipPadding bool, addrs *refstring.AddressSpace) (*Matrix, error) {
	rowLengths := make([]int, m.Rows)
	for _, e := range m.Entries {
		rowLengths[e.I-1]++
	}
	r := ellpackRowLength(rowLengths, m.Rows)

	numEllpack, err := matrixerr.CheckedMul("hybrid", "rows*ellpackRowLength", uint64(m.Rows), uint64(r))
	if err != nil {
		return nil, err
	}

	numCOO := 0
	for _, l := range rowLengths {
		if l > r {
			numCOO += l - r
		}
	}

	entries := append([]mtx.Entry(nil), m.Entries...)
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].I != entries[b].I {
			return entries[a].I < entries[b].I
		}
		return entries[a].J < entries[b].J
	})

	ellpackCol := make([]int32, numEllpack)
	ellpackVal := make([]float64, numEllpack)
	cooRow := make([]int32, numCOO)
	cooCol := make([]int32, numCOO)
	cooVal := make([]float64, numCOO)

	k, el, co := 0, 0, 0
	for row := 0; row < m.Rows; row++ {
		rowLen := rowLengths[row]
		if rowLen < r {
			for j := 0; j < rowLen; j++ {
				ellpackCol[el] = int32(entries[k].J - 1)
				ellpackVal[el] = entries[k].A
				el++
				k++
			}
			lastCol := int32(0)
			if el > 0 {
				lastCol = ellpackCol[el-1]
			}
			for j := rowLen; j < r; j++ {
				if skipPadding {
					ellpackCol[el] = PaddingSentinel
				} else {
					ellpackCol[el] = lastCol
				}
				ellpackVal[el] = 0
				el++
			}
		} else {
			for j := 0; j < r; j++ {
				ellpackCol[el] = int32(entries[k].J - 1)
				ellpackVal[el] = entries[k].A
				el++
				k++
			}
			for j := r; j < rowLen; j++ {
				cooRow[co] = int32(row)
				cooCol[co] = int32(entries[k].J - 1)
				cooVal[co] = entries[k].A
				co++
				k++
			}
		}
	}

	return &Matrix{
		Rows: m.Rows, Columns: m.Columns, NumEntries: m.NumEntries,
		EllpackRowLength: r, NumEllpackEntries: int(numEllpack),
		EllpackColumn: ellpackCol, EllpackValue: ellpackVal, EllpackSkipPad: skipPadding,
		NumCOOEntries: numCOO,
		COORowIndex:   cooRow, COOColumnIdx: cooCol, COOValue: cooVal,
		ellpackColArr: addrs.Alloc(int(numEllpack), 4),
		ellpackValArr: addrs.Alloc(int(numEllpack), 8),
		cooRowArr:     addrs.Alloc(numCOO, 4),
		cooColArr:     addrs.Alloc(numCOO, 4),
		cooValArr:     addrs.Alloc(numCOO, 8),
	}, nil
}

// PaddingSentinel marks an ELLPACK padding slot's column index when
// SkipPadding is set.
const PaddingSentinel = 1<<31 - 1

// ThreadRowRange returns the [start, end) row range thread handles out of
// numThreads for the ELLPACK block, the same row partitioning CSR uses.
func ThreadRowRange(rows, thread, numThreads int) (start, end int) {
	rowsPerThread := ceilDiv(rows, numThreads)
	start = min(rows, thread*rowsPerThread)
	end = min(rows, (thread+1)*rowsPerThread)
	return start, end
}

// SpMVReferenceString produces thread's reference string for y += A*x: the
// ELLPACK reference string for thread's row range, followed by the COO
// reference string for the COO tail entries belonging to thread's rows,
// using the shared x, y operand handles.
func (m *Matrix) SpMVReferenceString(
	x, y refstring.ArrayHandle,
	thread, numThreads int,
	numaDomains []int,
) (refstring.String, error) {
	if _, err := matrixerr.CheckedMul("hybrid", "rows*numThreads", uint64(m.Rows), uint64(numThreads)); err != nil {
		return nil, err
	}

	start, end := ThreadRowRange(m.Rows, thread, numThreads)
	threadDomain := numaDomains[thread]

	w := make(refstring.String, 0, (end-start)*(3*m.EllpackRowLength+1))
	for i := start; i < end; i++ {
		for l := 0; l < m.EllpackRowLength; l++ {
			k := i*m.EllpackRowLength + l
			j := int(m.EllpackColumn[k])
			w = append(w,
				refstring.Ref{Addr: m.ellpackColArr.Addr(k), NUMA: threadDomain},
				refstring.Ref{Addr: m.ellpackValArr.Addr(k), NUMA: threadDomain},
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

	for k := 0; k < m.NumCOOEntries; k++ {
		i := int(m.COORowIndex[k])
		if i < start || i >= end {
			continue
		}
		j := int(m.COOColumnIdx[k])
		w = append(w,
			refstring.Ref{Addr: m.cooRowArr.Addr(k), NUMA: threadDomain},
			refstring.Ref{Addr: m.cooColArr.Addr(k), NUMA: threadDomain},
			refstring.Ref{Addr: m.cooValArr.Addr(k), NUMA: threadDomain},
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

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
