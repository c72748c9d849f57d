package numa_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/spmv-cache-trace/numa"
)

var _ = Describe("ThreadOfIndex", func() {
	It("splits indices into contiguous, equal-sized ranges per thread", func() {
		// N=10, P=3 -> 4 per thread: [0,4) [4,8) [8,10)
		for j := uint64(0); j < 4; j++ {
			Expect(numa.ThreadOfIndex(j, 10, 3)).To(Equal(uint64(0)))
		}
		for j := uint64(4); j < 8; j++ {
			Expect(numa.ThreadOfIndex(j, 10, 3)).To(Equal(uint64(1)))
		}
		for j := uint64(8); j < 10; j++ {
			Expect(numa.ThreadOfIndex(j, 10, 3)).To(Equal(uint64(2)))
		}
	})

	It("assigns every element to exactly one of the P threads", func() {
		n, p := uint64(37), uint64(5)
		counts := make(map[uint64]int)
		for j := uint64(0); j < n; j++ {
			counts[numa.ThreadOfIndex(j, n, p)]++
		}
		total := 0
		for thread, c := range counts {
			Expect(thread).To(BeNumerically("<", p))
			total += c
		}
		Expect(total).To(Equal(int(n)))
	})

	It("handles the single-thread case by owning everything", func() {
		for j := uint64(0); j < 5; j++ {
			Expect(numa.ThreadOfIndex(j, 5, 1)).To(Equal(uint64(0)))
		}
	})
})

var _ = Describe("page accounting", func() {
	It("computes elements per page as an integer division", func() {
		Expect(numa.ElemsPerPage(4096, 8)).To(Equal(uint64(512)))
	})

	It("rounds the page count up", func() {
		Expect(numa.NumPages(513, 8, 4096)).To(Equal(uint64(2)))
		Expect(numa.NumPages(512, 8, 4096)).To(Equal(uint64(1)))
	})

	It("rounds pages-per-thread up", func() {
		Expect(numa.PagesPerThread(10, 3)).To(Equal(uint64(4)))
	})
})
