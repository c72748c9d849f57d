package cachetrace_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/spmv-cache-trace/cachetrace"
	"github.com/sarchlab/spmv-cache-trace/kernel"
	"github.com/sarchlab/spmv-cache-trace/matrix/coo"
	"github.com/sarchlab/spmv-cache-trace/matrix/mtx"
	"github.com/sarchlab/spmv-cache-trace/refstring"
	"github.com/sarchlab/spmv-cache-trace/traceconfig"
)

const twoLevelConfig = `{
  "name": "two-level", "description": "L1 per-core, shared L2",
  "caches": {
    "L1-0": {"size": 256, "line_size": 8, "parent": ["L2"]},
    "L1-1": {"size": 256, "line_size": 8, "parent": ["L2"]},
    "L2": {"size": 1024, "line_size": 8, "parent": []}
  },
  "numa_domains": ["node0", "node1"],
  "thread_affinities": [
    {"thread": 0, "cpu": 0, "cache": "L1-0", "numa_domain": "node0"},
    {"thread": 1, "cpu": 1, "cache": "L1-1", "numa_domain": "node1"}
  ]
}`

func loadConfig(content string) *traceconfig.TraceConfig {
	dir := GinkgoT().TempDir()
	path := filepath.Join(dir, "cfg.json")
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	cfg, err := traceconfig.Load(path)
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

func smallCOOKernel() kernel.Kernel {
	addrs := refstring.NewAddressSpace()
	m := coo.FromMTX(&mtx.Matrix{
		Rows: 4, Columns: 4, NumEntries: 6,
		Entries: []mtx.Entry{
			{I: 1, J: 1, A: 1}, {I: 1, J: 2, A: 1},
			{I: 2, J: 2, A: 1}, {I: 3, J: 3, A: 1},
			{I: 4, J: 1, A: 1}, {I: 4, J: 4, A: 1},
		},
	}, addrs)
	return &kernel.COOKernel{Matrix: m, X: addrs.Alloc(4, 8), Y: addrs.Alloc(4, 8)}
}

var _ = Describe("Trace", func() {
	It("produces a full-size matrix per cache, with zeros for inactive threads", func() {
		cfg := loadConfig(twoLevelConfig)
		report, err := cachetrace.Trace(cfg, smallCOOKernel())
		Expect(err).NotTo(HaveOccurred())

		Expect(report.CacheMisses).To(HaveKey("L1-0"))
		Expect(report.CacheMisses).To(HaveKey("L1-1"))
		Expect(report.CacheMisses).To(HaveKey("L2"))

		for _, matrix := range report.CacheMisses {
			Expect(matrix).To(HaveLen(2)) // num_threads
			for _, row := range matrix {
				Expect(row).To(HaveLen(2)) // num_numa_domains
			}
		}

		// thread 1 is not active for L1-0, so its row must be all zero.
		Expect(report.CacheMisses["L1-0"][1]).To(Equal([]uint64{0, 0}))
		Expect(report.CacheMisses["L1-1"][0]).To(Equal([]uint64{0, 0}))
	})

	It("includes the kernel description", func() {
		cfg := loadConfig(twoLevelConfig)
		report, err := cachetrace.Trace(cfg, smallCOOKernel())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Kernel.Format).To(Equal("coo"))
		Expect(report.Kernel.Rows).To(Equal(4))
	})

	It("scatters shared-cache misses across all active threads", func() {
		cfg := loadConfig(twoLevelConfig)
		report, err := cachetrace.Trace(cfg, smallCOOKernel())
		Expect(err).NotTo(HaveOccurred())

		l2 := report.CacheMisses["L2"]
		total := uint64(0)
		for _, row := range l2 {
			rowTotal := uint64(0)
			for _, v := range row {
				rowTotal += v
				total += v
			}
			Expect(rowTotal).To(BeNumerically(">", 0))
		}
		Expect(total).To(BeNumerically(">", 0))
	})
})
