package kernel_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/spmv-cache-trace/kernel"
	"github.com/sarchlab/spmv-cache-trace/matrix/coo"
	"github.com/sarchlab/spmv-cache-trace/matrix/mtx"
	"github.com/sarchlab/spmv-cache-trace/refstring"
	"github.com/sarchlab/spmv-cache-trace/traceconfig"
)

const oneThreadOneDomainConfig = `{
  "name": "t", "description": "",
  "caches": {"L1": {"size": 64, "line_size": 64, "parent": []}},
  "numa_domains": ["node0"],
  "thread_affinities": [{"thread": 0, "cpu": 0, "cache": "L1", "numa_domain": "node0"}]
}`

func loadConfig(content string) *traceconfig.TraceConfig {
	dir := GinkgoT().TempDir()
	path := filepath.Join(dir, "cfg.json")
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	cfg, err := traceconfig.Load(path)
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

var _ = Describe("COOKernel", func() {
	It("describes itself and produces a reference string", func() {
		addrs := refstring.NewAddressSpace()
		m := coo.FromMTX(&mtx.Matrix{
			Rows: 2, Columns: 2, NumEntries: 2,
			Entries: []mtx.Entry{{I: 1, J: 1, A: 1}, {I: 2, J: 2, A: 1}},
		}, addrs)
		k := &kernel.COOKernel{Matrix: m, X: addrs.Alloc(2, 8), Y: addrs.Alloc(2, 8)}

		d := k.Describe()
		Expect(d.Format).To(Equal("coo"))
		Expect(d.Rows).To(Equal(2))

		cfg := loadConfig(oneThreadOneDomainConfig)
		w, err := k.ReferenceString(cfg, 0, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(HaveLen(5 * 2))
	})
})
