package traceconfig_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/spmv-cache-trace/traceconfig"
)

const sampleJSON = `{
  "name": "two-level",
  "description": "L1 per-core, shared L2",
  "caches": {
    "L1-0": {"size": 32768, "line_size": 64, "parent": ["L2"]},
    "L1-1": {"size": 32768, "line_size": 64, "parent": ["L2"]},
    "L2": {"size": 262144, "line_size": 64, "parent": []}
  },
  "numa_domains": ["node0", "node1"],
  "thread_affinities": [
    {"thread": 0, "cpu": 0, "cache": "L1-0", "numa_domain": "node0", "event_groups": []},
    {"thread": 1, "cpu": 1, "cache": "L1-1", "numa_domain": "node1", "event_groups": []}
  ]
}`

func writeConfig(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	return path
}

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("parses a well-formed config", func() {
		cfg, err := traceconfig.Load(writeConfig(dir, "cfg.json", sampleJSON))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Name).To(Equal("two-level"))
		Expect(cfg.Caches).To(HaveLen(3))
		Expect(cfg.NUMADomains).To(Equal([]string{"node0", "node1"}))
		Expect(cfg.ThreadAffinities).To(HaveLen(2))
	})

	It("rejects a cache whose size isn't a multiple of its line size", func() {
		bad := `{"name":"x","description":"","caches":{"L1":{"size":100,"line_size":64,"parent":[]}},"numa_domains":[],"thread_affinities":[]}`
		_, err := traceconfig.Load(writeConfig(dir, "bad.json", bad))
		Expect(err).To(HaveOccurred())
		var cfgErr *traceconfig.ConfigError
		Expect(err).To(BeAssignableToTypeOf(cfgErr))
	})

	It("rejects an unknown parent cache name", func() {
		bad := `{"name":"x","description":"","caches":{"L1":{"size":64,"line_size":64,"parent":["L2"]}},"numa_domains":[],"thread_affinities":[]}`
		_, err := traceconfig.Load(writeConfig(dir, "bad.json", bad))
		Expect(err).To(HaveOccurred())
	})

	It("rejects a thread affinity referencing an unknown cache", func() {
		bad := `{"name":"x","description":"","caches":{},"numa_domains":["n0"],"thread_affinities":[{"thread":0,"cpu":0,"cache":"nope","numa_domain":"n0"}]}`
		_, err := traceconfig.Load(writeConfig(dir, "bad.json", bad))
		Expect(err).To(HaveOccurred())
	})

	It("rejects a thread affinity referencing an unknown numa domain", func() {
		bad := `{"name":"x","description":"","caches":{"L1":{"size":64,"line_size":64,"parent":[]}},"numa_domains":["n0"],"thread_affinities":[{"thread":0,"cpu":0,"cache":"L1","numa_domain":"nope"}]}`
		_, err := traceconfig.Load(writeConfig(dir, "bad.json", bad))
		Expect(err).To(HaveOccurred())
	})

	It("rejects malformed JSON", func() {
		_, err := traceconfig.Load(writeConfig(dir, "bad.json", "not json"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("LoadYAML", func() {
	It("parses the same schema via YAML", func() {
		dir := GinkgoT().TempDir()
		yamlText := "name: y\ndescription: d\ncaches:\n  L1:\n    size: 64\n    line_size: 64\n    parent: []\nnuma_domains: [n0]\nthread_affinities:\n  - thread: 0\n    cpu: 0\n    cache: L1\n    numa_domain: n0\n"
		cfg, err := traceconfig.LoadYAML(writeConfig(dir, "cfg.yaml", yamlText))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Name).To(Equal("y"))
	})
})

var _ = Describe("CacheHasAncestor and ActiveThreads", func() {
	var cfg *traceconfig.TraceConfig

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		var err error
		cfg, err = traceconfig.Load(writeConfig(dir, "cfg.json", sampleJSON))
		Expect(err).NotTo(HaveOccurred())
	})

	It("is reflexive", func() {
		l2 := cfg.Caches["L2"]
		Expect(cfg.CacheHasAncestor(l2, l2)).To(BeTrue())
	})

	It("follows the parent chain transitively", func() {
		l1 := cfg.Caches["L1-0"]
		l2 := cfg.Caches["L2"]
		Expect(cfg.CacheHasAncestor(l1, l2)).To(BeTrue())
		Expect(cfg.CacheHasAncestor(l2, l1)).To(BeFalse())
	})

	It("returns every thread for the shared L2 cache", func() {
		l2 := cfg.Caches["L2"]
		Expect(cfg.ActiveThreads(l2)).To(Equal([]int{0, 1}))
	})

	It("returns only the owning thread for a private L1 cache", func() {
		l1 := cfg.Caches["L1-0"]
		Expect(cfg.ActiveThreads(l1)).To(Equal([]int{0}))
	})
})
