// Command spmv-cache-trace estimates cache miss counts for an SpMV kernel
// run against a given sparse matrix and cache hierarchy, without executing
// the kernel itself.
package main

import (
	"encoding/json"
	goflag "flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/sarchlab/spmv-cache-trace/cachetrace"
	"github.com/sarchlab/spmv-cache-trace/kernel"
	"github.com/sarchlab/spmv-cache-trace/matrix/coo"
	"github.com/sarchlab/spmv-cache-trace/matrix/csr"
	"github.com/sarchlab/spmv-cache-trace/matrix/ellpack"
	"github.com/sarchlab/spmv-cache-trace/matrix/hybrid"
	"github.com/sarchlab/spmv-cache-trace/matrix/mtx"
	"github.com/sarchlab/spmv-cache-trace/refstring"
	"github.com/sarchlab/spmv-cache-trace/traceconfig"
)

var knownMatrixFormats = []string{
	"coo", "csr", "csr_unroll2", "csr_unroll4", "csr_unroll2_avx128", "csr_unroll2_avx256",
	"csr_unroll4_avx128", "csr_unroll4_avx256", "csr_regular_traffic", "csr_irregular_traffic",
	"ellpack", "source_vector_only", "hybrid",
}

func main() {
	defer glog.Flush()

	var (
		matrixPath   string
		matrixFormat string
		traceConfig  string
		listFormats  bool
		verbose      bool
	)

	root := &cobra.Command{
		Use:   "spmv-cache-trace",
		Short: "Estimate cache miss counts for an SpMV kernel's memory access pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listFormats {
				for _, f := range knownMatrixFormats {
					fmt.Println(f)
				}
				return nil
			}
			if verbose {
				_ = goflag.Set("logtostderr", "true")
			}
			return run(matrixPath, matrixFormat, traceConfig)
		},
	}

	flags := root.Flags()
	flags.StringVar(&matrixPath, "matrix", "", "path to a Matrix Market file (optionally gzip'd tar)")
	flags.StringVar(&matrixFormat, "matrix-format", "csr", "matrix format: "+fmt.Sprint(knownMatrixFormats))
	flags.StringVar(&traceConfig, "trace-config", "", "path to a trace-config JSON or YAML file")
	flags.BoolVar(&listFormats, "list-matrix-formats", false, "print the recognized matrix formats and exit")
	flags.BoolVar(&verbose, "verbose", false, "enable verbose logging")

	if err := root.Execute(); err != nil {
		glog.Errorf("spmv-cache-trace: %v", err)
		os.Exit(1)
	}
}

func run(matrixPath, matrixFormat, traceConfigPath string) error {
	if matrixPath == "" {
		return fmt.Errorf("--matrix is required")
	}
	if traceConfigPath == "" {
		return fmt.Errorf("--trace-config is required")
	}

	m, err := mtx.Read(matrixPath)
	if err != nil {
		return err
	}

	cfg, err := traceconfig.Load(traceConfigPath)
	if err != nil {
		return err
	}

	k, err := buildKernel(m, matrixFormat)
	if err != nil {
		return err
	}

	report, err := cachetrace.Trace(cfg, k)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// buildKernel converts the parsed matrix to the requested format and binds
// it into a kernel.Kernel with freshly allocated x and y operand arrays.
// The variant tags in the format list (csr_unroll2, csr_regular_traffic,
// ...) only affect the out-of-scope execution path, so they map onto plain
// CSR here.
func buildKernel(m *mtx.Matrix, format string) (kernel.Kernel, error) {
	addrs := refstring.NewAddressSpace()

	switch format {
	case "coo":
		a := coo.FromMTX(m, addrs)
		return &kernel.COOKernel{Matrix: a, X: addrs.Alloc(m.Columns, 8), Y: addrs.Alloc(m.Rows, 8)}, nil
	case "csr", "csr_unroll2", "csr_unroll4", "csr_unroll2_avx128", "csr_unroll2_avx256",
		"csr_unroll4_avx128", "csr_unroll4_avx256", "csr_regular_traffic", "csr_irregular_traffic":
		a := csr.FromMTX(m, addrs)
		return &kernel.CSRKernel{Matrix: a, X: addrs.Alloc(m.Columns, 8), Y: addrs.Alloc(m.Rows, 8)}, nil
	case "source_vector_only":
		a := csr.FromMTX(m, addrs)
		return &kernel.SourceVectorOnlyKernel{Matrix: a, X: addrs.Alloc(m.Columns, 8)}, nil
	case "ellpack":
		a, err := ellpack.FromMTX(m, false, addrs)
		if err != nil {
			return nil, err
		}
		return &kernel.EllpackKernel{Matrix: a, X: addrs.Alloc(m.Columns, 8), Y: addrs.Alloc(m.Rows, 8)}, nil
	case "hybrid":
		a, err := hybrid.FromMTX(m, false, addrs)
		if err != nil {
			return nil, err
		}
		return &kernel.HybridKernel{Matrix: a, X: addrs.Alloc(m.Columns, 8), Y: addrs.Alloc(m.Rows, 8)}, nil
	default:
		return nil, fmt.Errorf("unrecognized matrix format %q", format)
	}
}
