// Package mtx reads Matrix Market (coordinate, real, general) files into
// (rows, columns, entries, [(i,j,a)]). A file may optionally be wrapped in
// a gzip'd tar archive containing a single .mtx file under a directory
// whose name matches the archive's stem.
package mtx

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Entry is one coordinate-format nonzero, with 1-based indices as they
// appear on the wire.
type Entry struct {
	I, J int
	A    float64
}

// Matrix is the parsed, logical content of a Matrix Market file.
type Matrix struct {
	Rows, Columns, NumEntries int
	Entries                   []Entry
}

// Read parses path, transparently unwrapping a gzip'd tar archive if path
// ends in .tar.gz or .tgz.
func Read(path string) (*Matrix, error) {
	glog.Infof("mtx: reading %s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if isGzipTar(path) {
		r, err = openGzipTarMember(path, f)
		if err != nil {
			return nil, err
		}
	}

	m, err := parse(bufio.NewScanner(r))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func isGzipTar(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// openGzipTarMember finds the single .mtx file inside a gzip'd tar archive,
// under a top-level directory named after the archive's stem, and returns a
// reader over its contents.
func openGzipTarMember(path string, f *os.File) (io.Reader, error) {
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	stem := archiveStem(path)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%s: no .mtx file found under %s/", path, stem)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if strings.HasSuffix(hdr.Name, ".mtx") && strings.HasPrefix(hdr.Name, stem+"/") {
			buf, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", path, hdr.Name, err)
			}
			return strings.NewReader(string(buf)), nil
		}
	}
}

func archiveStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".tgz")
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, ".tar")
}

// parseError reports a parse failure with file:line:column so a malformed
// input fails fast with a precise location.
type parseError struct {
	line, column int
	message      string
}

func (e *parseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.line, e.column, e.message)
}

func parse(scanner *bufio.Scanner) (*Matrix, error) {
	line := 0
	nextLine := func() (string, bool) {
		for scanner.Scan() {
			line++
			text := scanner.Text()
			trimmed := strings.TrimSpace(text)
			if trimmed == "" || (strings.HasPrefix(trimmed, "%") && !strings.HasPrefix(trimmed, "%%MatrixMarket")) {
				continue
			}
			return trimmed, true
		}
		return "", false
	}

	header, ok := nextLine()
	if !ok {
		return nil, &parseError{line, 1, "empty input, expected MatrixMarket header"}
	}
	fields := strings.Fields(header)
	if len(fields) != 5 || fields[0] != "%%MatrixMarket" || fields[1] != "matrix" {
		return nil, &parseError{line, 1, "expected \"%%MatrixMarket matrix coordinate real <symmetry>\""}
	}
	if fields[2] != "coordinate" || fields[3] != "real" {
		return nil, &parseError{line, 1, "only coordinate/real matrices are supported"}
	}

	sizeLine, ok := nextLine()
	if !ok {
		return nil, &parseError{line, 1, "expected \"rows columns entries\" line"}
	}
	sizeFields := strings.Fields(sizeLine)
	if len(sizeFields) != 3 {
		return nil, &parseError{line, 1, "expected exactly 3 fields: rows columns entries"}
	}
	rows, err1 := strconv.Atoi(sizeFields[0])
	cols, err2 := strconv.Atoi(sizeFields[1])
	nnz, err3 := strconv.Atoi(sizeFields[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, &parseError{line, 1, "rows, columns, and entries must be integers"}
	}

	entries := make([]Entry, 0, nnz)
	for k := 0; k < nnz; k++ {
		entryLine, ok := nextLine()
		if !ok {
			return nil, &parseError{line, 1, fmt.Sprintf("expected %d entries, found %d", nnz, k)}
		}
		ef := strings.Fields(entryLine)
		if len(ef) != 3 {
			return nil, &parseError{line, 1, "expected \"i j a\""}
		}
		i, erri := strconv.Atoi(ef[0])
		j, errj := strconv.Atoi(ef[1])
		a, erra := strconv.ParseFloat(ef[2], 64)
		if erri != nil || errj != nil || erra != nil {
			return nil, &parseError{line, 1, "expected \"i j a\" with integer i, j and real a"}
		}
		entries = append(entries, Entry{I: i, J: j, A: a})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Matrix{Rows: rows, Columns: cols, NumEntries: nnz, Entries: entries}, nil
}
