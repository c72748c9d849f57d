// Package traceconfig parses and validates the trace-config input (spec
// §4.6, §6): a named set of caches forming a parent DAG, an ordered list of
// NUMA domains, and a thread-to-cache/domain affinity table.
package traceconfig

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind classifies a ConfigError.
type Kind int

const (
	// InvalidAffinity means a thread's cache name does not resolve to a
	// defined cache.
	InvalidAffinity Kind = iota
	// UnknownCache means a cache parent name does not resolve to a defined
	// cache.
	UnknownCache
	// UnknownNumaDomain means a thread's numa_domain name is not in
	// numa_domains.
	UnknownNumaDomain
	// NonMultipleLineSize means a cache's size is not a multiple of its
	// line_size.
	NonMultipleLineSize
	// MalformedJSON means the input could not be parsed as JSON (or YAML)
	// at all.
	MalformedJSON
)

func (k Kind) String() string {
	switch k {
	case InvalidAffinity:
		return "InvalidAffinity"
	case UnknownCache:
		return "UnknownCache"
	case UnknownNumaDomain:
		return "UnknownNumaDomain"
	case NonMultipleLineSize:
		return "NonMultipleLineSize"
	case MalformedJSON:
		return "MalformedJSON"
	default:
		return "Unknown"
	}
}

// ConfigError reports a trace-config validation failure, prefixed with the
// name of the cache or thread that triggered it.
type ConfigError struct {
	Kind    Kind
	Subject string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Subject, e.Kind, e.Message)
}

func newError(kind Kind, subject, message string) *ConfigError {
	return &ConfigError{Kind: kind, Subject: subject, Message: message}
}

// Cache is one entry of the caches map: its byte size, line size, and
// parent cache names in the hierarchy DAG.
type Cache struct {
	Name     string   `json:"-" yaml:"-"`
	Size     uint64   `json:"size" yaml:"size"`
	LineSize uint64   `json:"line_size" yaml:"line_size"`
	Parents  []string `json:"parent" yaml:"parent"`
	Events   []string `json:"events,omitempty" yaml:"events,omitempty"`
}

// ThreadAffinity binds a simulated thread to a CPU, a cache, and a NUMA
// domain, plus the hardware-counter event groups the profiler (out of
// scope here) would program for it.
type ThreadAffinity struct {
	Thread      int        `json:"thread" yaml:"thread"`
	CPU         int        `json:"cpu" yaml:"cpu"`
	Cache       string     `json:"cache" yaml:"cache"`
	NUMADomain  string     `json:"numa_domain" yaml:"numa_domain"`
	EventGroups [][]string `json:"event_groups,omitempty" yaml:"event_groups,omitempty"`
}

// TraceConfig is the fully parsed and validated trace-config.
type TraceConfig struct {
	Name             string                `json:"name" yaml:"name"`
	Description      string                `json:"description" yaml:"description"`
	Caches           map[string]Cache      `json:"caches" yaml:"caches"`
	NUMADomains      []string              `json:"numa_domains" yaml:"numa_domains"`
	ThreadAffinities []ThreadAffinity      `json:"thread_affinities" yaml:"thread_affinities"`
	numaIndex        map[string]int        `json:"-" yaml:"-"`
}

type wireConfig struct {
	Name             string                      `json:"name" yaml:"name"`
	Description      string                      `json:"description" yaml:"description"`
	Caches           map[string]wireCache         `json:"caches" yaml:"caches"`
	NUMADomains      []string                    `json:"numa_domains" yaml:"numa_domains"`
	ThreadAffinities []ThreadAffinity            `json:"thread_affinities" yaml:"thread_affinities"`
}

type wireCache struct {
	Size     uint64   `json:"size" yaml:"size"`
	LineSize uint64   `json:"line_size" yaml:"line_size"`
	Parents  []string `json:"parent" yaml:"parent"`
	Events   []string `json:"events,omitempty" yaml:"events,omitempty"`
}

// Load reads and validates a trace-config from JSON, the canonical format.
func Load(path string) (*TraceConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()
	return decode(path, f, json.Unmarshal)
}

// LoadYAML reads and validates a trace-config from YAML, an authoring
// convenience over the same schema and validation path as Load.
func LoadYAML(path string) (*TraceConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()
	return decode(path, f, yaml.Unmarshal)
}

func decode(path string, r io.Reader, unmarshal func([]byte, any) error) (*TraceConfig, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var wire wireConfig
	if err := unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%s: %w", path, newError(MalformedJSON, path, err.Error()))
	}

	caches := make(map[string]Cache, len(wire.Caches))
	for name, c := range wire.Caches {
		if c.LineSize == 0 || c.Size%c.LineSize != 0 {
			return nil, newError(NonMultipleLineSize, name,
				fmt.Sprintf("size (%d) is not a multiple of line_size (%d)", c.Size, c.LineSize))
		}
		caches[name] = Cache{Name: name, Size: c.Size, LineSize: c.LineSize, Parents: c.Parents, Events: c.Events}
	}

	for name, c := range caches {
		for _, parent := range c.Parents {
			if _, ok := caches[parent]; !ok {
				return nil, newError(UnknownCache, name, fmt.Sprintf("parent %q is not defined", parent))
			}
		}
	}

	numaIndex := make(map[string]int, len(wire.NUMADomains))
	for i, d := range wire.NUMADomains {
		numaIndex[d] = i
	}

	for _, a := range wire.ThreadAffinities {
		if _, ok := caches[a.Cache]; !ok {
			return nil, newError(InvalidAffinity, fmt.Sprintf("thread %d", a.Thread),
				fmt.Sprintf("cache %q is not defined", a.Cache))
		}
		if _, ok := numaIndex[a.NUMADomain]; !ok {
			return nil, newError(UnknownNumaDomain, fmt.Sprintf("thread %d", a.Thread),
				fmt.Sprintf("numa_domain %q is not defined", a.NUMADomain))
		}
	}

	return &TraceConfig{
		Name: wire.Name, Description: wire.Description,
		Caches: caches, NUMADomains: wire.NUMADomains, ThreadAffinities: wire.ThreadAffinities,
		numaIndex: numaIndex,
	}, nil
}

// NUMADomainIndex returns the ordered-list index of the named NUMA domain.
func (c *TraceConfig) NUMADomainIndex(name string) (int, bool) {
	i, ok := c.numaIndex[name]
	return i, ok
}

// CacheHasAncestor reports whether b is a (reflexive) ancestor of a in the
// cache parent DAG: a itself, or reachable by following a's parents.
func (c *TraceConfig) CacheHasAncestor(a, b Cache) bool {
	if a.Name == b.Name {
		return true
	}
	for _, parent := range a.Parents {
		parentCache, ok := c.Caches[parent]
		if !ok {
			return false
		}
		if c.CacheHasAncestor(parentCache, b) {
			return true
		}
	}
	return false
}

// ActiveThreads returns the indices of the thread affinities whose cache
// has cache as an ancestor, in thread-affinity order.
func (c *TraceConfig) ActiveThreads(cache Cache) []int {
	var threads []int
	for i, affinity := range c.ThreadAffinities {
		affinityCache := c.Caches[affinity.Cache]
		if c.CacheHasAncestor(affinityCache, cache) {
			threads = append(threads, i)
		}
	}
	return threads
}
