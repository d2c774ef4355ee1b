// Package metrics provides named monotonic counters backed by a Prometheus
// registry.
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every counter name unless overridden.
const DefaultNamespace = "framesource"

// ErrEmptyName is returned when a counter is requested without a name.
var ErrEmptyName = errors.New("counter name cannot be empty")

// Counter is a monotonic counter. The zero value is usable and is not
// exported to any registry.
type Counter struct {
	name  string
	value atomic.Int64
	prom  prometheus.Counter
}

// NewCounter returns a standalone counter that is not attached to a registry.
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

// Name returns the counter's unqualified name.
func (c *Counter) Name() string {
	return c.name
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add increments the counter by n. Negative values are ignored.
func (c *Counter) Add(n int64) {
	if n <= 0 {
		return
	}
	c.value.Add(n)
	if c.prom != nil {
		c.prom.Add(float64(n))
	}
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Registry creates counters by name and exports them.
type Registry struct {
	namespace string
	reg       *prometheus.Registry

	mu       sync.Mutex
	counters map[string]*Counter
}

// NewRegistry returns an empty registry. An empty namespace falls back to
// DefaultNamespace.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Registry{
		namespace: namespace,
		reg:       prometheus.NewRegistry(),
		counters:  make(map[string]*Counter),
	}
}

// Counter returns the counter registered under name, creating it on first
// use. Repeated calls with the same name return the same counter.
func (r *Registry) Counter(name, help string) (*Counter, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c, nil
	}

	if help == "" {
		help = fmt.Sprintf("Total %s.", name)
	}
	pc := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      help,
	})
	if err := r.reg.Register(pc); err != nil {
		return nil, fmt.Errorf("registering counter %q: %w", name, err)
	}

	c := &Counter{name: name, prom: pc}
	r.counters[name] = c
	return c, nil
}

// MustCounter is like Counter but panics on error.
func (r *Registry) MustCounter(name, help string) *Counter {
	c, err := r.Counter(name, help)
	if err != nil {
		panic(err)
	}
	return c
}

// Gatherer exposes the underlying registry for scraping or testing.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Snapshot returns the current value of every counter keyed by name.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		out[name] = c.Value()
	}
	return out
}

// Names returns the registered counter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteTextfile writes every counter in the Prometheus text format to path,
// atomically replacing any existing file.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
