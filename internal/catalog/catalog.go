// Package catalog holds the closed set of collectors and job types, the
// backend endpoint of every (job type, collector) pair and the data lag
// that bounds the dates an operator may request.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

// DefaultLagDays applies to every pair without an explicit lag.
const DefaultLagDays = 1

type pair struct {
	jobType   domain.JobType
	collector domain.Collector
}

// Entry describes one (job type, collector) pair.
type Entry struct {
	JobType   domain.JobType   `json:"jobType"`
	Collector domain.Collector `json:"collector"`
	Endpoint  string           `json:"endpoint,omitempty"`
	Mapped    bool             `json:"mapped"`
	LagDays   int              `json:"lagDays"`
}

// Catalog is an immutable lookup table; build it with New or Default.
type Catalog struct {
	jobTypes   []domain.JobType
	collectors []domain.Collector
	endpoints  map[pair]string
	lags       map[pair]int
	defaultLag int
}

// Option customizes a Catalog at construction.
type Option func(*Catalog)

// WithEndpoint maps a pair to a backend path segment.
func WithEndpoint(jobType domain.JobType, collector domain.Collector, path string) Option {
	return func(c *Catalog) {
		c.endpoints[pair{jobType, collector}] = path
	}
}

// WithLag overrides the lag of one pair.
func WithLag(jobType domain.JobType, collector domain.Collector, days int) Option {
	return func(c *Catalog) {
		c.lags[pair{jobType, collector}] = days
	}
}

// New builds a catalog over the given job types and collectors.
func New(jobTypes []domain.JobType, collectors []domain.Collector, opts ...Option) *Catalog {
	c := &Catalog{
		jobTypes:   jobTypes,
		collectors: collectors,
		endpoints:  make(map[pair]string),
		lags:       make(map[pair]int),
		defaultLag: DefaultLagDays,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns the production catalog.
func Default() *Catalog {
	return New(
		[]domain.JobType{domain.JobTypeReconciliation, domain.JobTypeSettlement},
		[]domain.Collector{
			domain.CollectorKashio,
			domain.CollectorNiubiz,
			domain.CollectorIzipay,
			domain.CollectorPagoEfectivo,
			domain.CollectorYape,
		},
		WithEndpoint(domain.JobTypeReconciliation, domain.CollectorKashio, "kashio/reconcile"),
		WithEndpoint(domain.JobTypeReconciliation, domain.CollectorNiubiz, "niubiz/reconcile"),
		WithEndpoint(domain.JobTypeReconciliation, domain.CollectorIzipay, "izipay/reconcile"),
		WithEndpoint(domain.JobTypeReconciliation, domain.CollectorPagoEfectivo, "pagoefectivo/reconcile"),
		WithEndpoint(domain.JobTypeReconciliation, domain.CollectorYape, "yape/reconcile"),
		WithEndpoint(domain.JobTypeSettlement, domain.CollectorKashio, "kashio/settle"),
		WithEndpoint(domain.JobTypeSettlement, domain.CollectorNiubiz, "niubiz/settle"),
		WithEndpoint(domain.JobTypeSettlement, domain.CollectorIzipay, "izipay/settle"),
		WithEndpoint(domain.JobTypeSettlement, domain.CollectorYape, "yape/settle"),
		WithLag(domain.JobTypeSettlement, domain.CollectorNiubiz, 2),
		WithLag(domain.JobTypeSettlement, domain.CollectorIzipay, 3),
		WithLag(domain.JobTypeReconciliation, domain.CollectorIzipay, 2),
	)
}

// Validate checks that every mapped entry refers to a known job type and
// collector and that paths and lags are well formed.
func (c *Catalog) Validate() error {
	var errs []error

	for p, path := range c.endpoints {
		if !c.IsJobType(p.jobType) {
			errs = append(errs, fmt.Errorf("endpoint %q: unknown job type %q", path, p.jobType))
		}
		if !c.IsCollector(p.collector) {
			errs = append(errs, fmt.Errorf("endpoint %q: unknown collector %q", path, p.collector))
		}
		if strings.TrimSpace(path) == "" || strings.HasPrefix(path, "/") {
			errs = append(errs, fmt.Errorf("endpoint for %s/%s: path must be non-empty and relative", p.jobType, p.collector))
		}
	}

	for p, days := range c.lags {
		if days < 0 {
			errs = append(errs, fmt.Errorf("lag for %s/%s must not be negative", p.jobType, p.collector))
		}
	}

	return errors.Join(errs...)
}

// IsJobType reports whether jobType is part of the catalog.
func (c *Catalog) IsJobType(jobType domain.JobType) bool {
	for _, jt := range c.jobTypes {
		if jt == jobType {
			return true
		}
	}
	return false
}

// IsCollector reports whether collector is part of the catalog.
func (c *Catalog) IsCollector(collector domain.Collector) bool {
	for _, col := range c.collectors {
		if col == collector {
			return true
		}
	}
	return false
}

// Endpoint returns the backend path of a pair or a configuration error.
func (c *Catalog) Endpoint(jobType domain.JobType, collector domain.Collector) (string, error) {
	path, ok := c.endpoints[pair{jobType, collector}]
	if !ok {
		return "", domain.EndpointError(jobType, collector)
	}
	return path, nil
}

// LagDays returns how many days before today a range must end.
func (c *Catalog) LagDays(jobType domain.JobType, collector domain.Collector) int {
	if days, ok := c.lags[pair{jobType, collector}]; ok {
		return days
	}
	return c.defaultLag
}

// JobTypes lists the job types in declaration order.
func (c *Catalog) JobTypes() []domain.JobType {
	return append([]domain.JobType(nil), c.jobTypes...)
}

// Collectors lists the collectors in declaration order.
func (c *Catalog) Collectors() []domain.Collector {
	return append([]domain.Collector(nil), c.collectors...)
}

// Entries lists every pair, mapped or not, in declaration order.
func (c *Catalog) Entries() []Entry {
	entries := make([]Entry, 0, len(c.jobTypes)*len(c.collectors))
	for _, jt := range c.jobTypes {
		for _, col := range c.collectors {
			path, ok := c.endpoints[pair{jt, col}]
			entries = append(entries, Entry{
				JobType:   jt,
				Collector: col,
				Endpoint:  path,
				Mapped:    ok,
				LagDays:   c.LagDays(jt, col),
			})
		}
	}
	return entries
}
