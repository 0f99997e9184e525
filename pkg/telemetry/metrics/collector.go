package metrics

import (
	"fmt"
	"sync"
	"time"

	"recordkeeper-hq/keeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherLabel replaces entity names once the cardinality limit is reached.
const OtherLabel = "other"

// Collector owns the registry and every retention metric.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runMetrics    *RunMetrics
	policyMetrics *PolicyMetrics
	jobMetrics    *JobMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "keeper",
//		Subsystem: "retention",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(10000),
	}

	c.runMetrics = NewRunMetrics(cfg, registry)
	c.policyMetrics = NewPolicyMetrics(cfg, registry)
	c.jobMetrics = NewJobMetrics(cfg, registry)

	return c
}

// Enabled reports whether recording is switched on. A nil collector is
// disabled.
func (c *Collector) Enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRun records a finished run.
//
// Parameters:
//   - mode: "scheduled" or "on-demand"
//   - status: "success" when every policy succeeded, otherwise "partial" or "failed"
//   - duration: wall time of the run
func (c *Collector) RecordRun(mode, status string, duration time.Duration) {
	if !c.Enabled() {
		return
	}

	c.runMetrics.RecordRun(mode, status, duration)
}

// RecordPolicy records the outcome of one policy.
func (c *Collector) RecordPolicy(action, storage, status string, duration time.Duration) {
	if !c.Enabled() {
		return
	}

	c.policyMetrics.RecordPolicy(action, storage, status, duration)
}

// RecordStep records one cascade step against an entity. Rows is ignored
// when negative.
func (c *Collector) RecordStep(entity, action, status string, rows int64) {
	if !c.Enabled() {
		return
	}

	labelSet := fmt.Sprintf("step:%s:%s", entity, action)
	if !c.cardinalityLimiter.Allow(labelSet) {
		entity = OtherLabel
	}

	c.policyMetrics.RecordStep(entity, action, status, rows)
}

// RecordJob records a delete job's final status.
func (c *Collector) RecordJob(status string, duration time.Duration) {
	if !c.Enabled() {
		return
	}

	c.jobMetrics.RecordJob(status, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
