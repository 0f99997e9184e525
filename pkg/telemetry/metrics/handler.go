package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Handler returns an HTTP handler for the Prometheus metrics endpoint. The
// scheduler daemon mounts it at /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}

// WriteTextfile writes the registry in text exposition format, for the
// node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Push sends the registry to a Pushgateway, replacing the metrics of job.
func (c *Collector) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(c.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Flush exports the registry to every configured one-shot destination.
func (c *Collector) Flush(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	if c.config.Textfile != "" {
		if err := c.WriteTextfile(c.config.Textfile); err != nil {
			return err
		}
	}
	if c.config.Pushgateway != "" {
		if err := c.Push(ctx, c.config.Pushgateway, c.config.Job); err != nil {
			return err
		}
	}
	return nil
}
