package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
)

type collector struct {
	deployments *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	steps       *prometheus.HistogramVec
}

// NewRegistry returns a registry carrying the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	return registry
}

// NewDeploymentMetrics registers the deployment collectors on reg
func NewDeploymentMetrics(namespace string, reg prometheus.Registerer) output.DeploymentMetrics {
	c := &collector{
		deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Deployment runs by kind and final status.",
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deployment_duration_seconds",
			Help:      "Wall time of a full deployment run.",
			Buckets:   prometheus.ExponentialBuckets(30, 2, 10),
		}, []string{"kind", "status"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deployment_step_duration_seconds",
			Help:      "Wall time of individual deployment steps.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"kind", "step"}),
	}
	reg.MustRegister(c.deployments, c.duration, c.steps)
	return c
}

func (c *collector) ObserveDeployment(kind domain.DeploymentKind, status domain.DeploymentStatus, elapsed time.Duration) {
	c.deployments.WithLabelValues(string(kind), string(status)).Inc()
	c.duration.WithLabelValues(string(kind), string(status)).Observe(elapsed.Seconds())
}

func (c *collector) ObserveStep(kind domain.DeploymentKind, step string, elapsed time.Duration) {
	c.steps.WithLabelValues(string(kind), step).Observe(elapsed.Seconds())
}
