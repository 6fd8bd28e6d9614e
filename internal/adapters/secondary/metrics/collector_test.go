package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-deployer/internal/core/domain"
)

func TestDeploymentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDeploymentMetrics("model_deployer", reg)

	m.ObserveDeployment(domain.KindKNN, domain.StatusVerified, 12*time.Minute)
	m.ObserveDeployment(domain.KindKNN, domain.StatusFailed, time.Minute)
	m.ObserveDeployment(domain.KindKNN, domain.StatusVerified, 9*time.Minute)
	m.ObserveStep(domain.KindKNN, "train", 5*time.Minute)

	c := m.(*collector)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.deployments.WithLabelValues("KNN", "VERIFIED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deployments.WithLabelValues("KNN", "FAILED")))

	count, err := testutil.GatherAndCount(reg, "model_deployer_deployment_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.NotPanics(t, func() { NewDeploymentMetrics("model_deployer", reg) })
}
