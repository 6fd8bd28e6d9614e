package ports

import (
	"time"

	"model-deployer/internal/core/domain"
)

// DeploymentMetrics records pipeline outcomes and step latencies
type DeploymentMetrics interface {
	ObserveDeployment(kind domain.DeploymentKind, status domain.DeploymentStatus, elapsed time.Duration)
	ObserveStep(kind domain.DeploymentKind, step string, elapsed time.Duration)
}
