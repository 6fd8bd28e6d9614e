package ports

import (
	"context"

	"github.com/google/uuid"

	"model-deployer/internal/core/domain"
)

// DeploymentFilter defines filters for listing deployments
type DeploymentFilter struct {
	Kind   string
	Status string
	SortBy string
	Order  string
	Limit  int
	Offset int
}

// DeploymentRepository defines the contract for deployment record persistence
type DeploymentRepository interface {
	// Create stores a new deployment record
	Create(ctx context.Context, d *domain.Deployment) error

	// Update overwrites the mutable fields of a deployment record
	Update(ctx context.Context, d *domain.Deployment) error

	// GetByID retrieves a deployment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error)

	// List lists deployments with filtering
	List(ctx context.Context, filter DeploymentFilter) ([]*domain.Deployment, int, error)
}
