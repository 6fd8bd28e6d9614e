package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
)

// DeploymentService answers queries over past deployment runs
type DeploymentService struct {
	repo output.DeploymentRepository
}

func NewDeploymentService(repo output.DeploymentRepository) *DeploymentService {
	return &DeploymentService{repo: repo}
}

func (s *DeploymentService) Get(ctx context.Context, id uuid.UUID) (*domain.Deployment, error) {
	if s.repo == nil {
		return nil, domain.ErrLedgerUnavailable
	}
	if id == uuid.Nil {
		return nil, domain.ErrInvalidDeploymentID
	}
	return s.repo.GetByID(ctx, id)
}

func (s *DeploymentService) List(ctx context.Context, filter output.DeploymentFilter) ([]*domain.Deployment, int, error) {
	if s.repo == nil {
		return nil, 0, domain.ErrLedgerUnavailable
	}
	if filter.Kind != "" && !domain.DeploymentKind(filter.Kind).IsValid() {
		return nil, 0, domain.ErrInvalidDeploymentKind
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

func preflight(check func() error) error {
	if check == nil {
		return nil
	}
	if err := check(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotConfigured, err)
	}
	return nil
}

// recorder persists deployment progress and reports metrics. Both sinks are
// optional; failing to record never fails the deployment itself.
type recorder struct {
	repo    output.DeploymentRepository
	metrics output.DeploymentMetrics
}

func (r recorder) begin(ctx context.Context, d *domain.Deployment) {
	if r.repo == nil {
		return
	}
	if err := r.repo.Create(ctx, d); err != nil {
		log.WithError(err).WithField("deployment_id", d.ID).Warn("record deployment failed")
	}
}

func (r recorder) save(ctx context.Context, d *domain.Deployment) {
	if r.repo == nil {
		return
	}
	if err := r.repo.Update(ctx, d); err != nil {
		log.WithError(err).WithField("deployment_id", d.ID).Warn("update deployment record failed")
	}
}

// step times one pipeline stage
func (r recorder) step(kind domain.DeploymentKind, name string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveStep(kind, name, time.Since(start))
	}
}

func (r recorder) finish(ctx context.Context, d *domain.Deployment, start time.Time, err error) {
	if err != nil {
		d.MarkFailed(err.Error())
		log.WithError(err).WithFields(log.Fields{
			"deployment_id": d.ID,
			"kind":          d.Kind,
			"endpoint_name": d.EndpointName,
		}).Error("deployment failed")
	} else {
		log.WithFields(log.Fields{
			"deployment_id":  d.ID,
			"kind":           d.Kind,
			"endpoint_name":  d.EndpointName,
			"model_data_url": d.ModelDataURL,
		}).Info("deployment verified")
	}

	// The request context may already be cancelled; the final state is
	// still worth recording.
	r.save(context.WithoutCancel(ctx), d)

	if r.metrics != nil {
		r.metrics.ObserveDeployment(d.Kind, d.Status, time.Since(start))
	}
}
