package testutil

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"model-deployer/internal/core/domain"
	"model-deployer/internal/core/ports/output"
)

// MockObjectStore is a mock of ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutFile(ctx context.Context, key, filePath, contentType string) (string, error) {
	args := m.Called(ctx, key, filePath, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockHostingPlatform is a mock of HostingPlatform.
type MockHostingPlatform struct {
	mock.Mock
}

func (m *MockHostingPlatform) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockHostingPlatform) ArchiveRoot(runID string) string {
	args := m.Called(runID)
	return args.String(0)
}

func (m *MockHostingPlatform) Deploy(ctx context.Context, spec ports.ModelSpec) (*ports.Endpoint, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.Endpoint), args.Error(1)
}

func (m *MockHostingPlatform) Invoke(ctx context.Context, endpointName string, req ports.InvokeRequest) ([]byte, error) {
	args := m.Called(ctx, endpointName, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockTrainer is a mock of Trainer.
type MockTrainer struct {
	mock.Mock
}

func (m *MockTrainer) Train(ctx context.Context, spec ports.TrainingSpec) (*ports.TrainingResult, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.TrainingResult), args.Error(1)
}

// MockDeploymentRepo is a mock of DeploymentRepository.
type MockDeploymentRepo struct {
	mock.Mock
}

func (m *MockDeploymentRepo) Create(ctx context.Context, d *domain.Deployment) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDeploymentRepo) Update(ctx context.Context, d *domain.Deployment) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDeploymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deployment), args.Error(1)
}

func (m *MockDeploymentRepo) List(ctx context.Context, filter ports.DeploymentFilter) ([]*domain.Deployment, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Deployment), args.Int(1), args.Error(2)
}

// MockDeploymentMetrics is a mock of DeploymentMetrics.
type MockDeploymentMetrics struct {
	mock.Mock
}

func (m *MockDeploymentMetrics) ObserveDeployment(kind domain.DeploymentKind, status domain.DeploymentStatus, elapsed time.Duration) {
	m.Called(kind, status, elapsed)
}

func (m *MockDeploymentMetrics) ObserveStep(kind domain.DeploymentKind, step string, elapsed time.Duration) {
	m.Called(kind, step, elapsed)
}
