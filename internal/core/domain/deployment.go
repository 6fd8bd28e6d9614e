package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Value Objects
// ============================================================================

// DeploymentKind identifies which pipeline produced a deployment
type DeploymentKind string

const (
	KindClassifier DeploymentKind = "CLASSIFIER"
	KindKNN        DeploymentKind = "KNN"
)

// IsValid checks if the kind is valid
func (k DeploymentKind) IsValid() bool {
	return k == KindClassifier || k == KindKNN
}

// DeploymentStatus represents the progress of a deployment run
type DeploymentStatus string

const (
	StatusPending  DeploymentStatus = "PENDING"
	StatusDeployed DeploymentStatus = "DEPLOYED"
	StatusVerified DeploymentStatus = "VERIFIED"
	StatusFailed   DeploymentStatus = "FAILED"
)

// IsValid checks if the status is valid
func (s DeploymentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusDeployed, StatusVerified, StatusFailed:
		return true
	}
	return false
}

// ============================================================================
// Entities
// ============================================================================

// Deployment is the record of one run of a deploy pipeline.
// The remote endpoint it names is owned by the hosting platform and is never
// torn down from here.
type Deployment struct {
	ID              uuid.UUID         `json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Kind            DeploymentKind    `json:"kind"`
	RunID           string            `json:"run_id"`
	Platform        string            `json:"platform"`
	EndpointName    string            `json:"endpoint_name"`
	ModelDataURL    string            `json:"model_data_url"`
	TrainingJobName string            `json:"training_job_name"`
	Status          DeploymentStatus  `json:"status"`
	LastError       string            `json:"last_error"`
	Labels          map[string]string `json:"labels"`
}

// NewDeployment creates a new pending Deployment with validation
func NewDeployment(kind DeploymentKind, runID, platform string) (*Deployment, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidDeploymentKind
	}
	if err := ValidateRunID(runID); err != nil {
		return nil, err
	}
	if platform == "" {
		return nil, ErrInvalidPlatform
	}

	now := time.Now()
	return &Deployment{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Kind:      kind,
		RunID:     runID,
		Platform:  platform,
		Status:    StatusPending,
		Labels:    make(map[string]string),
	}, nil
}

// Run IDs end up in file names, archive entry roots and object keys.
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateRunID rejects run IDs that are empty or could leave a path segment
func ValidateRunID(runID string) error {
	if !runIDPattern.MatchString(runID) {
		return ErrInvalidRunID
	}
	return nil
}

// NewRunID returns a short identifier for callers that did not supply one
func NewRunID() string {
	return uuid.New().String()[:8]
}

// SetEndpoint records the endpoint name chosen for this run
func (d *Deployment) SetEndpoint(name string) {
	d.EndpointName = name
	d.UpdatedAt = time.Now()
}

// SetModelData records where the model artifact lives in object storage
func (d *Deployment) SetModelData(url string) {
	d.ModelDataURL = url
	d.UpdatedAt = time.Now()
}

// SetTrainingJob records the managed training job that produced the artifact
func (d *Deployment) SetTrainingJob(name string) {
	d.TrainingJobName = name
	d.UpdatedAt = time.Now()
}

// MarkDeployed records that the endpoint is in service
func (d *Deployment) MarkDeployed() {
	d.Status = StatusDeployed
	d.LastError = ""
	d.UpdatedAt = time.Now()
}

// MarkVerified records that the test inference matched expectations
func (d *Deployment) MarkVerified() {
	d.Status = StatusVerified
	d.LastError = ""
	d.UpdatedAt = time.Now()
}

// MarkFailed records deployment failure
func (d *Deployment) MarkFailed(err string) {
	d.Status = StatusFailed
	d.LastError = err
	d.UpdatedAt = time.Now()
}
