package dto

import (
	"time"

	"github.com/google/uuid"

	"model-deployer/internal/core/domain"
)

// ============================================================================
// Deployment DTOs
// ============================================================================

type DeployClassifierRequest struct {
	RunID    string            `json:"run_id" binding:"max=40"`
	ModelDir string            `json:"model_dir" binding:"required"`
	Labels   map[string]string `json:"labels"`
}

type DeployKNNRequest struct {
	VectorsURL string            `json:"vectors_url" binding:"required"`
	K          int               `json:"k" binding:"omitempty,min=2"`
	FeatureDim int               `json:"feature_dim" binding:"omitempty,min=1"`
	SampleSize int               `json:"sample_size" binding:"omitempty,min=1"`
	Labels     map[string]string `json:"labels"`
}

type DeploymentResponse struct {
	ID              uuid.UUID         `json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Kind            string            `json:"kind"`
	RunID           string            `json:"run_id"`
	Platform        string            `json:"platform"`
	EndpointName    string            `json:"endpoint_name,omitempty"`
	ModelDataURL    string            `json:"model_data_url,omitempty"`
	TrainingJobName string            `json:"training_job_name,omitempty"`
	Status          string            `json:"status"`
	LastError       string            `json:"last_error,omitempty"`
	Labels          map[string]string `json:"labels"`
}

type ListDeploymentsResponse struct {
	Items      []DeploymentResponse `json:"items"`
	Total      int                  `json:"total"`
	PageSize   int                  `json:"page_size"`
	NextOffset int                  `json:"next_offset"`
}

func ToDeploymentResponse(d *domain.Deployment) DeploymentResponse {
	labels := d.Labels
	if labels == nil {
		labels = make(map[string]string)
	}
	return DeploymentResponse{
		ID:              d.ID,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		Kind:            string(d.Kind),
		RunID:           d.RunID,
		Platform:        d.Platform,
		EndpointName:    d.EndpointName,
		ModelDataURL:    d.ModelDataURL,
		TrainingJobName: d.TrainingJobName,
		Status:          string(d.Status),
		LastError:       d.LastError,
		Labels:          labels,
	}
}
