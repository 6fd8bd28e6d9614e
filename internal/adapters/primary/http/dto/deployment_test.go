package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"model-deployer/internal/core/domain"
)

// ============================================================================
// ToDeploymentResponse Tests
// ============================================================================

func TestToDeploymentResponse(t *testing.T) {
	now := time.Now()
	d := &domain.Deployment{
		ID:              uuid.New(),
		CreatedAt:       now,
		UpdatedAt:       now,
		Kind:            domain.KindKNN,
		RunID:           "ab12cd34",
		Platform:        "sagemaker",
		EndpointName:    "rec-knn-1-endpoint",
		ModelDataURL:    "s3://data/out/model.tar.gz",
		TrainingJobName: "rec-knn-1-training",
		Status:          domain.StatusFailed,
		LastError:       "prediction mismatch",
		Labels:          map[string]string{"team": "recs"},
	}

	resp := ToDeploymentResponse(d)

	assert.Equal(t, d.ID, resp.ID)
	assert.Equal(t, "KNN", resp.Kind)
	assert.Equal(t, "FAILED", resp.Status)
	assert.Equal(t, "rec-knn-1-training", resp.TrainingJobName)
	assert.Equal(t, "prediction mismatch", resp.LastError)
	assert.Equal(t, "recs", resp.Labels["team"])
}

func TestToDeploymentResponse_NilLabels(t *testing.T) {
	resp := ToDeploymentResponse(&domain.Deployment{Kind: domain.KindClassifier})

	assert.NotNil(t, resp.Labels)
	assert.Empty(t, resp.Labels)
}
