package domain

import "errors"

// ============================================================================
// Deployment Errors
// ============================================================================

// Not found errors
var (
	ErrDeploymentNotFound = errors.New("deployment not found")
)

// Validation errors
var (
	ErrInvalidDeploymentKind = errors.New("deployment kind must be CLASSIFIER or KNN")
	ErrInvalidRunID          = errors.New("run ID must be letters, digits, dashes or underscores")
	ErrInvalidPlatform       = errors.New("hosting platform is required")
	ErrInvalidModelDir       = errors.New("model directory does not exist or is not a directory")
	ErrInvalidObjectURL      = errors.New("object URL must look like s3://bucket/key")
	ErrInvalidHyperparameter = errors.New("k must be at least 2, feature_dim and sample_size must be positive")
	ErrInvalidDeploymentID   = errors.New("deployment ID is required")
)

// Verification errors
var (
	ErrEmptyPredictions   = errors.New("endpoint returned no predictions")
	ErrPredictionMismatch = errors.New("endpoint ranking differs from local reference ranking")
	ErrEmptyDataset       = errors.New("vector dataset has no usable rows")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
)

// ============================================================================
// Platform Errors
// ============================================================================

var (
	ErrTrainingFailed      = errors.New("training job did not complete")
	ErrTrainingUnsupported = errors.New("hosting platform does not support managed training")
	ErrEndpointNotReady    = errors.New("endpoint did not become ready")
	ErrLedgerUnavailable   = errors.New("deployment ledger is not configured")
	ErrNotConfigured       = errors.New("deployer is not configured for this pipeline")
	ErrPlatform            = errors.New("hosting platform request failed")
	ErrStorage             = errors.New("object storage request failed")
)
