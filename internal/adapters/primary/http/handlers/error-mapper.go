package handlers

import (
	"errors"
	"net/http"

	"model-deployer/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrDeploymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidDeploymentKind),
		errors.Is(err, domain.ErrInvalidRunID),
		errors.Is(err, domain.ErrInvalidPlatform),
		errors.Is(err, domain.ErrInvalidModelDir),
		errors.Is(err, domain.ErrInvalidObjectURL),
		errors.Is(err, domain.ErrInvalidHyperparameter),
		errors.Is(err, domain.ErrInvalidDeploymentID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Deployed, but the endpoint did not answer as expected
	case errors.Is(err, domain.ErrEmptyPredictions),
		errors.Is(err, domain.ErrPredictionMismatch),
		errors.Is(err, domain.ErrEmptyDataset),
		errors.Is(err, domain.ErrDimensionMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	// Platform errors
	case errors.Is(err, domain.ErrTrainingFailed),
		errors.Is(err, domain.ErrEndpointNotReady),
		errors.Is(err, domain.ErrPlatform),
		errors.Is(err, domain.ErrStorage):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrLedgerUnavailable),
		errors.Is(err, domain.ErrTrainingUnsupported),
		errors.Is(err, domain.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
