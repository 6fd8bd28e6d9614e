package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"model-deployer/internal/adapters/primary/http/dto"
	"model-deployer/internal/adapters/primary/http/middleware"
	"model-deployer/internal/core/domain"
	"model-deployer/internal/core/services"
)

// DeployClassifier runs the classifier pipeline inside the request
func (h *Handler) DeployClassifier(c *gin.Context) {
	var req dto.DeployClassifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.classifierSvc.Deploy(c.Request.Context(), services.ClassifierRequest{
		RunID:    req.RunID,
		ModelDir: req.ModelDir,
		Labels:   req.Labels,
	})
	if err != nil {
		middleware.Logger(c).WithError(err).Error("deploy classifier failed")
		respondFailure(c, d, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToDeploymentResponse(d))
}

// DeployKNN runs the KNN pipeline inside the request
func (h *Handler) DeployKNN(c *gin.Context) {
	var req dto.DeployKNNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.knnSvc.Deploy(c.Request.Context(), services.KNNRequest{
		VectorsURL: req.VectorsURL,
		K:          req.K,
		FeatureDim: req.FeatureDim,
		SampleSize: req.SampleSize,
		Labels:     req.Labels,
	})
	if err != nil {
		middleware.Logger(c).WithError(err).Error("deploy knn failed")
		respondFailure(c, d, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToDeploymentResponse(d))
}

// respondFailure maps the error and, once a run was started, attaches its record
func respondFailure(c *gin.Context, d *domain.Deployment, err error) {
	if d != nil {
		c.Header("X-Deployment-ID", d.ID.String())
	}
	mapDomainError(c, err)
}
