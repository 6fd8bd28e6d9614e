package handlers

import (
	"model-deployer/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	classifierSvc *services.ClassifierService
	knnSvc        *services.KNNService
	deploymentSvc *services.DeploymentService
}

func New(
	classifierSvc *services.ClassifierService,
	knnSvc *services.KNNService,
	deploymentSvc *services.DeploymentService,
) *Handler {
	return &Handler{
		classifierSvc: classifierSvc,
		knnSvc:        knnSvc,
		deploymentSvc: deploymentSvc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Deploy Actions
	r.POST("/deployments/classifier", h.DeployClassifier)
	r.POST("/deployments/knn", h.DeployKNN)

	// Deployment Records
	r.GET("/deployments", h.ListDeployments)
	r.GET("/deployments/:id", h.GetDeployment)
}
