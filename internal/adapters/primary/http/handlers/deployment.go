package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"model-deployer/internal/adapters/primary/http/dto"
	"model-deployer/internal/adapters/primary/http/middleware"
	output "model-deployer/internal/core/ports/output"
)

func (h *Handler) ListDeployments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := output.DeploymentFilter{
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
		SortBy: c.Query("sort_by"),
		Order:  c.Query("order"),
		Limit:  limit,
		Offset: offset,
	}

	deployments, total, err := h.deploymentSvc.List(c.Request.Context(), filter)
	if err != nil {
		middleware.Logger(c).WithError(err).Error("list deployments failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.DeploymentResponse, 0, len(deployments))
	for _, d := range deployments {
		items = append(items, dto.ToDeploymentResponse(d))
	}

	c.JSON(http.StatusOK, dto.ListDeploymentsResponse{
		Items:      items,
		Total:      total,
		PageSize:   len(items),
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetDeployment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	d, err := h.deploymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		middleware.Logger(c).WithError(err).Error("get deployment failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDeploymentResponse(d))
}
