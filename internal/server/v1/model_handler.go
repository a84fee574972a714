package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/chat-relay/internal/relay"
)

type ModelHandler struct {
	service relay.Service
}

func NewModelHandler(service relay.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// ListModels reports the usable modes, their system prompts and whether
// answers are simulated.
//
// GET /api/chat/models
func (h *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Models(c.Request.Context()))
}
