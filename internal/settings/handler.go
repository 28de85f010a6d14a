package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lca-companion/internal/shared/server/respond"
)

// Handler exposes the settings form endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches settings routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings", h.get)
	rg.PUT("/settings", h.put)
}

func (h *Handler) get(c *gin.Context) {
	respond.OK(c, h.Svc.Current().Redacted())
}

func (h *Handler) put(c *gin.Context) {
	var in Settings
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid settings body", nil)
		return
	}
	saved, err := h.Svc.Save(c.Request.Context(), in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.ValidationError(c, "invalid settings", verr.Fields)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save settings", nil)
		return
	}
	respond.OK(c, saved.Redacted())
}
