package router

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lca-companion/internal/jobs"
	"lca-companion/internal/shared/server/middleware"
	"lca-companion/internal/shared/server/respond"
	"lca-companion/internal/shared/telemetry"
)

const maxMessageBytes = 4 << 20

// Handler exposes the message router over HTTP.
type Handler struct {
	Router *Router
}

func NewHandler(r *Router) *Handler {
	return &Handler{Router: r}
}

// RegisterRoutes attaches the message endpoint to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", h.dispatch)
}

func (h *Handler) dispatch(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBytes))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", "failed to read message", nil)
		return
	}
	req, err := Decode(body)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	c.Set(middleware.ActionKey, req.Action())
	ctx := jobs.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	resp := h.Router.Dispatch(ctx, req)
	if resp.JobID != "" {
		c.Set(middleware.JobIDKey, resp.JobID)
	}
	if !resp.Success {
		telemetry.Warn("router.request_failed", map[string]any{
			"action":     req.Action(),
			"job_id":     resp.JobID,
			"error":      resp.Error,
			"request_id": middleware.RequestIDFromContext(c),
		})
	}
	c.JSON(http.StatusOK, resp)
}
