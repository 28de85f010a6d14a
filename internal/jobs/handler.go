package jobs

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lca-companion/internal/shared/server/respond"
	"lca-companion/internal/shared/storage/object"
)

// Handler exposes the jobs list surface over HTTP.
type Handler struct {
	Svc     *Coordinator
	Archive object.ObjectStore
}

// NewHandler constructs a Handler. archive may be nil.
func NewHandler(svc *Coordinator, archive object.ObjectStore) *Handler {
	return &Handler{Svc: svc, Archive: archive}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.list)
	rg.DELETE("/jobs", h.clear)
	rg.GET("/jobs/:id", h.get)
	rg.DELETE("/jobs/:id", h.delete)
	rg.GET("/jobs/:id/result", h.result)
}

func (h *Handler) list(c *gin.Context) {
	records, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		return
	}
	respond.OK(c, gin.H{"jobs": records})
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to fetch job")
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "failed to delete job")
		return
	}
	respond.NoContent(c)
}

func (h *Handler) clear(c *gin.Context) {
	if err := h.Svc.Clear(c.Request.Context()); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to clear jobs", nil)
		return
	}
	respond.NoContent(c)
}

// result serves the archived result document, falling back to the stored record.
func (h *Handler) result(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if h.Archive != nil {
		rc, err := h.Archive.Open(ctx, object.ResultKey(id))
		if err == nil {
			defer rc.Close()
			c.Header("Content-Type", "application/json")
			c.Status(http.StatusOK)
			_, _ = io.Copy(c.Writer, rc)
			return
		}
		if !errors.Is(err, object.ErrNotFound) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read result", nil)
			return
		}
	}

	rec, err := h.Svc.Get(ctx, id)
	if err != nil {
		h.fail(c, err, "failed to fetch result")
		return
	}
	if rec.Status != StatusDone || rec.Result == nil {
		respond.Error(c, http.StatusConflict, "not_ready", "job has no result", map[string]string{"status": string(rec.Status)})
		return
	}
	respond.OK(c, rec.Result)
}

func (h *Handler) fail(c *gin.Context, err error, message string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
}
