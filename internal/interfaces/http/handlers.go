package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/marketplace-returns/internal/application/ledger"
	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/application/service"
	"github.com/garyjia/marketplace-returns/internal/application/workflow"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
	domainwf "github.com/garyjia/marketplace-returns/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{services: services, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// DurationsResponse is the derived time-in-state view of a case
type DurationsResponse struct {
	CaseID    int64                  `json:"case_id"`
	Durations []ledger.StateDuration `json:"durations"`
	Total     string                 `json:"total"`
}

// ListFailuresRequest represents query parameters for the failure log
type ListFailuresRequest struct {
	Since string `form:"since"`
	Limit int    `form:"limit"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// RequestReturn handles POST /api/returns
func (h *Handlers) RequestReturn(c *gin.Context) {
	var req workflow.RequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	rc, err := h.services.Engine.RequestReturn(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: rc})
}

// GetReturn handles GET /api/returns/:id
func (h *Handlers) GetReturn(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	rc, err := h.services.Engine.GetCase(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rc})
}

// GetReturnByNumber handles GET /api/returns/by-number/:number
func (h *Handlers) GetReturnByNumber(c *gin.Context) {
	rc, err := h.services.Engine.GetCaseByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rc})
}

// GetTracking handles GET /api/returns/:id/tracking
func (h *Handlers) GetTracking(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	entries, err := h.services.Engine.Tracking(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// GetDurations handles GET /api/returns/:id/durations
func (h *Handlers) GetDurations(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	durations, err := h.services.Ledger.StateDurations(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: DurationsResponse{
		CaseID:    id,
		Durations: durations,
		Total:     ledger.Total(durations).String(),
	}})
}

// ApplyTransition handles POST /api/returns/:id/transitions/:action.
// The action is a trigger name; the optional body carries its inputs.
func (h *Handlers) ApplyTransition(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}

	var cmd workflow.Command
	if err := c.ShouldBindJSON(&cmd); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	cmd.Trigger = domainwf.Trigger(c.Param("action"))

	rc, err := h.services.Engine.Apply(c.Request.Context(), id, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rc})
}

// ListCaseDeliveries handles GET /api/returns/:id/deliveries
func (h *Handlers) ListCaseDeliveries(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	deliveries, err := h.services.Deliveries.ListByCase(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: deliveries})
}

// ExportTimeline handles POST /api/returns/:id/export
func (h *Handlers) ExportTimeline(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	if h.services.Exporter == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "timeline export is not configured"})
		return
	}
	path, err := h.services.Exporter.Export(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"path": path}})
}

// ListFailures handles GET /api/notifications/failures
func (h *Handlers) ListFailures(c *gin.Context) {
	var req ListFailuresRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	filter := port.DeliveryFilter{Limit: req.Limit}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			badRequest(c, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}

	failures, err := h.services.Deliveries.ListFailures(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: failures})
}

// UpsertTemplate handles PUT /api/templates
func (h *Handlers) UpsertTemplate(c *gin.Context) {
	var in service.TemplateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	t, err := h.services.Catalog.UpsertTemplate(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: t})
}

// UpsertTrigger handles PUT /api/triggers
func (h *Handlers) UpsertTrigger(c *gin.Context) {
	var in service.TriggerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	t, err := h.services.Catalog.UpsertTrigger(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: t})
}

// ImportCatalog handles POST /api/catalog/import with a YAML body
func (h *Handlers) ImportCatalog(c *gin.Context) {
	result, err := h.services.Catalog.ImportCatalog(c.Request.Context(), c.Request.Body)
	if errors.Is(err, notification.ErrTemplateNotFound) {
		// a binding to a missing template is a problem with the document
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// PreviewTemplate handles POST /api/templates/:code/preview
func (h *Handlers) PreviewTemplate(c *gin.Context) {
	var vars map[string]string
	if err := c.ShouldBindJSON(&vars); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "body must be a JSON object of string variables")
		return
	}
	msg, err := h.services.Catalog.Preview(c.Request.Context(), c.Param("code"), vars)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: msg})
}

// ReloadRegistry handles POST /api/registry/reload
func (h *Handlers) ReloadRegistry(c *gin.Context) {
	if err := h.services.Catalog.Reload(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// fail maps application errors onto HTTP statuses
func (h *Handlers) fail(c *gin.Context, err error) {
	resp := Response{Success: false, Error: err.Error()}
	status := http.StatusInternalServerError

	var ve *domainwf.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
		resp.Field = ve.Field
	case domainwf.IsValidation(err),
		notification.IsRenderError(err),
		errors.Is(err, notification.ErrTemplateInvalid),
		errors.Is(err, notification.ErrTriggerInvalid),
		errors.Is(err, service.ErrCatalogInvalid):
		status = http.StatusUnprocessableEntity
	case domainwf.IsStateConflict(err):
		status = http.StatusConflict
	case errors.Is(err, port.ErrNotFound), errors.Is(err, notification.ErrTemplateNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

func caseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid return case ID")
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
