package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
	"fireblue/internal/domain/closing"
	"fireblue/internal/domain/production"
	"fireblue/internal/infrastructure/export"
	"fireblue/internal/infrastructure/http/v1/dto"
)

// ClosingService is the part of *closing.Service the handler uses.
type ClosingService interface {
	Generate(ctx context.Context, start, end string) (*closing.GenerationResult, error)
	PreviewWorkshops(ctx context.Context, start, end string) ([]production.Workshop, error)
	List(ctx context.Context, filter closing.ListFilter) ([]closing.Summary, int64, error)
	Get(ctx context.Context, closingID id.ID) (*closing.WeeklyClosing, error)
	FinalizeWorkshop(ctx context.Context, closingID, workshopID id.ID) (bool, error)
	CancelWorkshop(ctx context.Context, closingID, workshopID id.ID) (bool, error)
	RecomputeWorkshop(ctx context.Context, closingID, workshopID id.ID) (*closing.WorkshopClosing, error)
	FinalizeWeek(ctx context.Context, closingID id.ID) (bool, error)
}

// AuditHistory reads the audit trail of a closing. Optional.
type AuditHistory interface {
	History(ctx context.Context, closingID id.ID, limit int) ([]closing.AuditEntry, error)
}

// ClosingHandler serves /fechamentos.
type ClosingHandler struct {
	*BaseHandler
	service ClosingService
	audit   AuditHistory
	loc     *time.Location
}

// NewClosingHandler creates a closing handler. audit may be nil; loc is
// used for dates in spreadsheet exports.
func NewClosingHandler(base *BaseHandler, service ClosingService, audit AuditHistory, loc *time.Location) *ClosingHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ClosingHandler{BaseHandler: base, service: service, audit: audit, loc: loc}
}

// RegisterRoutes mounts the closing routes on rg.
func (h *ClosingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/gerar", h.Generate)
	rg.GET("", h.List)
	rg.GET("/bancas/movimentacao", h.PreviewWorkshops)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/exportar", h.Export)
	rg.PUT("/:id/finalizar", h.FinalizeWeek)
	rg.PUT("/:id/bancas/:bancaId/finalizar", h.FinalizeWorkshop)
	rg.PUT("/:id/bancas/:bancaId/cancelar", h.CancelWorkshop)
	rg.PUT("/:id/bancas/:bancaId/recalcular", h.RecomputeWorkshop)
	if h.audit != nil {
		rg.GET("/:id/historico", h.History)
	}
}

// Generate handles POST /fechamentos/gerar
func (h *ClosingHandler) Generate(c *gin.Context) {
	var req dto.GenerateClosingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Generate(c.Request.Context(), req.StartDate, req.EndDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromGeneration(res))
}

// PreviewWorkshops handles GET /fechamentos/bancas/movimentacao
func (h *ClosingHandler) PreviewWorkshops(c *gin.Context) {
	var q dto.DateRangeQuery
	if !h.BindQuery(c, &q) {
		return
	}

	list, err := h.service.PreviewWorkshops(c.Request.Context(), q.StartDate, q.EndDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	out := make([]dto.WorkshopResponse, 0, len(list))
	for _, w := range list {
		out = append(out, dto.FromWorkshop(w))
	}
	h.OK(c, out)
}

// List handles GET /fechamentos
func (h *ClosingHandler) List(c *gin.Context) {
	var q dto.ListClosingsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := q.ToFilter()
	filter.Normalize()
	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	out := make([]dto.SummaryResponse, 0, len(items))
	for _, s := range items {
		out = append(out, dto.FromSummary(s))
	}
	h.OK(c, dto.ListResponse[dto.SummaryResponse]{
		Items:      out,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Get handles GET /fechamentos/:id
func (h *ClosingHandler) Get(c *gin.Context) {
	closingID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	week, err := h.service.Get(c.Request.Context(), closingID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromClosing(week))
}

// Export handles GET /fechamentos/:id/exportar
func (h *ClosingHandler) Export(c *gin.Context) {
	closingID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	week, err := h.service.Get(c.Request.Context(), closingID)
	if err != nil {
		h.Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteClosing(&buf, week, h.loc); err != nil {
		h.Error(c, apperror.NewInternal(fmt.Errorf("export closing %s: %w", week.Week, err)))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(week)))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// FinalizeWeek handles PUT /fechamentos/:id/finalizar
func (h *ClosingHandler) FinalizeWeek(c *gin.Context) {
	closingID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	applied, err := h.service.FinalizeWeek(c.Request.Context(), closingID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !applied {
		h.Error(c, apperror.NewTransitionRefused("fechamento", "finalize").
			WithDetail("reason", "week is not open or has unpaid workshops"))
		return
	}
	h.Success(c, "")
}

// FinalizeWorkshop handles PUT /fechamentos/:id/bancas/:bancaId/finalizar
func (h *ClosingHandler) FinalizeWorkshop(c *gin.Context) {
	h.transition(c, "finalize", h.service.FinalizeWorkshop)
}

// CancelWorkshop handles PUT /fechamentos/:id/bancas/:bancaId/cancelar
func (h *ClosingHandler) CancelWorkshop(c *gin.Context) {
	h.transition(c, "cancel", h.service.CancelWorkshop)
}

func (h *ClosingHandler) transition(c *gin.Context, action string, fn func(context.Context, id.ID, id.ID) (bool, error)) {
	closingID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	workshopID, ok := h.ParamID(c, "bancaId")
	if !ok {
		return
	}

	applied, err := fn(c.Request.Context(), closingID, workshopID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !applied {
		h.Error(c, apperror.NewTransitionRefused("fechamento_banca", action).
			WithDetail("reason", "workshop closing is not pending"))
		return
	}
	h.Success(c, "")
}

// RecomputeWorkshop handles PUT /fechamentos/:id/bancas/:bancaId/recalcular
func (h *ClosingHandler) RecomputeWorkshop(c *gin.Context) {
	closingID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	workshopID, ok := h.ParamID(c, "bancaId")
	if !ok {
		return
	}

	wc, err := h.service.RecomputeWorkshop(c.Request.Context(), closingID, workshopID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromWorkshopClosing(wc))
}

// History handles GET /fechamentos/:id/historico
func (h *ClosingHandler) History(c *gin.Context) {
	closingID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var q dto.PageQuery
	if !h.BindQuery(c, &q) {
		return
	}

	if q.Limit == 0 {
		q.Limit = 50
	}

	entries, err := h.audit.History(c.Request.Context(), closingID, q.Limit)
	if err != nil {
		h.Error(c, apperror.Classify(err))
		return
	}
	if entries == nil {
		entries = []closing.AuditEntry{}
	}
	h.OK(c, entries)
}
