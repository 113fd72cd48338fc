package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"fireblue/internal/core/id"
	"fireblue/internal/domain/production"
	"fireblue/internal/infrastructure/http/v1/dto"
)

// ProductionService is the part of *production.Service the handler uses.
type ProductionService interface {
	GetTicket(ctx context.Context, ticketID id.ID) (*production.Ticket, error)
	ListMovements(ctx context.Context, ticketID id.ID) ([]production.Movement, error)
	RegisterMovement(ctx context.Context, in production.RegisterMovementInput) (*production.Movement, *production.Ticket, error)
}

// TicketHandler serves /fichas.
type TicketHandler struct {
	*BaseHandler
	service ProductionService
}

// NewTicketHandler creates a ticket handler.
func NewTicketHandler(base *BaseHandler, service ProductionService) *TicketHandler {
	return &TicketHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the ticket routes on rg.
func (h *TicketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.Get)
	rg.GET("/:id/movimentacoes", h.ListMovements)
	rg.POST("/:id/movimentacoes", h.RegisterMovement)
}

// Get handles GET /fichas/:id
func (h *TicketHandler) Get(c *gin.Context) {
	ticketID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	t, err := h.service.GetTicket(c.Request.Context(), ticketID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTicket(t))
}

// ListMovements handles GET /fichas/:id/movimentacoes
func (h *TicketHandler) ListMovements(c *gin.Context) {
	ticketID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	list, err := h.service.ListMovements(c.Request.Context(), ticketID)
	if err != nil {
		h.Error(c, err)
		return
	}
	out := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, dto.FromMovement(m))
	}
	h.OK(c, out)
}

// RegisterMovement handles POST /fichas/:id/movimentacoes
func (h *TicketHandler) RegisterMovement(c *gin.Context) {
	ticketID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.RegisterMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	mv, t, err := h.service.RegisterMovement(c.Request.Context(), req.ToInput(ticketID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.RegisterMovementResponse{
		Movement: dto.FromMovement(*mv),
		Ticket:   dto.FromTicket(t),
	})
}
