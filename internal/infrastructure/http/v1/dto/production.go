package dto

import (
	"time"

	"fireblue/internal/core/id"
	"fireblue/internal/domain/production"
)

// RegisterMovementRequest is the body of POST /fichas/:id/movimentacoes.
type RegisterMovementRequest struct {
	Type        string     `json:"tipo" binding:"required,oneof=entrada saida retorno conclusao perda"`
	Quantity    int        `json:"quantidade" binding:"required,gt=0"`
	OccurredAt  *time.Time `json:"data,omitempty"`
	Description string     `json:"descricao,omitempty"`
	Responsible string     `json:"responsavel,omitempty"`
}

// ToInput converts the request to a service input.
func (r *RegisterMovementRequest) ToInput(ticketID id.ID) production.RegisterMovementInput {
	return production.RegisterMovementInput{
		TicketID:    ticketID,
		Type:        production.MovementType(r.Type),
		Quantity:    r.Quantity,
		Description: r.Description,
		Responsible: r.Responsible,
		OccurredAt:  r.OccurredAt,
	}
}

// TicketResponse is a production ticket with its counters.
type TicketResponse struct {
	ID               string     `json:"id"`
	Code             string     `json:"codigo"`
	WorkshopID       *string    `json:"bancaId"`
	WorkshopName     string     `json:"banca"`
	ProductID        *string    `json:"produtoId"`
	Product          string     `json:"produto"`
	Color            string     `json:"cor"`
	Size             string     `json:"tamanho"`
	Description      string     `json:"descricao"`
	EntryDate        time.Time  `json:"dataEntrada"`
	ExpectedReturn   *time.Time `json:"dataPrevisao"`
	Quantity         int        `json:"quantidade"`
	QuantityReceived int        `json:"quantidadeRecebida"`
	QuantityLost     int        `json:"quantidadePerdida"`
	Remaining        int        `json:"quantidadeRestante"`
	Status           string     `json:"status"`
	UpdatedAt        time.Time  `json:"atualizadoEm"`
}

// MovementResponse is one movement of a ticket.
type MovementResponse struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"fichaId"`
	Type        string    `json:"tipo"`
	Quantity    int       `json:"quantidade"`
	OccurredAt  time.Time `json:"data"`
	Description string    `json:"descricao"`
	Responsible string    `json:"responsavel"`
}

// RegisterMovementResponse returns the movement and the updated ticket.
type RegisterMovementResponse struct {
	Movement MovementResponse `json:"movimentacao"`
	Ticket   TicketResponse   `json:"ficha"`
}

func idPtr(v *id.ID) *string {
	if v == nil || id.IsNil(*v) {
		return nil
	}
	s := v.String()
	return &s
}

// FromTicket maps a ticket.
func FromTicket(t *production.Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID.String(),
		Code:             t.Code,
		WorkshopID:       idPtr(t.WorkshopID),
		WorkshopName:     t.WorkshopName,
		ProductID:        idPtr(t.ProductID),
		Product:          t.ProductName,
		Color:            t.Color,
		Size:             t.Size,
		Description:      t.Description(),
		EntryDate:        t.EntryDate,
		ExpectedReturn:   timePtr(t.ExpectedReturn),
		Quantity:         t.Quantity,
		QuantityReceived: t.QuantityReceived,
		QuantityLost:     t.QuantityLost,
		Remaining:        t.Remaining(),
		Status:           string(t.Status),
		UpdatedAt:        t.UpdatedAt,
	}
}

// FromMovement maps a movement.
func FromMovement(m production.Movement) MovementResponse {
	return MovementResponse{
		ID:          m.ID.String(),
		TicketID:    m.TicketID.String(),
		Type:        string(m.Type),
		Quantity:    m.Quantity,
		OccurredAt:  m.OccurredAt,
		Description: m.Description,
		Responsible: m.Responsible,
	}
}
