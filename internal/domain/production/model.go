// Package production models production tickets (fichas) sent to workshops
// and the movements that record pieces going out and coming back.
package production

import (
	"fmt"
	"strings"
	"time"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
)

// MovementType is the kind of event logged against a ticket.
type MovementType string

const (
	MovementEntry      MovementType = "entrada"
	MovementExit       MovementType = "saida"
	MovementReturn     MovementType = "retorno"
	MovementCompletion MovementType = "conclusao"
	MovementLoss       MovementType = "perda"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementEntry, MovementExit, MovementReturn, MovementCompletion, MovementLoss:
		return true
	}
	return false
}

// Billable reports whether the movement represents pieces delivered back by
// the workshop. Only these are paid in a weekly closing.
func (t MovementType) Billable() bool {
	return t == MovementReturn || t == MovementCompletion
}

// BillableMovementTypes lists the types counted by a closing.
func BillableMovementTypes() []MovementType {
	return []MovementType{MovementReturn, MovementCompletion}
}

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusAwaitingPickup TicketStatus = "aguardando_retirada"
	StatusInProduction   TicketStatus = "em_producao"
	StatusReceived       TicketStatus = "recebido"
	StatusCompleted      TicketStatus = "concluido"
)

// BillableTicketStatuses lists the ticket statuses whose movements a closing counts.
func BillableTicketStatuses() []TicketStatus {
	return []TicketStatus{StatusInProduction, StatusReceived, StatusCompleted}
}

// Billable reports whether movements of a ticket in status s are counted by a closing.
func (s TicketStatus) Billable() bool {
	return s == StatusInProduction || s == StatusReceived || s == StatusCompleted
}

// Ticket (ficha) is one production order sent to a workshop.
type Ticket struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"codigo" json:"codigo"`

	// WorkshopID is the relation to terceiros. WorkshopName is the legacy
	// denormalized value kept for rows imported before the relation existed.
	WorkshopID   *id.ID `db:"banca_id" json:"bancaId,omitempty"`
	WorkshopName string `db:"banca" json:"banca"`

	ProductID   *id.ID `db:"produto_id" json:"produtoId,omitempty"`
	ProductName string `db:"produto" json:"produto"`
	Color       string `db:"cor" json:"cor"`
	Size        string `db:"tamanho" json:"tamanho"`

	EntryDate      time.Time  `db:"data_entrada" json:"dataEntrada"`
	ExpectedReturn *time.Time `db:"data_previsao" json:"dataPrevisao,omitempty"`

	Quantity         int          `db:"quantidade" json:"quantidade"`
	QuantityReceived int          `db:"quantidade_recebida" json:"quantidadeRecebida"`
	QuantityLost     int          `db:"quantidade_perdida" json:"quantidadePerdida"`
	Status           TicketStatus `db:"status" json:"status"`

	UpdatedAt time.Time `db:"atualizado_em" json:"atualizadoEm"`
}

// Accounted is the number of pieces already back or lost.
func (t *Ticket) Accounted() int {
	return t.QuantityReceived + t.QuantityLost
}

// Remaining is the number of pieces still at the workshop.
func (t *Ticket) Remaining() int {
	return t.Quantity - t.Accounted()
}

// Apply updates counters and status for a movement of qty pieces.
// The ticket is left untouched when the movement is rejected.
func (t *Ticket) Apply(mt MovementType, qty int) error {
	if !mt.Valid() {
		return apperror.NewInvalidInput("tipo", fmt.Sprintf("unknown movement type %q", mt))
	}
	if qty <= 0 {
		return apperror.NewInvalidInput("quantidade", "quantity must be positive")
	}
	if t.Status == StatusCompleted && mt != MovementEntry {
		return apperror.NewStateConflict("ficha", "register "+string(mt)+" on", string(t.Status))
	}

	received, lost, status := t.QuantityReceived, t.QuantityLost, t.Status

	switch mt {
	case MovementExit:
		if status == StatusAwaitingPickup {
			status = StatusInProduction
		}
	case MovementReturn:
		received += qty
		status = StatusReceived
	case MovementCompletion:
		received += qty
	case MovementLoss:
		lost += qty
	}

	if received+lost > t.Quantity {
		return apperror.NewQuantityExceeded(t.Code, t.Quantity, received+lost)
	}
	if received+lost == t.Quantity && mt != MovementEntry && mt != MovementExit {
		status = StatusCompleted
	}

	t.QuantityReceived, t.QuantityLost, t.Status = received, lost, status
	return nil
}

// Description renders product, color and size the way closing line items show them.
func (t *Ticket) Description() string {
	return Describe(t.ProductName, t.Color, t.Size)
}

// Describe joins the non-empty parts of a product description with " - ".
func Describe(product, color, size string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{product, color, size} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " - ")
}

// Movement is an immutable event against a ticket.
type Movement struct {
	ID          id.ID        `db:"id" json:"id"`
	TicketID    id.ID        `db:"ficha_id" json:"fichaId"`
	Type        MovementType `db:"tipo" json:"tipo"`
	Quantity    int          `db:"quantidade" json:"quantidade"`
	OccurredAt  time.Time    `db:"data" json:"data"`
	Description string       `db:"descricao" json:"descricao"`
	Responsible string       `db:"responsavel" json:"responsavel"`
}

// Workshop (banca) is an outsourced production contractor, a terceiro with tipo = 'banca'.
type Workshop struct {
	ID     id.ID   `db:"id" json:"id"`
	Name   string  `db:"nome" json:"nome"`
	TaxID  string  `db:"cnpj" json:"cnpj"`
	Phone  string  `db:"telefone" json:"telefone"`
	Email  string  `db:"email" json:"email"`
	PixKey *string `db:"chave_pix" json:"chavePix,omitempty"`
}
