package events

import (
	"time"
)

// TicketUpdated is emitted after a movement changed a ticket's counters or status.
type TicketUpdated struct {
	TicketID         string    `json:"fichaId"`
	Code             string    `json:"codigo"`
	Status           string    `json:"status"`
	MovementType     string    `json:"tipoMovimentacao"`
	Quantity         int       `json:"quantidade"`
	QuantityReceived int       `json:"quantidadeRecebida"`
	QuantityLost     int       `json:"quantidadePerdida"`
	UpdatedAt        time.Time `json:"atualizadoEm"`
}

func (e *TicketUpdated) EventType() string     { return TypeTicketUpdated }
func (e *TicketUpdated) OccurredAt() time.Time { return e.UpdatedAt }
func (e *TicketUpdated) AggregateID() string   { return e.TicketID }

// ClosingGenerated is emitted after a generate call committed.
type ClosingGenerated struct {
	ClosingID   string    `json:"fechamentoId"`
	Week        string    `json:"semana"`
	Created     int       `json:"criadas"`
	Skipped     int       `json:"ignoradas"`
	Failed      int       `json:"falhas"`
	TotalPieces int       `json:"totalPecas"`
	TotalValue  string    `json:"valorTotal"`
	GeneratedAt time.Time `json:"geradoEm"`
}

func (e *ClosingGenerated) EventType() string     { return TypeClosingGenerated }
func (e *ClosingGenerated) OccurredAt() time.Time { return e.GeneratedAt }
func (e *ClosingGenerated) AggregateID() string   { return e.ClosingID }

// ClosingFinalized is emitted when a week moves from open to closed.
type ClosingFinalized struct {
	ClosingID  string    `json:"fechamentoId"`
	Week       string    `json:"semana"`
	TotalValue string    `json:"valorTotal"`
	ClosedAt   time.Time `json:"fechadoEm"`
}

func (e *ClosingFinalized) EventType() string     { return TypeClosingFinalized }
func (e *ClosingFinalized) OccurredAt() time.Time { return e.ClosedAt }
func (e *ClosingFinalized) AggregateID() string   { return e.ClosingID }

// WorkshopClosingChanged is emitted for paid, cancelled and recomputed workshop closings.
type WorkshopClosingChanged struct {
	Type        string    `json:"-"`
	ClosingID   string    `json:"fechamentoId"`
	WorkshopID  string    `json:"bancaId"`
	Workshop    string    `json:"banca"`
	Status      string    `json:"status"`
	TotalPieces int       `json:"totalPecas"`
	TotalValue  string    `json:"valorTotal"`
	ChangedAt   time.Time `json:"alteradoEm"`
}

func (e *WorkshopClosingChanged) EventType() string     { return e.Type }
func (e *WorkshopClosingChanged) OccurredAt() time.Time { return e.ChangedAt }
func (e *WorkshopClosingChanged) AggregateID() string   { return e.ClosingID }
