// Package closing implements the weekly payment closing (fechamento) of
// workshops: aggregation of billable movements, the idempotent weekly record
// and the payment state machines.
package closing

import (
	"time"

	"fireblue/internal/core/id"
	"fireblue/internal/core/period"
	"fireblue/internal/core/types"
	"fireblue/internal/domain/production"
)

// Status of a weekly closing.
type Status string

const (
	StatusOpen   Status = "aberto"
	StatusClosed Status = "fechado"
)

// WorkshopStatus of a workshop closing.
type WorkshopStatus string

const (
	WorkshopPending   WorkshopStatus = "pendente"
	WorkshopPaid      WorkshopStatus = "pago"
	WorkshopCancelled WorkshopStatus = "cancelado"
)

// LineItem is one billable movement inside a workshop closing.
type LineItem struct {
	ID                id.ID                   `db:"id"`
	WorkshopClosingID id.ID                   `db:"fechamento_banca_id"`
	MovementID        id.ID                   `db:"movimentacao_id"`
	MovementType      production.MovementType `db:"tipo_movimentacao"`
	TicketID          id.ID                   `db:"ficha_id"`
	TicketCode        string                  `db:"codigo_ficha"`
	Product           string                  `db:"produto"`
	Color             string                  `db:"cor"`
	Size              string                  `db:"tamanho"`
	Quantity          int                     `db:"quantidade"`
	UnitPrice         types.Money             `db:"valor_unitario"`
	Total             types.Money             `db:"valor_total"`
	MovedAt           time.Time               `db:"data_movimentacao"`
}

// Description is "product - color - size".
func (l LineItem) Description() string {
	return production.Describe(l.Product, l.Color, l.Size)
}

// WorkshopClosing is the payment record of one workshop for one week.
type WorkshopClosing struct {
	ID           id.ID          `db:"id"`
	ClosingID    id.ID          `db:"fechamento_id"`
	WorkshopID   id.ID          `db:"banca_id"`
	WorkshopName string         `db:"banca_nome"`
	PixKey       *string        `db:"chave_pix"`
	TotalPieces  int            `db:"total_pecas"`
	TotalValue   types.Money    `db:"valor_total"`
	Status       WorkshopStatus `db:"status"`
	PaidAt       *time.Time     `db:"data_pagamento"`
	CreatedAt    time.Time      `db:"criado_em"`
	UpdatedAt    time.Time      `db:"atualizado_em"`

	Items []LineItem `db:"-"`
}

// SetItems replaces the line items and recomputes the totals from them.
func (w *WorkshopClosing) SetItems(items []LineItem) {
	w.Items = items
	pieces := 0
	totals := make([]types.Money, 0, len(items))
	for i := range items {
		items[i].WorkshopClosingID = w.ID
		pieces += items[i].Quantity
		totals = append(totals, items[i].Total)
	}
	w.TotalPieces = pieces
	w.TotalValue = types.SumMoney(totals...)
}

// Counts reports whether the record contributes to the weekly totals.
func (w *WorkshopClosing) Counts() bool {
	return w.Status != WorkshopCancelled
}

// WeeklyClosing is the aggregate for one ISO week.
type WeeklyClosing struct {
	ID          id.ID       `db:"id"`
	Week        string      `db:"semana"`
	StartDate   time.Time   `db:"data_inicio"`
	EndDate     time.Time   `db:"data_fim"`
	Status      Status      `db:"status"`
	TotalPieces int         `db:"total_pecas"`
	TotalValue  types.Money `db:"valor_total"`
	CreatedAt   time.Time   `db:"criado_em"`
	UpdatedAt   time.Time   `db:"atualizado_em"`
	ClosedAt    *time.Time  `db:"data_fechamento"`

	Workshops []WorkshopClosing `db:"-"`
}

// Range is the date range stored on the record, as calendar days in loc.
func (c *WeeklyClosing) Range(loc *time.Location) period.Range {
	return period.New(c.StartDate, c.EndDate, loc)
}

// Recalculate sets the weekly totals to the sum of the non-cancelled workshop closings.
func (c *WeeklyClosing) Recalculate() {
	pieces := 0
	totals := make([]types.Money, 0, len(c.Workshops))
	for i := range c.Workshops {
		if !c.Workshops[i].Counts() {
			continue
		}
		pieces += c.Workshops[i].TotalPieces
		totals = append(totals, c.Workshops[i].TotalValue)
	}
	c.TotalPieces = pieces
	c.TotalValue = types.SumMoney(totals...)
}

// AllPaid reports whether every non-cancelled workshop closing is paid.
// A week without workshop closings is trivially paid.
func (c *WeeklyClosing) AllPaid() bool {
	for i := range c.Workshops {
		if c.Workshops[i].Counts() && c.Workshops[i].Status != WorkshopPaid {
			return false
		}
	}
	return true
}

// Workshop returns the workshop closing for workshopID, or nil.
func (c *WeeklyClosing) Workshop(workshopID id.ID) *WorkshopClosing {
	for i := range c.Workshops {
		if c.Workshops[i].WorkshopID == workshopID {
			return &c.Workshops[i]
		}
	}
	return nil
}

// Summary is a list row without nested records.
type Summary struct {
	ID            id.ID       `db:"id"`
	Week          string      `db:"semana"`
	StartDate     time.Time   `db:"data_inicio"`
	EndDate       time.Time   `db:"data_fim"`
	Status        Status      `db:"status"`
	TotalPieces   int         `db:"total_pecas"`
	TotalValue    types.Money `db:"valor_total"`
	WorkshopCount int         `db:"total_bancas"`
	PaidCount     int         `db:"bancas_pagas"`
	CreatedAt     time.Time   `db:"criado_em"`
	ClosedAt      *time.Time  `db:"data_fechamento"`
}

// ListFilter pages the closing list. Newest week first.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// Normalize applies default and maximum page size.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
