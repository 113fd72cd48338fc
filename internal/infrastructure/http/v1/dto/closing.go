package dto

import (
	"encoding/json"
	"time"

	"fireblue/internal/domain/closing"
	"fireblue/internal/domain/production"
)

// --- Request DTOs ---

// GenerateClosingRequest is the body of POST /fechamentos/gerar.
type GenerateClosingRequest struct {
	StartDate string `json:"dataInicio" binding:"required"`
	EndDate   string `json:"dataFim" binding:"required"`
}

// DateRangeQuery is the query of GET /fechamentos/bancas/movimentacao.
type DateRangeQuery struct {
	StartDate string `form:"dataInicio" binding:"required"`
	EndDate   string `form:"dataFim" binding:"required"`
}

// ListClosingsQuery filters GET /fechamentos.
type ListClosingsQuery struct {
	PageQuery
	Status string `form:"status" binding:"omitempty,oneof=aberto fechado"`
}

// ToFilter converts the query to a domain filter.
func (q ListClosingsQuery) ToFilter() closing.ListFilter {
	f := closing.ListFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		s := closing.Status(q.Status)
		f.Status = &s
	}
	return f
}

// --- Response DTOs ---

// LineItemResponse is one billable movement of a workshop closing.
type LineItemResponse struct {
	ID           string      `json:"id"`
	MovementID   string      `json:"movimentacaoId"`
	MovementType string      `json:"tipoMovimentacao"`
	TicketID     string      `json:"fichaId"`
	TicketCode   string      `json:"codigoFicha"`
	Description  string      `json:"descricao"`
	Product      string      `json:"produto"`
	Color        string      `json:"cor"`
	Size         string      `json:"tamanho"`
	Quantity     int         `json:"quantidade"`
	UnitPrice    json.Number `json:"valorUnitario"`
	Total        json.Number `json:"valorTotal"`
	MovedAt      time.Time   `json:"dataMovimentacao"`
}

// WorkshopClosingResponse is the payment record of one workshop.
type WorkshopClosingResponse struct {
	ID           string             `json:"id"`
	ClosingID    string             `json:"fechamentoId"`
	WorkshopID   string             `json:"bancaId"`
	WorkshopName string             `json:"bancaNome"`
	PixKey       *string            `json:"chavePix"`
	TotalPieces  int                `json:"totalPecas"`
	TotalValue   json.Number        `json:"valorTotal"`
	Status       string             `json:"status"`
	PaidAt       *time.Time         `json:"dataPagamento"`
	CreatedAt    time.Time          `json:"criadoEm"`
	UpdatedAt    time.Time          `json:"atualizadoEm"`
	Items        []LineItemResponse `json:"itens"`
}

// ClosingResponse is the weekly closing with its workshop closings.
type ClosingResponse struct {
	ID          string                    `json:"id"`
	Week        string                    `json:"semana"`
	StartDate   time.Time                 `json:"dataInicio"`
	EndDate     time.Time                 `json:"dataFim"`
	Status      string                    `json:"status"`
	TotalPieces int                       `json:"totalPecas"`
	TotalValue  json.Number               `json:"valorTotal"`
	CreatedAt   time.Time                 `json:"criadoEm"`
	UpdatedAt   time.Time                 `json:"atualizadoEm"`
	ClosedAt    *time.Time                `json:"dataFechamento"`
	Workshops   []WorkshopClosingResponse `json:"bancas"`
}

// WorkshopResultResponse reports what a generate call did for one workshop.
type WorkshopResultResponse struct {
	WorkshopID   string `json:"bancaId"`
	WorkshopName string `json:"bancaNome"`
	Outcome      string `json:"resultado"`
	Reason       string `json:"motivo,omitempty"`
}

// ReportResponse is the per-workshop report of a generate call.
type ReportResponse struct {
	Week       string                   `json:"semana"`
	NewWeek    bool                     `json:"novaSemana"`
	WeekClosed bool                     `json:"semanaFechada"`
	Created    int                      `json:"criadas"`
	Existing   int                      `json:"existentes"`
	Empty      int                      `json:"semMovimentacao"`
	Failed     int                      `json:"falhas"`
	Workshops  []WorkshopResultResponse `json:"bancas"`
}

// GenerateClosingResponse is the weekly closing plus the report.
type GenerateClosingResponse struct {
	ClosingResponse
	Report ReportResponse `json:"relatorio"`
}

// SummaryResponse is one row of GET /fechamentos.
type SummaryResponse struct {
	ID            string      `json:"id"`
	Week          string      `json:"semana"`
	StartDate     time.Time   `json:"dataInicio"`
	EndDate       time.Time   `json:"dataFim"`
	Status        string      `json:"status"`
	TotalPieces   int         `json:"totalPecas"`
	TotalValue    json.Number `json:"valorTotal"`
	WorkshopCount int         `json:"totalBancas"`
	PaidCount     int         `json:"bancasPagas"`
	CreatedAt     time.Time   `json:"criadoEm"`
	ClosedAt      *time.Time  `json:"dataFechamento"`
}

// WorkshopResponse is a workshop with billable movement in a range.
type WorkshopResponse struct {
	ID     string  `json:"id"`
	Name   string  `json:"nome"`
	TaxID  string  `json:"cnpj"`
	Phone  string  `json:"telefone"`
	Email  string  `json:"email"`
	PixKey *string `json:"chavePix"`
}

// --- Mappers ---

// FromLineItem maps a line item.
func FromLineItem(it closing.LineItem) LineItemResponse {
	return LineItemResponse{
		ID:           it.ID.String(),
		MovementID:   it.MovementID.String(),
		MovementType: string(it.MovementType),
		TicketID:     it.TicketID.String(),
		TicketCode:   it.TicketCode,
		Description:  it.Description(),
		Product:      it.Product,
		Color:        it.Color,
		Size:         it.Size,
		Quantity:     it.Quantity,
		UnitPrice:    Price(it.UnitPrice),
		Total:        Money(it.Total),
		MovedAt:      it.MovedAt,
	}
}

// FromWorkshopClosing maps a workshop closing and its items.
func FromWorkshopClosing(wc *closing.WorkshopClosing) WorkshopClosingResponse {
	items := make([]LineItemResponse, 0, len(wc.Items))
	for _, it := range wc.Items {
		items = append(items, FromLineItem(it))
	}
	return WorkshopClosingResponse{
		ID:           wc.ID.String(),
		ClosingID:    wc.ClosingID.String(),
		WorkshopID:   wc.WorkshopID.String(),
		WorkshopName: wc.WorkshopName,
		PixKey:       wc.PixKey,
		TotalPieces:  wc.TotalPieces,
		TotalValue:   Money(wc.TotalValue),
		Status:       string(wc.Status),
		PaidAt:       timePtr(wc.PaidAt),
		CreatedAt:    wc.CreatedAt,
		UpdatedAt:    wc.UpdatedAt,
		Items:        items,
	}
}

// FromClosing maps a weekly closing with its workshop closings.
func FromClosing(c *closing.WeeklyClosing) ClosingResponse {
	workshops := make([]WorkshopClosingResponse, 0, len(c.Workshops))
	for i := range c.Workshops {
		workshops = append(workshops, FromWorkshopClosing(&c.Workshops[i]))
	}
	return ClosingResponse{
		ID:          c.ID.String(),
		Week:        c.Week,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Status:      string(c.Status),
		TotalPieces: c.TotalPieces,
		TotalValue:  Money(c.TotalValue),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		ClosedAt:    timePtr(c.ClosedAt),
		Workshops:   workshops,
	}
}

// FromReport maps a generation report.
func FromReport(r *closing.GenerationReport) ReportResponse {
	results := make([]WorkshopResultResponse, 0, len(r.Results))
	for _, res := range r.Results {
		results = append(results, WorkshopResultResponse{
			WorkshopID:   res.WorkshopID.String(),
			WorkshopName: res.WorkshopName,
			Outcome:      string(res.Outcome),
			Reason:       res.Reason,
		})
	}
	return ReportResponse{
		Week:       r.Week,
		NewWeek:    r.NewWeek,
		WeekClosed: r.WeekClosed,
		Created:    r.Count(closing.OutcomeCreated),
		Existing:   r.Count(closing.OutcomeSkippedExisting),
		Empty:      r.Count(closing.OutcomeSkippedEmpty),
		Failed:     r.Count(closing.OutcomeFailed),
		Workshops:  results,
	}
}

// FromGeneration maps the result of a generate call.
func FromGeneration(res *closing.GenerationResult) GenerateClosingResponse {
	return GenerateClosingResponse{
		ClosingResponse: FromClosing(res.Closing),
		Report:          FromReport(res.Report),
	}
}

// FromSummary maps a list row.
func FromSummary(s closing.Summary) SummaryResponse {
	return SummaryResponse{
		ID:            s.ID.String(),
		Week:          s.Week,
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		Status:        string(s.Status),
		TotalPieces:   s.TotalPieces,
		TotalValue:    Money(s.TotalValue),
		WorkshopCount: s.WorkshopCount,
		PaidCount:     s.PaidCount,
		CreatedAt:     s.CreatedAt,
		ClosedAt:      timePtr(s.ClosedAt),
	}
}

// FromWorkshop maps a workshop.
func FromWorkshop(w production.Workshop) WorkshopResponse {
	return WorkshopResponse{
		ID:     w.ID.String(),
		Name:   w.Name,
		TaxID:  w.TaxID,
		Phone:  w.Phone,
		Email:  w.Email,
		PixKey: w.PixKey,
	}
}
