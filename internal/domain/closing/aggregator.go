package closing

import (
	"context"
	"fmt"

	"fireblue/internal/core/id"
	"fireblue/internal/core/period"
	"fireblue/internal/core/types"
	"fireblue/internal/domain/production"
)

// Aggregator turns billable movements into workshop closings.
type Aggregator struct {
	source MovementSource
}

// NewAggregator creates an aggregator over source.
func NewAggregator(source MovementSource) *Aggregator {
	return &Aggregator{source: source}
}

// FindWorkshops lists workshops with at least one billable movement in r.
func (a *Aggregator) FindWorkshops(ctx context.Context, r period.Range) ([]production.Workshop, error) {
	list, err := a.source.FindWorkshopsWithMovement(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("find workshops with movement: %w", err)
	}
	return list, nil
}

// Compute builds the workshop closing for r with one line item per movement.
// It returns nil when the workshop has no billable movement in r.
// The result has no ClosingID and is in pending status.
func (a *Aggregator) Compute(ctx context.Context, workshop production.Workshop, r period.Range) (*WorkshopClosing, error) {
	movements, err := a.source.FindBillableMovements(ctx, workshop, r)
	if err != nil {
		return nil, fmt.Errorf("billable movements of %s: %w", workshop.Name, err)
	}
	if len(movements) == 0 {
		return nil, nil
	}

	wc := &WorkshopClosing{
		ID:           id.New(),
		WorkshopID:   workshop.ID,
		WorkshopName: workshop.Name,
		PixKey:       workshop.PixKey,
		Status:       WorkshopPending,
	}
	wc.SetItems(LineItems(movements))
	return wc, nil
}

// LineItems maps movements to line items. Each total is rounded half-up to cents.
func LineItems(movements []BillableMovement) []LineItem {
	items := make([]LineItem, 0, len(movements))
	for _, m := range movements {
		items = append(items, LineItem{
			ID:           id.New(),
			MovementID:   m.MovementID,
			MovementType: m.MovementType,
			TicketID:     m.TicketID,
			TicketCode:   m.TicketCode,
			Product:      m.Product,
			Color:        m.Color,
			Size:         m.Size,
			Quantity:     m.Quantity,
			UnitPrice:    m.UnitPrice,
			Total:        types.LineTotal(m.Quantity, m.UnitPrice),
			MovedAt:      m.OccurredAt,
		})
	}
	return items
}
