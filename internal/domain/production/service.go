package production

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fireblue/internal/core/apperror"
	appctx "fireblue/internal/core/context"
	"fireblue/internal/core/id"
	"fireblue/internal/core/tx"
	"fireblue/internal/domain/events"
	"fireblue/pkg/logger"
)

// RegisterMovementInput describes a movement to log against a ticket.
type RegisterMovementInput struct {
	TicketID    id.ID
	Type        MovementType
	Quantity    int
	Description string
	Responsible string
	// OccurredAt defaults to now.
	OccurredAt *time.Time
}

// Service registers movements and keeps ticket counters consistent.
type Service struct {
	tickets   TicketRepository
	movements MovementRepository
	txManager tx.Manager
	publisher events.Publisher
	now       func() time.Time
}

// NewService creates a production service. publisher may be nil.
func NewService(tickets TicketRepository, movements MovementRepository, txManager tx.Manager, publisher events.Publisher) *Service {
	return &Service{
		tickets:   tickets,
		movements: movements,
		txManager: txManager,
		publisher: publisher,
		now:       time.Now,
	}
}

// GetTicket returns one ticket.
func (s *Service) GetTicket(ctx context.Context, ticketID id.ID) (*Ticket, error) {
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperror.Classify(err)
	}
	return t, nil
}

// ListMovements returns the movement log of a ticket ordered by timestamp.
func (s *Service) ListMovements(ctx context.Context, ticketID id.ID) ([]Movement, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	list, err := s.movements.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperror.Classify(fmt.Errorf("list movements: %w", err))
	}
	return list, nil
}

// RegisterMovement logs a movement and applies it to the ticket in one
// transaction. The ticket row is locked so concurrent movements on the same
// ticket cannot both pass the quantity check.
func (s *Service) RegisterMovement(ctx context.Context, in RegisterMovementInput) (*Movement, *Ticket, error) {
	if !in.Type.Valid() {
		return nil, nil, apperror.NewInvalidInput("tipo", fmt.Sprintf("unknown movement type %q", in.Type))
	}
	if in.Quantity <= 0 {
		return nil, nil, apperror.NewInvalidInput("quantidade", "quantity must be positive")
	}

	now := s.now()
	occurredAt := now
	if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
		occurredAt = *in.OccurredAt
	}
	responsible := strings.TrimSpace(in.Responsible)
	if responsible == "" {
		responsible = appctx.GetOperatorName(ctx)
	}

	mv := &Movement{
		ID:          id.New(),
		TicketID:    in.TicketID,
		Type:        in.Type,
		Quantity:    in.Quantity,
		OccurredAt:  occurredAt,
		Description: strings.TrimSpace(in.Description),
		Responsible: responsible,
	}

	var ticket *Ticket
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tickets.GetForUpdate(ctx, in.TicketID)
		if err != nil {
			return err
		}
		if err := t.Apply(in.Type, in.Quantity); err != nil {
			return err
		}
		t.UpdatedAt = now

		if err := s.movements.Create(ctx, mv); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}
		if err := s.tickets.UpdateProgress(ctx, t); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, nil, apperror.Classify(err)
	}

	logger.Info(ctx, "movement registered",
		"ticket", ticket.Code,
		"type", mv.Type,
		"quantity", mv.Quantity,
		"status", ticket.Status,
	)

	events.Emit(ctx, s.publisher, &events.TicketUpdated{
		TicketID:         ticket.ID.String(),
		Code:             ticket.Code,
		Status:           string(ticket.Status),
		MovementType:     string(mv.Type),
		Quantity:         mv.Quantity,
		QuantityReceived: ticket.QuantityReceived,
		QuantityLost:     ticket.QuantityLost,
		UpdatedAt:        now,
	})

	return mv, ticket, nil
}
