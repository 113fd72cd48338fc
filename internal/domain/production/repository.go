package production

import (
	"context"

	"fireblue/internal/core/id"
)

// TicketRepository reads and updates tickets. Ticket creation belongs to the
// CRUD screens and is not part of this service.
type TicketRepository interface {
	// GetByID returns apperror NotFound when the ticket does not exist.
	GetByID(ctx context.Context, ticketID id.ID) (*Ticket, error)

	// GetForUpdate is GetByID plus a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, ticketID id.ID) (*Ticket, error)

	// UpdateProgress persists counters and status.
	UpdateProgress(ctx context.Context, ticket *Ticket) error
}

// MovementRepository stores the movement log.
type MovementRepository interface {
	Create(ctx context.Context, movement *Movement) error

	// ListByTicket returns movements ordered by timestamp.
	ListByTicket(ctx context.Context, ticketID id.ID) ([]Movement, error)
}
