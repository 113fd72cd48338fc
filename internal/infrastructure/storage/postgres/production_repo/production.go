// Package production_repo provides PostgreSQL repositories for tickets
// (fichas) and their movement log.
package production_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
	"fireblue/internal/domain/production"
	"fireblue/internal/infrastructure/storage/postgres"
)

const (
	tableTickets   = "fichas"
	tableMovements = "movimentacoes_fichas"
)

var (
	ticketCols   = postgres.ExtractDBColumns[production.Ticket]()
	movementCols = postgres.ExtractDBColumns[production.Movement]()
)

var (
	_ production.TicketRepository   = (*TicketRepo)(nil)
	_ production.MovementRepository = (*MovementRepo)(nil)
)

// TicketRepo implements production.TicketRepository.
type TicketRepo struct {
	txm *postgres.TxManager
}

// NewTicketRepo creates the ticket repository.
func NewTicketRepo(txm *postgres.TxManager) *TicketRepo {
	return &TicketRepo{txm: txm}
}

func ticketQuery(ticketID id.ID, lock bool) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(ticketCols...).
		From(tableTickets).
		Where(squirrel.Eq{"id": ticketID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *TicketRepo) get(ctx context.Context, ticketID id.ID, lock bool) (*production.Ticket, error) {
	sql, args, err := ticketQuery(ticketID, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t production.Ticket
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ficha", ticketID.String())
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &t, nil
}

func (r *TicketRepo) GetByID(ctx context.Context, ticketID id.ID) (*production.Ticket, error) {
	return r.get(ctx, ticketID, false)
}

func (r *TicketRepo) GetForUpdate(ctx context.Context, ticketID id.ID) (*production.Ticket, error) {
	return r.get(ctx, ticketID, true)
}

func progressQuery(t *production.Ticket) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(tableTickets).
		Set("quantidade_recebida", t.QuantityReceived).
		Set("quantidade_perdida", t.QuantityLost).
		Set("status", string(t.Status)).
		Set("atualizado_em", t.UpdatedAt).
		Where(squirrel.Eq{"id": t.ID})
}

func (r *TicketRepo) UpdateProgress(ctx context.Context, t *production.Ticket) error {
	sql, args, err := progressQuery(t).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update ticket progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("ficha", t.ID.String())
	}
	return nil
}

// MovementRepo implements production.MovementRepository.
type MovementRepo struct {
	txm *postgres.TxManager
}

// NewMovementRepo creates the movement repository.
func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{txm: txm}
}

func (r *MovementRepo) Create(ctx context.Context, m *production.Movement) error {
	sql, args, err := postgres.InsertRows(tableMovements, movementCols, []production.Movement{*m}).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", tableMovements, err)
	}
	return nil
}

func movementsByTicketQuery(ticketID id.ID) squirrel.SelectBuilder {
	return postgres.Builder().
		Select(movementCols...).
		From(tableMovements).
		Where(squirrel.Eq{"ficha_id": ticketID}).
		OrderBy("data", "id")
}

func (r *MovementRepo) ListByTicket(ctx context.Context, ticketID id.ID) ([]production.Movement, error) {
	sql, args, err := movementsByTicketQuery(ticketID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	list := make([]production.Movement, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &list, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return list, nil
}
