package closing

import (
	"context"
	"encoding/json"
	"time"

	"fireblue/internal/core/id"
	"fireblue/internal/core/period"
	"fireblue/internal/core/types"
	"fireblue/internal/domain/production"
)

// BillableMovement is a Return or Completion movement joined with its ticket
// and the catalog price current at query time.
type BillableMovement struct {
	MovementID   id.ID                   `db:"movimentacao_id"`
	MovementType production.MovementType `db:"tipo"`
	Quantity     int                     `db:"quantidade"`
	OccurredAt   time.Time               `db:"data"`
	TicketID     id.ID                   `db:"ficha_id"`
	TicketCode   string                  `db:"codigo_ficha"`
	Product      string                  `db:"produto"`
	Color        string                  `db:"cor"`
	Size         string                  `db:"tamanho"`
	UnitPrice    types.Money             `db:"valor_unitario"`
}

// MovementSource reads the ticket, movement, workshop and catalog tables.
//
// Both queries count only billable movement types on tickets in a billable
// status, with the movement timestamp inside the range. A ticket belongs to
// a workshop by banca_id, or by name when banca_id is empty.
type MovementSource interface {
	// FindWorkshopsWithMovement returns distinct workshops ordered by name.
	FindWorkshopsWithMovement(ctx context.Context, r period.Range) ([]production.Workshop, error)

	// FindBillableMovements returns the workshop's movements ordered by timestamp.
	FindBillableMovements(ctx context.Context, workshop production.Workshop, r period.Range) ([]BillableMovement, error)

	// GetWorkshop returns apperror NotFound when absent.
	GetWorkshop(ctx context.Context, workshopID id.ID) (*production.Workshop, error)
}

// Repository persists weekly and workshop closings.
type Repository interface {
	// UpsertWeek inserts c, or returns the existing record with the same week
	// key. The returned row stays locked until the transaction ends.
	UpsertWeek(ctx context.Context, c *WeeklyClosing) (*WeeklyClosing, error)

	// GetByID returns the weekly header without workshops.
	GetByID(ctx context.Context, closingID id.ID) (*WeeklyClosing, error)

	// GetForUpdate is GetByID plus a row lock.
	GetForUpdate(ctx context.Context, closingID id.ID) (*WeeklyClosing, error)

	List(ctx context.Context, filter ListFilter) ([]Summary, int64, error)

	UpdateTotals(ctx context.Context, c *WeeklyClosing) error

	// MarkClosed moves an open week to closed. False when it was not open.
	MarkClosed(ctx context.Context, closingID id.ID, closedAt time.Time) (bool, error)

	// ListWorkshopClosings returns the workshops of a week with their items, ordered by name.
	ListWorkshopClosings(ctx context.Context, closingID id.ID) ([]WorkshopClosing, error)

	// WorkshopIDs returns the workshops that already have a record in the week.
	WorkshopIDs(ctx context.Context, closingID id.ID) (map[id.ID]struct{}, error)

	// GetWorkshopClosing returns apperror NotFound when absent. Items are loaded.
	GetWorkshopClosing(ctx context.Context, closingID, workshopID id.ID) (*WorkshopClosing, error)

	// InsertWorkshopClosing stores w and its items unless the (week, workshop)
	// pair exists. Returns false, and stores nothing, in that case.
	InsertWorkshopClosing(ctx context.Context, w *WorkshopClosing) (bool, error)

	// ReplaceWorkshopItems swaps the items and totals of a pending record.
	// False when the record is no longer pending.
	ReplaceWorkshopItems(ctx context.Context, w *WorkshopClosing) (bool, error)

	// TransitionWorkshop changes status from -> to. paidAt is stored only when
	// non-nil. False when the record was not in status from.
	TransitionWorkshop(ctx context.Context, workshopClosingID id.ID, from, to WorkshopStatus, paidAt *time.Time) (bool, error)
}

// AuditAction names an audited closing operation.
type AuditAction string

const (
	AuditGenerate         AuditAction = "gerar"
	AuditRecompute        AuditAction = "recalcular"
	AuditFinalizeWorkshop AuditAction = "finalizar_banca"
	AuditCancelWorkshop   AuditAction = "cancelar_banca"
	AuditFinalizeWeek     AuditAction = "finalizar"
)

// AuditLog stores a snapshot per closing operation, inside the operation's transaction.
type AuditLog interface {
	Record(ctx context.Context, action AuditAction, closingID id.ID, snapshot any) error
}

// AuditEntry is one recorded operation on a closing.
type AuditEntry struct {
	ID        id.ID           `json:"id"`
	ClosingID id.ID           `json:"entidadeId"`
	Action    AuditAction     `json:"acao"`
	Operator  string          `json:"usuario"`
	Snapshot  json.RawMessage `json:"dados"`
	CreatedAt time.Time       `json:"criadoEm"`
}

// Metrics observes closing operations.
type Metrics interface {
	ObserveGeneration(report *GenerationReport, elapsed time.Duration, err error)
	ObserveTransition(action AuditAction, applied bool)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, AuditAction, id.ID, any) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveGeneration(*GenerationReport, time.Duration, error) {}
func (nopMetrics) ObserveTransition(AuditAction, bool)                      {}
