// Package closing_repo provides the PostgreSQL implementation of the closing
// repository and of the movement source the aggregation reads from.
package closing_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
	"fireblue/internal/domain/closing"
	"fireblue/internal/infrastructure/storage/postgres"
)

const (
	tableWeeks     = "fechamentos"
	tableWorkshops = "fechamentos_bancas"
	tableItems     = "fechamentos_bancas_itens"
)

var (
	weekCols     = postgres.ExtractDBColumns[closing.WeeklyClosing]()
	workshopCols = postgres.ExtractDBColumns[closing.WorkshopClosing]()
	itemCols     = postgres.ExtractDBColumns[closing.LineItem]()
)

var _ closing.Repository = (*Repo)(nil)

// Repo implements closing.Repository.
type Repo struct {
	txm *postgres.TxManager
}

// NewRepo creates the closing repository.
func NewRepo(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func (r *Repo) builder() squirrel.StatementBuilderType {
	return postgres.Builder()
}

// upsertWeekQuery inserts the week or touches the existing row so that
// RETURNING yields it and the row lock is held.
func (r *Repo) upsertWeekQuery(c *closing.WeeklyClosing) squirrel.InsertBuilder {
	return r.builder().
		Insert(tableWeeks).
		Columns(weekCols...).
		Values(postgres.Values(postgres.StructToMap(c), weekCols)...).
		Suffix("ON CONFLICT (semana) DO UPDATE SET semana = EXCLUDED.semana RETURNING " + strings.Join(weekCols, ", "))
}

func (r *Repo) UpsertWeek(ctx context.Context, c *closing.WeeklyClosing) (*closing.WeeklyClosing, error) {
	sql, args, err := r.upsertWeekQuery(c).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert week: %w", err)
	}

	var out closing.WeeklyClosing
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("upsert week: %w", err)
	}
	return &out, nil
}

func (r *Repo) getWeek(ctx context.Context, closingID id.ID, lock bool) (*closing.WeeklyClosing, error) {
	q := r.builder().
		Select(weekCols...).
		From(tableWeeks).
		Where(squirrel.Eq{"id": closingID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out closing.WeeklyClosing
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("fechamento", closingID.String())
		}
		return nil, fmt.Errorf("get week: %w", err)
	}
	return &out, nil
}

func (r *Repo) GetByID(ctx context.Context, closingID id.ID) (*closing.WeeklyClosing, error) {
	return r.getWeek(ctx, closingID, false)
}

func (r *Repo) GetForUpdate(ctx context.Context, closingID id.ID) (*closing.WeeklyClosing, error) {
	return r.getWeek(ctx, closingID, true)
}

func (r *Repo) listQuery(filter closing.ListFilter) (squirrel.SelectBuilder, squirrel.SelectBuilder) {
	base := r.builder().Select().From(tableWeeks + " f")
	if filter.Status != nil {
		base = base.Where(squirrel.Eq{"f.status": string(*filter.Status)})
	}

	count := base.Columns("COUNT(*)")

	rows := base.
		Columns(
			"f.id", "f.semana", "f.data_inicio", "f.data_fim", "f.status",
			"f.total_pecas", "f.valor_total", "f.criado_em", "f.data_fechamento",
			"COUNT(fb.id) AS total_bancas",
			"COUNT(fb.id) FILTER (WHERE fb.status = 'pago') AS bancas_pagas",
		).
		LeftJoin(tableWorkshops + " fb ON fb.fechamento_id = f.id").
		GroupBy("f.id").
		OrderBy("f.semana DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	return rows, count
}

func (r *Repo) List(ctx context.Context, filter closing.ListFilter) ([]closing.Summary, int64, error) {
	rowsQ, countQ := r.listQuery(filter)
	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	sql, args, err := rowsQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	items := make([]closing.Summary, 0)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list: %w", err)
	}
	return items, total, nil
}

func (r *Repo) UpdateTotals(ctx context.Context, c *closing.WeeklyClosing) error {
	sql, args, err := r.builder().
		Update(tableWeeks).
		Set("total_pecas", c.TotalPieces).
		Set("valor_total", c.TotalValue).
		Set("atualizado_em", c.UpdatedAt).
		Where(squirrel.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("fechamento", c.ID.String())
	}
	return nil
}

func (r *Repo) markClosedQuery(closingID id.ID, closedAt time.Time) squirrel.UpdateBuilder {
	return r.builder().
		Update(tableWeeks).
		Set("status", string(closing.StatusClosed)).
		Set("data_fechamento", closedAt).
		Set("atualizado_em", closedAt).
		Where(squirrel.Eq{"id": closingID}).
		Where(squirrel.Eq{"status": string(closing.StatusOpen)})
}

func (r *Repo) MarkClosed(ctx context.Context, closingID id.ID, closedAt time.Time) (bool, error) {
	return r.execConditional(ctx, r.markClosedQuery(closingID, closedAt), "mark closed")
}

func (r *Repo) ListWorkshopClosings(ctx context.Context, closingID id.ID) ([]closing.WorkshopClosing, error) {
	sql, args, err := r.builder().
		Select(workshopCols...).
		From(tableWorkshops).
		Where(squirrel.Eq{"fechamento_id": closingID}).
		OrderBy("banca_nome", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	subs := make([]closing.WorkshopClosing, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &subs, sql, args...); err != nil {
		return nil, fmt.Errorf("list workshop closings: %w", err)
	}
	if err := r.loadItems(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *Repo) loadItems(ctx context.Context, subs []closing.WorkshopClosing) error {
	if len(subs) == 0 {
		return nil
	}
	ids := make([]id.ID, len(subs))
	index := make(map[id.ID]int, len(subs))
	for i := range subs {
		ids[i] = subs[i].ID
		index[subs[i].ID] = i
		subs[i].Items = make([]closing.LineItem, 0)
	}

	sql, args, err := r.builder().
		Select(itemCols...).
		From(tableItems).
		Where(squirrel.Eq{"fechamento_banca_id": ids}).
		OrderBy("data_movimentacao", "id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build items query: %w", err)
	}

	var items []closing.LineItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	for _, it := range items {
		if i, ok := index[it.WorkshopClosingID]; ok {
			subs[i].Items = append(subs[i].Items, it)
		}
	}
	return nil
}

func (r *Repo) WorkshopIDs(ctx context.Context, closingID id.ID) (map[id.ID]struct{}, error) {
	sql, args, err := r.builder().
		Select("banca_id").
		From(tableWorkshops).
		Where(squirrel.Eq{"fechamento_id": closingID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var list []id.ID
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &list, sql, args...); err != nil {
		return nil, fmt.Errorf("workshop ids: %w", err)
	}
	out := make(map[id.ID]struct{}, len(list))
	for _, v := range list {
		out[v] = struct{}{}
	}
	return out, nil
}

func (r *Repo) GetWorkshopClosing(ctx context.Context, closingID, workshopID id.ID) (*closing.WorkshopClosing, error) {
	sql, args, err := r.builder().
		Select(workshopCols...).
		From(tableWorkshops).
		Where(squirrel.Eq{"fechamento_id": closingID, "banca_id": workshopID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var wc closing.WorkshopClosing
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &wc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("fechamento_banca", workshopID.String()).
				WithDetail("fechamentoId", closingID.String())
		}
		return nil, fmt.Errorf("get workshop closing: %w", err)
	}

	subs := []closing.WorkshopClosing{wc}
	if err := r.loadItems(ctx, subs); err != nil {
		return nil, err
	}
	return &subs[0], nil
}

func (r *Repo) insertWorkshopQuery(w *closing.WorkshopClosing) squirrel.InsertBuilder {
	return r.builder().
		Insert(tableWorkshops).
		Columns(workshopCols...).
		Values(postgres.Values(postgres.StructToMap(w), workshopCols)...).
		Suffix("ON CONFLICT (fechamento_id, banca_id) DO NOTHING RETURNING id")
}

func (r *Repo) InsertWorkshopClosing(ctx context.Context, w *closing.WorkshopClosing) (bool, error) {
	sql, args, err := r.insertWorkshopQuery(w).ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var inserted id.ID
	if err := querier.QueryRow(ctx, sql, args...).Scan(&inserted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert workshop closing: %w", err)
	}

	if len(w.Items) == 0 {
		return true, nil
	}
	sql, args, err = postgres.InsertRows(tableItems, itemCols, w.Items).ToSql()
	if err != nil {
		return false, fmt.Errorf("build items insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return false, fmt.Errorf("insert items: %w", err)
	}
	return true, nil
}

func (r *Repo) ReplaceWorkshopItems(ctx context.Context, w *closing.WorkshopClosing) (bool, error) {
	update := r.builder().
		Update(tableWorkshops).
		Set("banca_nome", w.WorkshopName).
		Set("chave_pix", w.PixKey).
		Set("total_pecas", w.TotalPieces).
		Set("valor_total", w.TotalValue).
		Set("atualizado_em", w.UpdatedAt).
		Where(squirrel.Eq{"id": w.ID}).
		Where(squirrel.Eq{"status": string(closing.WorkshopPending)})

	ok, err := r.execConditional(ctx, update, "replace workshop totals")
	if err != nil || !ok {
		return ok, err
	}

	stmts := []squirrel.Sqlizer{
		r.builder().Delete(tableItems).Where(squirrel.Eq{"fechamento_banca_id": w.ID}),
	}
	if len(w.Items) > 0 {
		stmts = append(stmts, postgres.InsertRows(tableItems, itemCols, w.Items))
	}
	if _, err := r.txm.ExecBatch(ctx, stmts...); err != nil {
		return false, fmt.Errorf("replace items: %w", err)
	}
	return true, nil
}

func (r *Repo) transitionQuery(workshopClosingID id.ID, from, to closing.WorkshopStatus, paidAt *time.Time) squirrel.UpdateBuilder {
	q := r.builder().
		Update(tableWorkshops).
		Set("status", string(to)).
		Set("atualizado_em", squirrel.Expr("now()"))
	if paidAt != nil {
		q = q.Set("data_pagamento", *paidAt)
	}
	return q.
		Where(squirrel.Eq{"id": workshopClosingID}).
		Where(squirrel.Eq{"status": string(from)})
}

func (r *Repo) TransitionWorkshop(ctx context.Context, workshopClosingID id.ID, from, to closing.WorkshopStatus, paidAt *time.Time) (bool, error) {
	return r.execConditional(ctx, r.transitionQuery(workshopClosingID, from, to, paidAt), "transition workshop closing")
}

// execConditional runs an UPDATE guarded by its WHERE clause and reports
// whether a row matched.
func (r *Repo) execConditional(ctx context.Context, q squirrel.Sqlizer, what string) (bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build %s: %w", what, err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	return tag.RowsAffected() > 0, nil
}
