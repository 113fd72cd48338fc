package closing_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
	"fireblue/internal/core/period"
	"fireblue/internal/domain/closing"
	"fireblue/internal/domain/production"
	"fireblue/internal/infrastructure/storage/postgres"
)

const workshopKind = "banca"

// A ticket belongs to a workshop by banca_id, or by name for legacy rows without it.
const joinWorkshop = "terceiros t ON (f.banca_id = t.id OR (f.banca_id IS NULL AND f.banca = t.nome))"

// One catalog row per ticket: by produto_id, or by name for legacy rows.
const joinPrice = `LATERAL (
	SELECT p.valor_unitario, p.preco_venda
	FROM produtos p
	WHERE p.id = f.produto_id OR (f.produto_id IS NULL AND p.nome = f.produto)
	ORDER BY p.id
	LIMIT 1
) p ON TRUE`

var terceiroCols = []string{"t.id", "t.nome", "t.cnpj", "t.telefone", "t.email", "t.chave_pix"}

var _ closing.MovementSource = (*Source)(nil)

// Source implements closing.MovementSource over fichas, movimentacoes_fichas,
// terceiros and produtos.
type Source struct {
	txm *postgres.TxManager
}

// NewSource creates the movement source.
func NewSource(txm *postgres.TxManager) *Source {
	return &Source{txm: txm}
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// billable applies the filters shared by both aggregation queries.
func billable(q squirrel.SelectBuilder, r period.Range) squirrel.SelectBuilder {
	return q.
		From("movimentacoes_fichas m").
		Join("fichas f ON f.id = m.ficha_id").
		Join(joinWorkshop).
		Where(squirrel.Eq{"t.tipo": workshopKind}).
		Where(squirrel.Eq{"m.tipo": stringsOf(production.BillableMovementTypes())}).
		Where(squirrel.Eq{"f.status": stringsOf(production.BillableTicketStatuses())}).
		Where(squirrel.GtOrEq{"m.data": r.From()}).
		Where(squirrel.Lt{"m.data": r.Until()})
}

func workshopsQuery(r period.Range) squirrel.SelectBuilder {
	return billable(postgres.Builder().Select(terceiroCols...).Distinct(), r).
		OrderBy("t.nome", "t.id")
}

func movementsQuery(workshopID id.ID, r period.Range) squirrel.SelectBuilder {
	return billable(postgres.Builder().Select(
		"m.id AS movimentacao_id",
		"m.tipo",
		"m.quantidade",
		"m.data",
		"f.id AS ficha_id",
		"f.codigo AS codigo_ficha",
		"f.produto",
		"f.cor",
		"f.tamanho",
		"COALESCE(p.valor_unitario, p.preco_venda, 0) AS valor_unitario",
	), r).
		LeftJoin(joinPrice).
		Where(squirrel.Eq{"t.id": workshopID}).
		OrderBy("m.data", "m.id")
}

func (s *Source) FindWorkshopsWithMovement(ctx context.Context, r period.Range) ([]production.Workshop, error) {
	sql, args, err := workshopsQuery(r).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	list := make([]production.Workshop, 0)
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &list, sql, args...); err != nil {
		return nil, fmt.Errorf("workshops with movement: %w", err)
	}
	return list, nil
}

func (s *Source) FindBillableMovements(ctx context.Context, workshop production.Workshop, r period.Range) ([]closing.BillableMovement, error) {
	sql, args, err := movementsQuery(workshop.ID, r).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var list []closing.BillableMovement
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &list, sql, args...); err != nil {
		return nil, fmt.Errorf("billable movements: %w", err)
	}
	return list, nil
}

func (s *Source) GetWorkshop(ctx context.Context, workshopID id.ID) (*production.Workshop, error) {
	sql, args, err := postgres.Builder().
		Select(terceiroCols...).
		From("terceiros t").
		Where(squirrel.Eq{"t.id": workshopID, "t.tipo": workshopKind}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var w production.Workshop
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &w, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("banca", workshopID.String())
		}
		return nil, fmt.Errorf("get workshop: %w", err)
	}
	return &w, nil
}
