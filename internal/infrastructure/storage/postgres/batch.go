package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// ErrNoTransaction is returned by batch helpers called outside a transaction.
var ErrNoTransaction = errors.New("batch requires transaction context")

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// ExecBatch sends stmts in one round trip on the transaction in ctx.
// It returns the total number of affected rows.
func (m *TxManager) ExecBatch(ctx context.Context, stmts ...squirrel.Sqlizer) (int64, error) {
	if len(stmts) == 0 {
		return 0, nil
	}
	t := m.GetTx(ctx)
	if t == nil {
		return 0, ErrNoTransaction
	}

	batch := &pgx.Batch{}
	for i, s := range stmts {
		sql, args, err := s.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build batch statement %d: %w", i, err)
		}
		batch.Queue(sql, args...)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()

	var affected int64
	for i := range stmts {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("batch statement %d: %w", i, err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

// InsertRows builds one multi-row INSERT of rows into table. Each row is
// mapped with StructToMap and filtered to cols.
func InsertRows[T any](table string, cols []string, rows []T) squirrel.InsertBuilder {
	q := Builder().Insert(table).Columns(cols...)
	for i := range rows {
		q = q.Values(Values(StructToMap(&rows[i]), cols)...)
	}
	return q
}
