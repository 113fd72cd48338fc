package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fireblue/internal/core/id"
	"fireblue/internal/core/types"
	"fireblue/internal/domain/closing"
)

type stamped struct {
	CreatedAt time.Time `db:"criado_em"`
}

type withEmbedded struct {
	stamped
	ID    id.ID  `db:"id"`
	Name  string `db:"nome"`
	Extra string `db:"-"`
	plain string
}

func TestExtractDBColumns_WorkshopClosing(t *testing.T) {
	cols := ExtractDBColumns[closing.WorkshopClosing]()

	assert.Equal(t, []string{
		"id", "fechamento_id", "banca_id", "banca_nome", "chave_pix", "total_pecas",
		"valor_total", "status", "data_pagamento", "criado_em", "atualizado_em",
	}, cols)
	assert.NotContains(t, cols, "Items")
}

func TestExtractDBColumns_Embedded(t *testing.T) {
	assert.Equal(t, []string{"criado_em", "id", "nome"}, ExtractDBColumns[withEmbedded]())
	assert.Equal(t, []string{"x.criado_em", "x.id", "x.nome"}, QualifiedColumns[withEmbedded]("x"))
}

func TestStructToMap(t *testing.T) {
	now := time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC)
	v := withEmbedded{stamped: stamped{CreatedAt: now}, ID: id.New(), Name: "Banca 1", Extra: "x", plain: "y"}

	m := StructToMap(&v)

	assert.Len(t, m, 3)
	assert.Equal(t, now, m["criado_em"])
	assert.Equal(t, v.ID, m["id"])
	assert.Equal(t, "Banca 1", m["nome"])

	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap((*withEmbedded)(nil)))
}

func TestValues_FollowsColumnOrder(t *testing.T) {
	item := closing.LineItem{Quantity: 3, UnitPrice: types.MustMoney("10.00"), Product: "Camiseta"}
	vals := Values(StructToMap(item), []string{"produto", "quantidade"})
	assert.Equal(t, []any{"Camiseta", 3}, vals)
}
