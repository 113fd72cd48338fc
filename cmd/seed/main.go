// Package main provides a CLI tool for seeding the database with demo data.
// It creates a few workshops, products and tickets with movements inside
// the week of 23/06/2025 so that a closing can be generated right away:
//
//	POST /api/v1/fechamentos/gerar {"dataInicio":"2025-06-23","dataFim":"2025-06-29"}
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fireblue/internal/config"
	appctx "fireblue/internal/core/context"
	"fireblue/internal/core/id"
	"fireblue/internal/domain/production"
	"fireblue/internal/infrastructure/storage/postgres"
	"fireblue/internal/infrastructure/storage/postgres/production_repo"
	"fireblue/pkg/logger"
)

type workshopSeed struct {
	name     string
	cnpj     string
	phone    string
	pixKey   *string
	workshop bool
}

type productSeed struct {
	name      string
	unitValue *decimal.Decimal
	salePrice *decimal.Decimal
}

type movementSeed struct {
	kind production.MovementType
	qty  int
	day  int // day of June 2025
	hour int
}

type ticketSeed struct {
	code     string
	workshop string
	// legacy tickets carry only the workshop name, no banca_id
	legacy    bool
	product   string
	color     string
	size      string
	quantity  int
	movements []movementSeed
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := appctx.WithOperator(context.Background(), &appctx.Operator{Name: "seed"})

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database, cfg.App.Location))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	workshopIDs, err := seedWorkshops(ctx, pool, log)
	if err != nil {
		log.Fatalw("failed to seed workshops", "error", err)
	}
	productIDs, err := seedProducts(ctx, pool, log)
	if err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}

	txManager := postgres.NewTxManager(pool)
	svc := production.NewService(
		production_repo.NewTicketRepo(txManager),
		production_repo.NewMovementRepo(txManager),
		txManager,
		nil,
	)
	if err := seedTickets(ctx, pool, svc, cfg.App.Location, workshopIDs, productIDs, log); err != nil {
		log.Fatalw("failed to seed tickets", "error", err)
	}

	log.Info("seeding completed successfully")
}

func strPtr(s string) *string { return &s }

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func seedWorkshops(ctx context.Context, pool *postgres.Pool, log *logger.Logger) (map[string]id.ID, error) {
	seeds := []workshopSeed{
		{"Banca Costura Silva", "12.345.678/0001-90", "(11) 98888-1111", strPtr("costura.silva@pix.com"), true},
		{"Banca Dona Ana", "", "(11) 97777-2222", nil, true},
		{"Banca Pespontos", "98.765.432/0001-10", "", strPtr("11999993333"), true},
		{"Tecelagem Fios", "11.222.333/0001-44", "", nil, false},
	}

	ids := make(map[string]id.ID, len(seeds))
	for _, w := range seeds {
		kind := "banca"
		if !w.workshop {
			kind = "fornecedor"
		}

		var existing id.ID
		err := pool.QueryRow(ctx,
			`SELECT id FROM terceiros WHERE nome = $1 AND tipo = $2`, w.name, kind,
		).Scan(&existing)
		if err == nil {
			ids[w.name] = existing
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check %s: %w", w.name, err)
		}

		wid := id.New()
		_, err = pool.Exec(ctx, `
			INSERT INTO terceiros (id, nome, tipo, cnpj, telefone, chave_pix)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, wid, w.name, kind, w.cnpj, w.phone, w.pixKey)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", w.name, err)
		}
		ids[w.name] = wid
		log.Infow("contractor created", "name", w.name, "type", kind)
	}
	return ids, nil
}

func seedProducts(ctx context.Context, pool *postgres.Pool, log *logger.Logger) (map[string]id.ID, error) {
	seeds := []productSeed{
		{"Camiseta Básica", money("4.50"), money("29.90")},
		// No unit value: closings fall back to the sale price.
		{"Calça Jeans", nil, money("12.00")},
		// No price at all: closings value its items at zero.
		{"Bermuda Sarja", nil, nil},
	}

	ids := make(map[string]id.ID, len(seeds))
	for _, p := range seeds {
		var existing id.ID
		err := pool.QueryRow(ctx, `SELECT id FROM produtos WHERE nome = $1 LIMIT 1`, p.name).Scan(&existing)
		if err == nil {
			ids[p.name] = existing
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check %s: %w", p.name, err)
		}

		pid := id.New()
		if _, err := pool.Exec(ctx,
			`INSERT INTO produtos (id, nome, valor_unitario, preco_venda) VALUES ($1, $2, $3, $4)`,
			pid, p.name, p.unitValue, p.salePrice,
		); err != nil {
			return nil, fmt.Errorf("insert %s: %w", p.name, err)
		}
		ids[p.name] = pid
		log.Infow("product created", "name", p.name)
	}
	return ids, nil
}

func seedTickets(
	ctx context.Context,
	pool *postgres.Pool,
	svc *production.Service,
	loc *time.Location,
	workshops, products map[string]id.ID,
	log *logger.Logger,
) error {
	seeds := []ticketSeed{
		{
			code: "FB-0001", workshop: "Banca Costura Silva", product: "Camiseta Básica",
			color: "Azul", size: "M", quantity: 100,
			movements: []movementSeed{
				{production.MovementExit, 100, 20, 8},
				{production.MovementReturn, 30, 23, 14},
				{production.MovementCompletion, 70, 27, 16},
			},
		},
		{
			code: "FB-0002", workshop: "Banca Costura Silva", product: "Calça Jeans",
			color: "Preto", size: "42", quantity: 50,
			movements: []movementSeed{
				{production.MovementExit, 50, 21, 9},
				{production.MovementReturn, 20, 26, 11},
				// Next week; stays out of the W26 closing.
				{production.MovementReturn, 25, 30, 10},
			},
		},
		{
			code: "FB-0003", workshop: "Banca Dona Ana", legacy: true, product: "Bermuda Sarja",
			color: "Bege", size: "G", quantity: 40,
			movements: []movementSeed{
				{production.MovementExit, 40, 19, 8},
				{production.MovementLoss, 2, 24, 10},
				{production.MovementReturn, 38, 25, 15},
			},
		},
		{
			code: "FB-0004", workshop: "Banca Pespontos", product: "Camiseta Básica",
			color: "Branco", size: "P", quantity: 60,
			movements: []movementSeed{
				{production.MovementExit, 60, 24, 8},
			},
		},
	}

	for _, s := range seeds {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fichas WHERE codigo = $1)`, s.code).Scan(&exists); err != nil {
			return fmt.Errorf("check %s: %w", s.code, err)
		}
		if exists {
			log.Infow("ticket already exists", "code", s.code)
			continue
		}

		var workshopID *id.ID
		if wid, ok := workshops[s.workshop]; ok && !s.legacy {
			workshopID = &wid
		}
		var productID *id.ID
		if pid, ok := products[s.product]; ok {
			productID = &pid
		}

		ticketID := id.New()
		entry := time.Date(2025, time.June, 18, 9, 0, 0, 0, loc)
		if _, err := pool.Exec(ctx, `
			INSERT INTO fichas (id, codigo, banca_id, banca, produto_id, produto, cor, tamanho, data_entrada, quantidade)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, ticketID, s.code, workshopID, s.workshop, productID, s.product, s.color, s.size, entry, s.quantity); err != nil {
			return fmt.Errorf("insert %s: %w", s.code, err)
		}

		for _, m := range s.movements {
			at := time.Date(2025, time.June, m.day, m.hour, 0, 0, 0, loc)
			if _, _, err := svc.RegisterMovement(ctx, production.RegisterMovementInput{
				TicketID:    ticketID,
				Type:        m.kind,
				Quantity:    m.qty,
				Description: "demo",
				OccurredAt:  &at,
			}); err != nil {
				return fmt.Errorf("movement %s on %s: %w", m.kind, s.code, err)
			}
		}
		log.Infow("ticket created", "code", s.code, "workshop", s.workshop, "movements", len(s.movements))
	}
	return nil
}
