package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
	"fireblue/internal/domain/production"
	"fireblue/internal/infrastructure/http/v1/middleware"
)

type productionStub struct {
	ticket *production.Ticket
	input  production.RegisterMovementInput
	err    error
}

func (s *productionStub) GetTicket(_ context.Context, ticketID id.ID) (*production.Ticket, error) {
	if s.ticket == nil || s.ticket.ID != ticketID {
		return nil, apperror.NewNotFound("ficha", ticketID)
	}
	return s.ticket, nil
}

func (s *productionStub) ListMovements(ctx context.Context, ticketID id.ID) ([]production.Movement, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return []production.Movement{
		{ID: id.New(), TicketID: ticketID, Type: production.MovementExit, Quantity: 100},
		{ID: id.New(), TicketID: ticketID, Type: production.MovementReturn, Quantity: 30},
	}, nil
}

func (s *productionStub) RegisterMovement(_ context.Context, in production.RegisterMovementInput) (*production.Movement, *production.Ticket, error) {
	s.input = in
	if s.err != nil {
		return nil, nil, s.err
	}
	if err := s.ticket.Apply(in.Type, in.Quantity); err != nil {
		return nil, nil, err
	}
	mv := &production.Movement{ID: id.New(), TicketID: in.TicketID, Type: in.Type, Quantity: in.Quantity, Responsible: "sistema"}
	return mv, s.ticket, nil
}

func newTicketRouter(svc ProductionService) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	NewTicketHandler(NewBaseHandler(), svc).RegisterRoutes(r.Group("/api/v1/fichas"))
	return r
}

func inProductionTicket() *production.Ticket {
	return &production.Ticket{
		ID:          id.New(),
		Code:        "T1",
		ProductName: "Camiseta",
		Color:       "Azul",
		Quantity:    100,
		Status:      production.StatusInProduction,
		EntryDate:   time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC),
	}
}

func TestGetTicket(t *testing.T) {
	tk := inProductionTicket()
	r := newTicketRouter(&productionStub{ticket: tk})

	rec := call(r, http.MethodGet, "/api/v1/fichas/"+tk.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := jsonBody(t, rec)
	assert.Equal(t, "T1", body["codigo"])
	assert.Equal(t, "Camiseta - Azul", body["descricao"])
	assert.Equal(t, 100.0, body["quantidadeRestante"])
	assert.Nil(t, body["bancaId"])

	rec = call(r, http.MethodGet, "/api/v1/fichas/"+id.New().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMovements(t *testing.T) {
	tk := inProductionTicket()
	rec := call(newTicketRouter(&productionStub{ticket: tk}), http.MethodGet, "/api/v1/fichas/"+tk.ID.String()+"/movimentacoes", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tipo":"saida"`)
	assert.Contains(t, rec.Body.String(), `"tipo":"retorno"`)
}

func TestRegisterMovement(t *testing.T) {
	tk := inProductionTicket()
	svc := &productionStub{ticket: tk}

	rec := call(newTicketRouter(svc), http.MethodPost, "/api/v1/fichas/"+tk.ID.String()+"/movimentacoes",
		`{"tipo":"retorno","quantidade":30,"descricao":"lote 1"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, production.MovementReturn, svc.input.Type)
	assert.Equal(t, "lote 1", svc.input.Description)
	assert.Equal(t, tk.ID, svc.input.TicketID)

	body := jsonBody(t, rec)
	ficha := body["ficha"].(map[string]any)
	assert.Equal(t, 30.0, ficha["quantidadeRecebida"])
	assert.Equal(t, 70.0, ficha["quantidadeRestante"])
}

func TestRegisterMovement_Validation(t *testing.T) {
	tk := inProductionTicket()
	r := newTicketRouter(&productionStub{ticket: tk})
	path := "/api/v1/fichas/" + tk.ID.String() + "/movimentacoes"

	for name, body := range map[string]string{
		"unknown type":  `{"tipo":"devolucao","quantidade":1}`,
		"zero quantity": `{"tipo":"retorno","quantidade":0}`,
		"malformed":     `{"tipo":`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := call(r, http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apperror.CodeValidation, jsonBody(t, rec)["code"])
		})
	}
}

func TestRegisterMovement_ExceedsQuantity(t *testing.T) {
	tk := inProductionTicket()
	rec := call(newTicketRouter(&productionStub{ticket: tk}), http.MethodPost, "/api/v1/fichas/"+tk.ID.String()+"/movimentacoes",
		`{"tipo":"conclusao","quantidade":101}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperror.CodeQuantityExceeded, jsonBody(t, rec)["code"])
}

func TestRegisterMovement_StorageErrorIsOpaque(t *testing.T) {
	tk := inProductionTicket()
	svc := &productionStub{ticket: tk, err: apperror.NewDatabase(errors.New("deadlock detected"))}

	rec := call(newTicketRouter(svc), http.MethodPost, "/api/v1/fichas/"+tk.ID.String()+"/movimentacoes",
		`{"tipo":"retorno","quantidade":1}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "deadlock")
}
