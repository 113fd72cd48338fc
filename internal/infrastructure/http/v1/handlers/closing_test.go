package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fireblue/internal/core/apperror"
	"fireblue/internal/core/id"
	"fireblue/internal/core/types"
	"fireblue/internal/domain/closing"
	"fireblue/internal/domain/production"
	"fireblue/internal/infrastructure/export"
	"fireblue/internal/infrastructure/http/v1/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type closingServiceMock struct{ mock.Mock }

func (m *closingServiceMock) Generate(ctx context.Context, start, end string) (*closing.GenerationResult, error) {
	args := m.Called(ctx, start, end)
	res, _ := args.Get(0).(*closing.GenerationResult)
	return res, args.Error(1)
}

func (m *closingServiceMock) PreviewWorkshops(ctx context.Context, start, end string) ([]production.Workshop, error) {
	args := m.Called(ctx, start, end)
	list, _ := args.Get(0).([]production.Workshop)
	return list, args.Error(1)
}

func (m *closingServiceMock) List(ctx context.Context, filter closing.ListFilter) ([]closing.Summary, int64, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]closing.Summary)
	return list, args.Get(1).(int64), args.Error(2)
}

func (m *closingServiceMock) Get(ctx context.Context, closingID id.ID) (*closing.WeeklyClosing, error) {
	args := m.Called(ctx, closingID)
	week, _ := args.Get(0).(*closing.WeeklyClosing)
	return week, args.Error(1)
}

func (m *closingServiceMock) FinalizeWorkshop(ctx context.Context, closingID, workshopID id.ID) (bool, error) {
	args := m.Called(ctx, closingID, workshopID)
	return args.Bool(0), args.Error(1)
}

func (m *closingServiceMock) CancelWorkshop(ctx context.Context, closingID, workshopID id.ID) (bool, error) {
	args := m.Called(ctx, closingID, workshopID)
	return args.Bool(0), args.Error(1)
}

func (m *closingServiceMock) RecomputeWorkshop(ctx context.Context, closingID, workshopID id.ID) (*closing.WorkshopClosing, error) {
	args := m.Called(ctx, closingID, workshopID)
	wc, _ := args.Get(0).(*closing.WorkshopClosing)
	return wc, args.Error(1)
}

func (m *closingServiceMock) FinalizeWeek(ctx context.Context, closingID id.ID) (bool, error) {
	args := m.Called(ctx, closingID)
	return args.Bool(0), args.Error(1)
}

type auditStub struct {
	entries []closing.AuditEntry
	limit   int
}

func (a *auditStub) History(_ context.Context, _ id.ID, limit int) ([]closing.AuditEntry, error) {
	a.limit = limit
	return a.entries, nil
}

func newClosingRouter(svc ClosingService, audit AuditHistory) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	NewClosingHandler(NewBaseHandler(), svc, audit, time.UTC).RegisterRoutes(r.Group("/api/v1/fechamentos"))
	return r
}

func call(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func scenarioClosing() *closing.WeeklyClosing {
	closingID := id.New()
	pix := "banca1@pix"
	return &closing.WeeklyClosing{
		ID:          closingID,
		Week:        "2025-W26",
		StartDate:   time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 6, 29, 23, 59, 59, 0, time.UTC),
		Status:      closing.StatusOpen,
		TotalPieces: 100,
		TotalValue:  types.MustMoney("1000"),
		Workshops: []closing.WorkshopClosing{{
			ID:           id.New(),
			ClosingID:    closingID,
			WorkshopID:   id.New(),
			WorkshopName: "Banca 1",
			PixKey:       &pix,
			TotalPieces:  100,
			TotalValue:   types.MustMoney("1000"),
			Status:       closing.WorkshopPending,
			Items: []closing.LineItem{
				{ID: id.New(), MovementType: production.MovementReturn, TicketCode: "T1", Product: "Camiseta",
					Quantity: 30, UnitPrice: types.MustMoney("10"), Total: types.MustMoney("300"),
					MovedAt: time.Date(2025, 6, 23, 10, 0, 0, 0, time.UTC)},
				{ID: id.New(), MovementType: production.MovementCompletion, TicketCode: "T1", Product: "Camiseta",
					Quantity: 70, UnitPrice: types.MustMoney("10"), Total: types.MustMoney("700"),
					MovedAt: time.Date(2025, 6, 27, 16, 0, 0, 0, time.UTC)},
			},
		}},
	}
}

func TestGenerate(t *testing.T) {
	svc := &closingServiceMock{}
	week := scenarioClosing()
	report := &closing.GenerationReport{Week: week.Week, NewWeek: true, Results: []closing.WorkshopResult{
		{WorkshopID: week.Workshops[0].WorkshopID, WorkshopName: "Banca 1", Outcome: closing.OutcomeCreated},
		{WorkshopID: id.New(), WorkshopName: "Banca 2", Outcome: closing.OutcomeFailed, Reason: "preço inválido"},
	}}
	svc.On("Generate", mock.Anything, "2025-06-23", "2025-06-29").
		Return(&closing.GenerationResult{Closing: week, Report: report}, nil)

	rec := call(newClosingRouter(svc, nil), http.MethodPost, "/api/v1/fechamentos/gerar",
		`{"dataInicio":"2025-06-23","dataFim":"2025-06-29"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"valorTotal":1000.00`)
	assert.Contains(t, rec.Body.String(), `"valorUnitario":10.0000`)

	body := jsonBody(t, rec)
	assert.Equal(t, "2025-W26", body["semana"])
	assert.Equal(t, 100.0, body["totalPecas"])
	bancas := body["bancas"].([]any)
	require.Len(t, bancas, 1)
	banca := bancas[0].(map[string]any)
	assert.Equal(t, "Banca 1", banca["bancaNome"])
	assert.Len(t, banca["itens"], 2)

	rel := body["relatorio"].(map[string]any)
	assert.Equal(t, true, rel["novaSemana"])
	assert.Equal(t, 1.0, rel["criadas"])
	assert.Equal(t, 1.0, rel["falhas"])
	svc.AssertExpectations(t)
}

func TestGenerate_MissingDates(t *testing.T) {
	svc := &closingServiceMock{}

	rec := call(newClosingRouter(svc, nil), http.MethodPost, "/api/v1/fechamentos/gerar", `{"dataInicio":"2025-06-23"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := jsonBody(t, rec)
	assert.Equal(t, apperror.CodeValidation, body["code"])
	assert.Equal(t, map[string]any{"dataFim": "required"}, body["details"].(map[string]any)["fields"])
	svc.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerate_InvalidInputFromService(t *testing.T) {
	svc := &closingServiceMock{}
	svc.On("Generate", mock.Anything, "2025-06-30", "2025-06-23").
		Return(nil, apperror.NewInvalidInput("dataFim", "end date before start date"))

	rec := call(newClosingRouter(svc, nil), http.MethodPost, "/api/v1/fechamentos/gerar",
		`{"dataInicio":"2025-06-30","dataFim":"2025-06-23"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeInvalidInput, jsonBody(t, rec)["code"])
}

func TestList(t *testing.T) {
	svc := &closingServiceMock{}
	summaries := []closing.Summary{
		{ID: id.New(), Week: "2025-W26", Status: closing.StatusOpen, TotalValue: types.MustMoney("1000"), WorkshopCount: 2, PaidCount: 1},
		{ID: id.New(), Week: "2025-W25", Status: closing.StatusClosed, TotalValue: types.MustMoney("50.5")},
	}
	svc.On("List", mock.Anything, closing.ListFilter{Limit: 10, Offset: 5}).Return(summaries, int64(7), nil)

	rec := call(newClosingRouter(svc, nil), http.MethodGet, "/api/v1/fechamentos?limit=10&offset=5", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := jsonBody(t, rec)
	assert.Equal(t, 7.0, body["totalCount"])
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "2025-W26", items[0].(map[string]any)["semana"])
	assert.Equal(t, 1.0, items[0].(map[string]any)["bancasPagas"])
	assert.Contains(t, rec.Body.String(), `"valorTotal":50.50`)
}

func TestList_DefaultsPage(t *testing.T) {
	svc := &closingServiceMock{}
	svc.On("List", mock.Anything, closing.ListFilter{Limit: 20}).Return([]closing.Summary(nil), int64(0), nil)

	rec := call(newClosingRouter(svc, nil), http.MethodGet, "/api/v1/fechamentos", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, jsonBody(t, rec)["items"])
}

func TestGet_NotFoundAndBadID(t *testing.T) {
	svc := &closingServiceMock{}
	missing := id.New()
	svc.On("Get", mock.Anything, missing).Return(nil, apperror.NewNotFound("fechamento", missing))
	r := newClosingRouter(svc, nil)

	rec := call(r, http.MethodGet, "/api/v1/fechamentos/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(r, http.MethodGet, "/api/v1/fechamentos/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeInvalidInput, jsonBody(t, rec)["code"])
}

func TestGet_SubCentUnitPrice(t *testing.T) {
	week := scenarioClosing()
	week.Workshops[0].Items = []closing.LineItem{{
		ID: id.New(), MovementType: production.MovementReturn, TicketCode: "T2", Product: "Botão",
		Quantity: 3, UnitPrice: types.MustMoney("0.125"), Total: types.LineTotal(3, types.MustMoney("0.125")),
		MovedAt: time.Date(2025, 6, 24, 9, 0, 0, 0, time.UTC),
	}}
	svc := &closingServiceMock{}
	svc.On("Get", mock.Anything, week.ID).Return(week, nil)

	rec := call(newClosingRouter(svc, nil), http.MethodGet, "/api/v1/fechamentos/"+week.ID.String(), "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"valorUnitario":0.1250`)
	assert.Contains(t, rec.Body.String(), `"valorTotal":0.38`)
}

func TestPreviewWorkshops(t *testing.T) {
	svc := &closingServiceMock{}
	svc.On("PreviewWorkshops", mock.Anything, "2025-06-23", "2025-06-29").
		Return([]production.Workshop{{ID: id.New(), Name: "Banca 1"}}, nil)
	r := newClosingRouter(svc, nil)

	rec := call(r, http.MethodGet, "/api/v1/fechamentos/bancas/movimentacao?dataInicio=2025-06-23&dataFim=2025-06-29", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"nome":"Banca 1"`)

	rec = call(r, http.MethodGet, "/api/v1/fechamentos/bancas/movimentacao?dataInicio=2025-06-23", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinalizeWorkshop(t *testing.T) {
	closingID, workshopID := id.New(), id.New()
	path := "/api/v1/fechamentos/" + closingID.String() + "/bancas/" + workshopID.String() + "/finalizar"

	t.Run("applied", func(t *testing.T) {
		svc := &closingServiceMock{}
		svc.On("FinalizeWorkshop", mock.Anything, closingID, workshopID).Return(true, nil)

		rec := call(newClosingRouter(svc, nil), http.MethodPut, path, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, jsonBody(t, rec)["success"])
	})

	t.Run("already paid", func(t *testing.T) {
		svc := &closingServiceMock{}
		svc.On("FinalizeWorkshop", mock.Anything, closingID, workshopID).Return(false, nil)

		rec := call(newClosingRouter(svc, nil), http.MethodPut, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperror.CodeStateConflict, jsonBody(t, rec)["code"])
	})
}

func TestCancelWorkshop_NotFound(t *testing.T) {
	closingID, workshopID := id.New(), id.New()
	svc := &closingServiceMock{}
	svc.On("CancelWorkshop", mock.Anything, closingID, workshopID).
		Return(false, apperror.NewNotFound("fechamento_banca", workshopID))

	rec := call(newClosingRouter(svc, nil), http.MethodPut,
		"/api/v1/fechamentos/"+closingID.String()+"/bancas/"+workshopID.String()+"/cancelar", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecomputeWorkshop(t *testing.T) {
	week := scenarioClosing()
	wc := week.Workshops[0]
	svc := &closingServiceMock{}
	svc.On("RecomputeWorkshop", mock.Anything, week.ID, wc.WorkshopID).Return(&wc, nil)

	rec := call(newClosingRouter(svc, nil), http.MethodPut,
		"/api/v1/fechamentos/"+week.ID.String()+"/bancas/"+wc.WorkshopID.String()+"/recalcular", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pendente", jsonBody(t, rec)["status"])
}

func TestFinalizeWeek(t *testing.T) {
	closingID := id.New()
	path := "/api/v1/fechamentos/" + closingID.String() + "/finalizar"

	svc := &closingServiceMock{}
	svc.On("FinalizeWeek", mock.Anything, closingID).Return(false, nil).Once()
	svc.On("FinalizeWeek", mock.Anything, closingID).Return(true, nil).Once()
	r := newClosingRouter(svc, nil)

	rec := call(r, http.MethodPut, path, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeStateConflict, jsonBody(t, rec)["code"])

	rec = call(r, http.MethodPut, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, jsonBody(t, rec)["success"])
}

func TestExport(t *testing.T) {
	week := scenarioClosing()
	svc := &closingServiceMock{}
	svc.On("Get", mock.Anything, week.ID).Return(week, nil)

	rec := call(newClosingRouter(svc, nil), http.MethodGet, "/api/v1/fechamentos/"+week.ID.String()+"/exportar", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "fechamento-2025-W26.xlsx")
	// XLSX is a zip archive.
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestHistory(t *testing.T) {
	closingID := id.New()
	audit := &auditStub{entries: []closing.AuditEntry{{
		ID: id.New(), ClosingID: closingID, Action: closing.AuditGenerate, Operator: "Maria",
		Snapshot: json.RawMessage(`{"range":"2025-06-23..2025-06-29"}`),
	}}}
	r := newClosingRouter(&closingServiceMock{}, audit)

	rec := call(r, http.MethodGet, "/api/v1/fechamentos/"+closingID.String()+"/historico", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 50, audit.limit)
	assert.Contains(t, rec.Body.String(), `"usuario":"Maria"`)
	assert.Contains(t, rec.Body.String(), `"dados":{"range":"2025-06-23..2025-06-29"}`)
}

func TestHistory_NotMountedWithoutAudit(t *testing.T) {
	rec := call(newClosingRouter(&closingServiceMock{}, nil), http.MethodGet, "/api/v1/fechamentos/"+id.New().String()+"/historico", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
