package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fireblue/internal/core/id"
	"fireblue/internal/domain/closing"
	"fireblue/internal/domain/production"
	"fireblue/internal/infrastructure/metrics"
	"fireblue/pkg/logger"
)

type okDB struct{}

func (okDB) Ping(context.Context) error { return nil }

// emptyClosings serves an empty list and refuses everything else.
type emptyClosings struct{}

func (emptyClosings) Generate(context.Context, string, string) (*closing.GenerationResult, error) {
	return nil, nil
}
func (emptyClosings) PreviewWorkshops(context.Context, string, string) ([]production.Workshop, error) {
	return nil, nil
}
func (emptyClosings) List(context.Context, closing.ListFilter) ([]closing.Summary, int64, error) {
	return nil, 0, nil
}
func (emptyClosings) Get(context.Context, id.ID) (*closing.WeeklyClosing, error) { return nil, nil }
func (emptyClosings) FinalizeWorkshop(context.Context, id.ID, id.ID) (bool, error) {
	return false, nil
}
func (emptyClosings) CancelWorkshop(context.Context, id.ID, id.ID) (bool, error) { return false, nil }
func (emptyClosings) RecomputeWorkshop(context.Context, id.ID, id.ID) (*closing.WorkshopClosing, error) {
	return nil, nil
}
func (emptyClosings) FinalizeWeek(context.Context, id.ID) (bool, error) { return false, nil }

type noTickets struct{}

func (noTickets) GetTicket(context.Context, id.ID) (*production.Ticket, error) { return nil, nil }
func (noTickets) ListMovements(context.Context, id.ID) ([]production.Movement, error) {
	return nil, nil
}
func (noTickets) RegisterMovement(context.Context, production.RegisterMovementInput) (*production.Movement, *production.Ticket, error) {
	return nil, nil, nil
}

func newTestRouter(m *metrics.Metrics) http.Handler {
	return NewRouter(RouterConfig{
		Logger:      logger.NewNop(),
		Metrics:     m,
		DB:          okDB{},
		Closings:    emptyClosings{},
		Production:  noTickets{},
		Location:    time.UTC,
		CORSOrigins: []string{"http://localhost:5173"},
		Version:     "test",
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Routes(t *testing.T) {
	m := metrics.New()
	r := newTestRouter(m)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/fechamentos", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(r, httptest.NewRequest(http.MethodPut, "/api/v1/fechamentos/"+id.New().String()+"/finalizar", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "STATE_CONFLICT")

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fireblue_http_requests_total{method="GET",path="/api/v1/fechamentos",status="200"} 1`)
}

func TestRouter_NoRouteUsesErrorEnvelope(t *testing.T) {
	rec := serve(newTestRouter(nil), httptest.NewRequest(http.MethodGet, "/api/v1/nada", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"code":"NOT_FOUND"`))
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/fechamentos/gerar", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := serve(newTestRouter(nil), req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
