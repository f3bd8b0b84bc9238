package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricealert/internal/application/feed"
	"pricealert/internal/application/service"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/storage/memory"
)

type fixedQuotes map[domain.Instrument]float64

func (q fixedQuotes) CurrentPrice(_ context.Context, inst domain.Instrument) (float64, error) {
	p, ok := q[inst]
	if !ok {
		return 0, errors.New("no quote")
	}
	return p, nil
}

type staticFeeds []feed.FeedStatus

func (s staticFeeds) Feeds() []feed.FeedStatus { return s }

func newTestRouter(t *testing.T) (http.Handler, *memory.Repo) {
	t.Helper()
	repo := memory.New()
	quotes := fixedQuotes{domain.BTC: 50000, domain.ETH: 3000}
	svc := service.NewAlertService(repo, service.NewSymbolRegistry(repo, nil), quotes, nil)
	router := NewRouter(Deps{
		Alerts:  svc,
		Feeds:   staticFeeds{{Instrument: domain.BTC, State: domain.FeedOpen}},
		Started: time.Now().Add(-time.Minute),
	})
	return router, repo
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createAlert(t *testing.T, h http.Handler, symbol, cond string, price float64) domain.AlertCondition {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/alerts", map[string]any{"symbol": symbol, "condition": cond, "price": price})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a domain.AlertCondition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	return a
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.GreaterOrEqual(t, resp.Uptime, 60.0)
}

func TestFeeds(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/feeds", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"symbol":"btc","state":"open"}]`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAlert(t *testing.T) {
	h, _ := newTestRouter(t)

	a := createAlert(t, h, "btc", ">", 60000)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, domain.BTC, a.Instrument)
	assert.Equal(t, domain.GreaterThan, a.Comparator)
	assert.Equal(t, domain.StatusActive, a.Status)
}

func TestCreateAlert_BadRequests(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"unknown symbol", map[string]any{"symbol": "pepe", "condition": ">", "price": 1}},
		{"bad condition", map[string]any{"symbol": "btc", "condition": "=", "price": 1}},
		{"non-positive price", map[string]any{"symbol": "btc", "condition": ">", "price": 0}},
		{"already met", map[string]any{"symbol": "btc", "condition": ">", "price": 40000}},
		{"unknown field", map[string]any{"symbol": "btc", "condition": ">", "price": 60000, "extra": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/alerts", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	rec := do(t, h, http.MethodPost, "/alerts", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAlert_QuoteUnavailable(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/alerts", map[string]any{"symbol": "sol", "condition": ">", "price": 500})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListAndGet(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	a := createAlert(t, h, "eth", "<", 2500)
	createAlert(t, h, "btc", ">", 70000)

	rec = do(t, h, http.MethodGet, "/alerts", nil)
	var all []domain.AlertCondition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = do(t, h, http.MethodGet, "/alerts/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.AlertCondition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, a.ID, got.ID)

	rec = do(t, h, http.MethodGet, "/alerts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAlert(t *testing.T) {
	h, repo := newTestRouter(t)
	a := createAlert(t, h, "btc", ">", 60000)

	rec := do(t, h, http.MethodPatch, "/alerts/"+a.ID, map[string]any{"price": 65000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got domain.AlertCondition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 65000.0, got.Threshold)

	// 条件已满足
	rec = do(t, h, http.MethodPatch, "/alerts/"+a.ID, map[string]any{"condition": "<"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/alerts/"+a.ID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/alerts/missing", map[string]any{"price": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := repo.TriggerBatch(context.Background(), []string{a.ID}, 66000, time.Now())
	require.NoError(t, err)
	rec = do(t, h, http.MethodPatch, "/alerts/"+a.ID, map[string]any{"price": 70000})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteAlert(t *testing.T) {
	h, _ := newTestRouter(t)
	a := createAlert(t, h, "btc", "<", 40000)

	rec := do(t, h, http.MethodDelete, "/alerts/"+a.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/alerts/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type recordingAlerts struct {
	AlertAPI
	created service.CreateAlertInput
	updated service.UpdateAlertInput
}

func (r *recordingAlerts) Create(_ context.Context, in service.CreateAlertInput) (*domain.AlertCondition, error) {
	r.created = in
	return &domain.AlertCondition{ID: "a1", Instrument: domain.ETH, Comparator: domain.LessThan, Threshold: in.Price, Status: domain.StatusActive}, nil
}

func (r *recordingAlerts) Update(_ context.Context, id string, in service.UpdateAlertInput) (*domain.AlertCondition, error) {
	r.updated = in
	return &domain.AlertCondition{ID: id, Instrument: domain.ETH, Comparator: domain.LessThan, Threshold: 1, Status: domain.StatusActive}, nil
}

func TestBodiesDecodeIntoServiceInputs(t *testing.T) {
	rec := &recordingAlerts{}
	h := NewRouter(Deps{Alerts: rec})

	res := do(t, h, http.MethodPost, "/alerts", map[string]any{"symbol": "eth", "condition": "<", "price": 2500.5})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Equal(t, service.CreateAlertInput{Symbol: "eth", Condition: "<", Price: 2500.5}, rec.created)

	res = do(t, h, http.MethodPatch, "/alerts/a1", map[string]any{"condition": "<"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.NotNil(t, rec.updated.Condition)
	assert.Equal(t, "<", *rec.updated.Condition)
	assert.Nil(t, rec.updated.Price)
}
