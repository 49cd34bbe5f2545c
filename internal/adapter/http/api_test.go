package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/constitution-forecast-service/internal/adapter/http"
	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/fixtures"
	"github.com/couchcryptid/constitution-forecast-service/internal/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory stores ---

type memProfiles struct {
	current map[string]domain.ProfileRecord
	history map[string][]domain.ProfileRecord
	err     error
}

func newMemProfiles() *memProfiles {
	return &memProfiles{
		current: map[string]domain.ProfileRecord{},
		history: map[string][]domain.ProfileRecord{},
	}
}

func (m *memProfiles) SaveProfile(_ context.Context, rec domain.ProfileRecord) error {
	if m.err != nil {
		return m.err
	}
	m.current[rec.UserID] = rec
	m.history[rec.UserID] = append([]domain.ProfileRecord{rec}, m.history[rec.UserID]...)
	return nil
}

func (m *memProfiles) CurrentProfile(_ context.Context, userID string) (domain.ProfileRecord, error) {
	if m.err != nil {
		return domain.ProfileRecord{}, m.err
	}
	rec, ok := m.current[userID]
	if !ok {
		return domain.ProfileRecord{}, domain.ErrProfileNotFound
	}
	return rec, nil
}

func (m *memProfiles) ProfileHistory(_ context.Context, userID string, limit int) ([]domain.ProfileRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	h := m.history[userID]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	return append([]domain.ProfileRecord{}, h...), nil
}

type memForecasts struct {
	byKey map[string]domain.Forecast
}

func (m *memForecasts) SaveForecasts(_ context.Context, fs []domain.Forecast) error {
	for _, f := range fs {
		m.byKey[f.UserID+"|"+f.Date] = f
	}
	return nil
}

func (m *memForecasts) GetForecast(_ context.Context, userID, date string) (domain.Forecast, error) {
	f, ok := m.byKey[userID+"|"+date]
	if !ok {
		return domain.Forecast{}, domain.ErrForecastNotFound
	}
	return f, nil
}

// --- helpers ---

type apiFixture struct {
	srv       *httpadapter.Server
	profiles  *memProfiles
	forecasts *memForecasts
	metrics   *observability.Metrics
}

func newAPIFixture(withForecasts bool) *apiFixture {
	f := &apiFixture{
		profiles: newMemProfiles(),
		metrics:  observability.NewMetricsForTesting(),
	}
	var store domain.ForecastStore
	if withForecasts {
		f.forecasts = &memForecasts{byKey: map[string]domain.Forecast{}}
		store = f.forecasts
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := httpadapter.NewAPI(f.profiles, store, f.metrics, logger)
	f.srv = httpadapter.NewServer(":0", &mockReadiness{}, api, logger)
	return f
}

func (f *apiFixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	f.srv.ServeHTTP(rec, req)
	return rec
}

func answersBody(t *testing.T, raw domain.RawAnswers) []byte {
	t.Helper()
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	return b
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields"`
}

// --- tests ---

func TestSubmitAnswers_Created(t *testing.T) {
	f := newAPIFixture(false)
	raw := fixtures.Answers()[0].Answers

	rec := f.do(http.MethodPost, "/v1/profiles/u-api-01", answersBody(t, raw))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got domain.ProfileRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	_, err := uuid.Parse(got.EventID)
	require.NoError(t, err, "event id is a uuid")
	assert.Equal(t, "u-api-01", got.UserID)

	answers, err := domain.ParseAnswers(raw)
	require.NoError(t, err)
	want := domain.ClassifyAnswers(answers)
	assert.Equal(t, want.CoreCode, got.Profile.CoreCode)
	assert.Equal(t, want.SubLabels, got.Profile.SubLabels)

	assert.Contains(t, f.profiles.current, "u-api-01")
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ProfilesClassified.WithLabelValues(want.CoreCode)), 0)
}

func TestSubmitAnswers_ValidationErrors(t *testing.T) {
	f := newAPIFixture(false)
	raw := fixtures.Answers()[0].Answers
	raw.QiState = "stasis"
	raw.MeridianTest = ""

	rec := f.do(http.MethodPost, "/v1/profiles/u-api-01", answersBody(t, raw))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	fields := make([]string, 0, len(body.Fields))
	for _, fe := range body.Fields {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"qi_state", "meridian_test"}, fields)
	assert.Empty(t, f.profiles.current)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ValidationFailures), 0)
}

func TestSubmitAnswers_BadJSON(t *testing.T) {
	f := newAPIFixture(false)

	rec := f.do(http.MethodPost, "/v1/profiles/u-api-01", []byte("{nope"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitAnswers_StoreError(t *testing.T) {
	f := newAPIFixture(false)
	f.profiles.err = errors.New("redis down")

	rec := f.do(http.MethodPost, "/v1/profiles/u-api-01", answersBody(t, fixtures.Answers()[0].Answers))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis down")
}

func TestCurrentProfile(t *testing.T) {
	f := newAPIFixture(false)

	rec := f.do(http.MethodGet, "/v1/profiles/u-api-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	created := f.do(http.MethodPost, "/v1/profiles/u-api-01", answersBody(t, fixtures.Answers()[1].Answers))
	require.Equal(t, http.StatusCreated, created.Code)

	rec = f.do(http.MethodGet, "/v1/profiles/u-api-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, created.Body.String(), rec.Body.String())
}

func TestCurrentProfile_StoreError(t *testing.T) {
	f := newAPIFixture(false)
	f.profiles.err = errors.New("timeout")

	rec := f.do(http.MethodGet, "/v1/profiles/u-api-01", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProfileHistory(t *testing.T) {
	f := newAPIFixture(false)
	for _, fx := range fixtures.Answers()[:3] {
		rec := f.do(http.MethodPost, "/v1/profiles/u-api-01", answersBody(t, fx.Answers))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	tests := []struct {
		name     string
		query    string
		status   int
		expected int
	}{
		{"default limit", "", http.StatusOK, 3},
		{"limit two", "?limit=2", http.StatusOK, 2},
		{"zero rejected", "?limit=0", http.StatusBadRequest, 0},
		{"too large rejected", "?limit=101", http.StatusBadRequest, 0},
		{"not a number", "?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/v1/profiles/u-api-01/history"+tt.query, nil)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}
			var body struct {
				UserID  string                 `json:"user_id"`
				Records []domain.ProfileRecord `json:"records"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "u-api-01", body.UserID)
			assert.Len(t, body.Records, tt.expected)
		})
	}
}

func TestProfileHistory_UnknownUserIsEmpty(t *testing.T) {
	f := newAPIFixture(false)

	rec := f.do(http.MethodGet, "/v1/profiles/nobody/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"nobody","records":[]}`, rec.Body.String())
}

func TestGetForecast(t *testing.T) {
	f := newAPIFixture(true)
	stored := domain.Forecast{ID: "f-1", UserID: "u-api-01", Date: "2026-01-15", CoreCode: "steady_standard", Reason: "calm day"}
	require.NoError(t, f.forecasts.SaveForecasts(context.Background(), []domain.Forecast{stored}))

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"found", "/v1/forecasts/u-api-01/2026-01-15", http.StatusOK},
		{"other date", "/v1/forecasts/u-api-01/2026-01-16", http.StatusNotFound},
		{"bad date", "/v1/forecasts/u-api-01/15-01-2026", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.path, nil)
			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				var got domain.Forecast
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, "f-1", got.ID)
				assert.Equal(t, "calm day", got.Reason)
			}
		})
	}
}

func TestGetForecast_StoreDisabled(t *testing.T) {
	f := newAPIFixture(false)

	rec := f.do(http.MethodGet, "/v1/forecasts/u-api-01/2026-01-15", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
