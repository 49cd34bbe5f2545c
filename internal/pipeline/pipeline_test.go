package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/observability"
	"github.com/couchcryptid/constitution-forecast-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	mu     sync.Mutex
	events []domain.RawEvent
	err    error
	calls  int
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	m.calls++
	if m.err != nil {
		err := m.err
		m.err = nil
		m.mu.Unlock()
		return nil, err
	}
	if len(m.events) > 0 {
		n := min(batchSize, len(m.events))
		batch := m.events[:n]
		m.events = m.events[n:]
		m.mu.Unlock()
		return batch, nil
	}
	m.mu.Unlock()

	// block until context cancelled to simulate waiting for messages
	<-ctx.Done()
	return nil, ctx.Err()
}

// cancellingExtractor fails its first read while shutting the pipeline down.
type cancellingExtractor struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingExtractor) ExtractBatch(context.Context, int) ([]domain.RawEvent, error) {
	c.calls++
	c.cancel()
	return nil, errors.New("reader closed")
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Forecast, error) {
	if m.err != nil {
		return domain.Forecast{}, m.err
	}
	return domain.Forecast{
		ID:         string(raw.Key),
		Assessment: domain.RiskAssessment{Level: domain.LevelCaution, LevelLabel: "caution"},
	}, nil
}

type funcTransformer func(raw domain.RawEvent) (domain.Forecast, error)

func (f funcTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Forecast, error) {
	return f(raw)
}

type mockLoader struct {
	mu      sync.Mutex
	loaded  []domain.Forecast
	failFor int
}

func (m *mockLoader) LoadBatch(_ context.Context, forecasts []domain.Forecast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor > 0 {
		m.failFor--
		return errors.New("sink unavailable")
	}
	m.loaded = append(m.loaded, forecasts...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

type memProfileStore struct {
	records map[string]domain.ProfileRecord
	err     error
}

func (s *memProfileStore) SaveProfile(_ context.Context, rec domain.ProfileRecord) error {
	s.records[rec.UserID] = rec
	return nil
}

func (s *memProfileStore) CurrentProfile(_ context.Context, userID string) (domain.ProfileRecord, error) {
	if s.err != nil {
		return domain.ProfileRecord{}, s.err
	}
	rec, ok := s.records[userID]
	if !ok {
		return domain.ProfileRecord{}, domain.ErrProfileNotFound
	}
	return rec, nil
}

func (s *memProfileStore) ProfileHistory(_ context.Context, userID string, _ int) ([]domain.ProfileRecord, error) {
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return []domain.ProfileRecord{rec}, nil
}

type stubWeather struct {
	series domain.HourlySeries
	err    error
	calls  int
}

func (s *stubWeather) HourlySeries(_ context.Context, _, _ float64, _ time.Time) (domain.HourlySeries, error) {
	s.calls++
	return s.series, s.err
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// --- pipeline tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{events: []domain.RawEvent{makeRawEvent("fc-1"), makeRawEvent("fc-2"), makeRawEvent("fc-3")}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 3)
	assert.Equal(t, "fc-3", ldr.loaded[2].ID)
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.InDelta(t, 3, testutil.ToFloat64(metrics.RequestsConsumed), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.ForecastsProduced), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.ForecastsByLevel.WithLabelValues("caution")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no events; blocks
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	committed := false
	raw := makeRawEvent("fc-bad")
	raw.Commit = func(context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: domain.ErrProfileNotFound}, ldr, slog.Default(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.True(t, committed)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits []int64
	var mu sync.Mutex
	events := make([]domain.RawEvent, 0, 3)
	for i := range 3 {
		raw := makeRawEvent("fc")
		raw.Topic = "forecast-requests"
		raw.Offset = int64(i)
		raw.Commit = func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			commits = append(commits, raw.Offset)
			return nil
		}
		events = append(events, raw)
	}

	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{events: events}, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{0, 1, 2}, commits)
}

func TestPipeline_Run_LoadFailureRetriesWithoutCommit(t *testing.T) {
	commits := 0
	raw := makeRawEvent("fc-1")
	raw.Commit = func(context.Context) error {
		commits++
		return nil
	}

	ldr := &mockLoader{failFor: 1}
	p := pipeline.New(&mockExtractor{events: []domain.RawEvent{raw}}, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 0, ldr.count(), "the batch is dropped from memory and redelivered by the broker")
	assert.Equal(t, 0, commits)
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{
		events: []domain.RawEvent{makeRawEvent("fc-1")},
		err:    errors.New("broker unavailable"),
	}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 1, ldr.count())
}

func TestPipeline_Run_RecordsForecastOutcomes(t *testing.T) {
	outcomes := map[string]domain.Forecast{
		"fc-1": {Assessment: domain.RiskAssessment{LevelLabel: "stable"}},
		"fc-2": {Assessment: domain.RiskAssessment{LevelLabel: "alert"}, Degraded: true},
		"fc-3": {Assessment: domain.RiskAssessment{LevelLabel: "alert"}},
		"fc-4": {Assessment: domain.RiskAssessment{LevelLabel: "stable"}, Degraded: true},
	}
	tfm := funcTransformer(func(raw domain.RawEvent) (domain.Forecast, error) {
		f, ok := outcomes[string(raw.Key)]
		if !ok {
			return domain.Forecast{}, domain.ErrProfileNotFound
		}
		f.ID = string(raw.Key)
		return f, nil
	})

	events := []domain.RawEvent{makeRawEvent("fc-1"), makeRawEvent("fc-2"), makeRawEvent("fc-x"), makeRawEvent("fc-3"), makeRawEvent("fc-4")}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{events: events}, tfm, ldr, slog.Default(), metrics, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Equal(t, 4, ldr.count())
	assert.InDelta(t, 5, testutil.ToFloat64(metrics.RequestsConsumed), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.ForecastsProduced), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ForecastsByLevel.WithLabelValues("stable")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ForecastsByLevel.WithLabelValues("alert")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.DegradedForecasts), 0)
}

func TestPipeline_Run_SourceErrorAfterShutdownStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ext := &cancellingExtractor{cancel: cancel}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline kept retrying after shutdown")
	}
	assert.Equal(t, 1, ext.calls)
}

// --- loader tests ---

type recordingStore struct {
	saved [][]domain.Forecast
	err   error
}

func (s *recordingStore) SaveForecasts(_ context.Context, forecasts []domain.Forecast) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, forecasts)
	return nil
}

func (s *recordingStore) GetForecast(context.Context, string, string) (domain.Forecast, error) {
	return domain.Forecast{}, domain.ErrForecastNotFound
}

func TestMultiLoader(t *testing.T) {
	batch := []domain.Forecast{{ID: "fc-1"}, {ID: "fc-2"}}

	t.Run("loads into every destination", func(t *testing.T) {
		store := &recordingStore{}
		sink := &mockLoader{}
		ml := pipeline.MultiLoader{pipeline.NewStoreLoader(store), sink}

		require.NoError(t, ml.LoadBatch(context.Background(), batch))
		require.Len(t, store.saved, 1)
		assert.Equal(t, batch, store.saved[0])
		assert.Equal(t, batch, sink.loaded)
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		store := &recordingStore{err: errors.New("connection refused")}
		sink := &mockLoader{}
		ml := pipeline.MultiLoader{pipeline.NewStoreLoader(store), sink}

		err := ml.LoadBatch(context.Background(), batch)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save forecasts")
		assert.Empty(t, sink.loaded)
	})
}

// --- transformer tests ---

func TestForecastTransformer_Transform(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	store := &memProfileStore{records: map[string]domain.ProfileRecord{"u1": coldProfileRecord(t)}}
	weather := &stubWeather{series: coldSnapSeries()}
	tfm := pipeline.NewTransformer(store, weather, slog.Default())

	out, err := tfm.Transform(context.Background(), makeRequestEvent(t, domain.ForecastRequest{
		UserID: "u1",
		Date:   "2026-03-02",
		Lat:    domain.Float(43.06),
		Lon:    domain.Float(141.35),
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, weather.calls)
	assert.Equal(t, "u1", out.UserID)
	assert.Equal(t, "evt-u1", out.ProfileEventID)
	assert.False(t, out.Degraded)
	assert.Equal(t, domain.SixinScores{Wind: 1, Cold: 3}, out.Scores)
	assert.Equal(t, []domain.Factor{domain.FactorCold}, out.TopFactors)
	assert.NotEmpty(t, out.Reason)
}

func TestForecastTransformer_EmbeddedSeriesSkipsProvider(t *testing.T) {
	store := &memProfileStore{records: map[string]domain.ProfileRecord{"u1": coldProfileRecord(t)}}
	weather := &stubWeather{err: errors.New("should not be called")}
	tfm := pipeline.NewTransformer(store, weather, slog.Default())

	out, err := tfm.Transform(context.Background(), makeRequestEvent(t, domain.ForecastRequest{
		UserID: "u1",
		Date:   "2026-03-02",
		Hourly: coldSnapSeries(),
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, weather.calls)
	assert.False(t, out.Degraded)
}

func TestForecastTransformer_DayOnlySeriesDegrades(t *testing.T) {
	store := &memProfileStore{records: map[string]domain.ProfileRecord{"u1": coldProfileRecord(t)}}
	tfm := pipeline.NewTransformer(store, nil, slog.Default())

	out, err := tfm.Transform(context.Background(), makeRequestEvent(t, domain.ForecastRequest{
		UserID: "u1",
		Date:   "2026-03-02",
		Hourly: coldSnapSeries()[24:],
	}))
	require.NoError(t, err)
	assert.True(t, out.Degraded)
	assert.Equal(t, 0, out.Scores.Wind)
}

func TestForecastTransformer_ProviderFailureDegrades(t *testing.T) {
	store := &memProfileStore{records: map[string]domain.ProfileRecord{"u1": coldProfileRecord(t)}}
	tfm := pipeline.NewTransformer(store, &stubWeather{err: errors.New("timeout")}, slog.Default())

	out, err := tfm.Transform(context.Background(), makeRequestEvent(t, sapporoRequest("u1")))
	require.NoError(t, err)
	assert.True(t, out.Degraded)
	assert.Empty(t, out.Windows)
}

func TestForecastTransformer_Errors(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		tfm := pipeline.NewTransformer(&memProfileStore{records: map[string]domain.ProfileRecord{}}, nil, slog.Default())
		_, err := tfm.Transform(context.Background(), makeRequestEvent(t, sapporoRequest("ghost")))
		require.ErrorIs(t, err, domain.ErrProfileNotFound)
		assert.Contains(t, err.Error(), "ghost")
	})

	t.Run("store failure", func(t *testing.T) {
		tfm := pipeline.NewTransformer(&memProfileStore{err: errors.New("redis down")}, nil, slog.Default())
		_, err := tfm.Transform(context.Background(), makeRequestEvent(t, sapporoRequest("u1")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis down")
	})

	t.Run("malformed request", func(t *testing.T) {
		tfm := pipeline.NewTransformer(&memProfileStore{records: map[string]domain.ProfileRecord{}}, nil, slog.Default())
		_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse forecast request")
	})
}

func TestForecastTransformer_Deterministic(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	store := &memProfileStore{records: map[string]domain.ProfileRecord{"u1": coldProfileRecord(t)}}
	tfm := pipeline.NewTransformer(store, nil, slog.Default())
	raw := makeRequestEvent(t, domain.ForecastRequest{UserID: "u1", Date: "2026-03-02", Hourly: coldSnapSeries()})

	first, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	second, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("forecast mismatch (-first +second):\n%s", diff)
	}
}

// --- helpers ---

func sapporoRequest(userID string) domain.ForecastRequest {
	return domain.ForecastRequest{
		UserID: userID,
		Date:   "2026-03-02",
		Lat:    domain.Float(43.06),
		Lon:    domain.Float(141.35),
	}
}

func makeRawEvent(key string) domain.RawEvent {
	return domain.RawEvent{Key: []byte(key), Value: []byte(`{}`)}
}

func makeRequestEvent(t *testing.T, req domain.ForecastRequest) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return domain.RawEvent{Key: []byte(req.UserID), Value: data, Topic: "forecast-requests"}
}

func coldProfileRecord(t *testing.T) domain.ProfileRecord {
	t.Helper()
	answers, err := domain.ParseAnswers(domain.RawAnswers{
		SymptomFocus: "fatigue",
		QiState:      "deficiency",
		BloodState:   "balanced",
		FluidState:   "balanced",
		ColdHeat:     "cold",
		Resilience:   "low",
		MeridianTest: "A",
		EnvVectors:   []string{"cold"},
	})
	require.NoError(t, err)
	return domain.NewProfileRecord("evt-u1", "u1", answers)
}

// coldSnapSeries drops from 8 to 2 degrees at 06:00 on 2026-03-02.
func coldSnapSeries() domain.HourlySeries {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.HourlySeries, 48)
	for i := range series {
		temp := 8.0
		if i >= 30 {
			temp = 2.0
		}
		series[i] = domain.HourlyPoint{
			Time:        start.Add(time.Duration(i) * time.Hour),
			Temperature: domain.Float(temp),
			Humidity:    domain.Float(55),
			Pressure:    domain.Float(1012),
		}
	}
	return series
}
