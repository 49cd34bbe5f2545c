package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const (
	minRetryDelay = 200 * time.Millisecond
	maxRetryDelay = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a raw forecast request into a computed forecast.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Forecast, error)
}

// BatchLoader writes multiple forecasts to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, forecasts []domain.Forecast) error
}

// Pipeline consumes forecast requests in batches, computes forecasts and
// hands them to the loader. Offsets are committed only once a request's
// forecast is stored or the request is known to be unprocessable.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness reports ready once the first forecast has been loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any requests yet")
	}
	return nil
}

// Run processes batches until the context is cancelled. Source and sink
// failures are retried with capped exponential backoff; Run itself only
// returns on shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := retryDelay{next: minRetryDelay}
	for ctx.Err() == nil {
		if !p.runCycle(ctx, &delay) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// runCycle handles one batch of requests. It returns false when the context
// ends while waiting on the source or a retry.
func (p *Pipeline) runCycle(ctx context.Context, delay *retryDelay) bool {
	start := time.Now()

	requests, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return delay.wait(ctx)
	}
	if len(requests) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.RequestsConsumed.Add(float64(len(requests)))
	p.metrics.BatchSize.Observe(float64(len(requests)))
	delay.reset()

	forecasts, computed := p.computeForecasts(ctx, requests)
	if len(forecasts) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, forecasts); err != nil {
		// Uncommitted requests are redelivered after the consumer rejoins.
		p.logger.Error("load batch failed", "error", err, "batch_size", len(forecasts))
		return delay.wait(ctx)
	}

	p.recordForecasts(forecasts)
	for _, raw := range computed {
		p.commit(ctx, raw)
	}
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// computeForecasts transforms every request in the batch. Requests that fail
// are committed straight away so a malformed message or unknown user cannot
// block its partition. The second return holds the requests behind each
// forecast, in the same order.
func (p *Pipeline) computeForecasts(ctx context.Context, requests []domain.RawEvent) ([]domain.Forecast, []domain.RawEvent) {
	forecasts := make([]domain.Forecast, 0, len(requests))
	computed := make([]domain.RawEvent, 0, len(requests))

	for _, raw := range requests {
		f, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("skipping forecast request",
				"error", err,
				"key", string(raw.Key),
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		forecasts = append(forecasts, f)
		computed = append(computed, raw)
	}
	return forecasts, computed
}

// recordForecasts updates outcome metrics for a stored batch.
func (p *Pipeline) recordForecasts(forecasts []domain.Forecast) {
	p.metrics.ForecastsProduced.Add(float64(len(forecasts)))

	degraded := 0
	byLevel := make(map[string]int, 3)
	for _, f := range forecasts {
		byLevel[f.Assessment.LevelLabel]++
		if f.Degraded {
			degraded++
		}
	}
	for level, n := range byLevel {
		p.metrics.ForecastsByLevel.WithLabelValues(level).Add(float64(n))
	}
	p.metrics.DegradedForecasts.Add(float64(degraded))
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// retryDelay doubles from minRetryDelay up to maxRetryDelay and is reset by
// the first successful read.
type retryDelay struct {
	next time.Duration
}

func (d *retryDelay) reset() { d.next = minRetryDelay }

// wait sleeps for the current delay and advances it. It returns false if the
// context ends first.
func (d *retryDelay) wait(ctx context.Context) bool {
	if !retry.SleepWithContext(ctx, d.next) {
		return false
	}
	d.next = retry.NextBackoff(d.next, maxRetryDelay)
	return true
}
