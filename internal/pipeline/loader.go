package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
)

// StoreLoader adapts a ForecastStore to the BatchLoader stage.
type StoreLoader struct {
	store domain.ForecastStore
}

func NewStoreLoader(store domain.ForecastStore) *StoreLoader {
	return &StoreLoader{store: store}
}

func (l *StoreLoader) LoadBatch(ctx context.Context, forecasts []domain.Forecast) error {
	if err := l.store.SaveForecasts(ctx, forecasts); err != nil {
		return fmt.Errorf("save forecasts: %w", err)
	}
	return nil
}

// MultiLoader loads each batch into every destination in order and stops at
// the first failure. Offsets are only committed when all destinations succeed,
// so a retried batch may be written twice to the earlier ones; both the store
// upsert and the keyed Kafka message tolerate that.
type MultiLoader []BatchLoader

func (m MultiLoader) LoadBatch(ctx context.Context, forecasts []domain.Forecast) error {
	for _, l := range m {
		if err := l.LoadBatch(ctx, forecasts); err != nil {
			return err
		}
	}
	return nil
}
