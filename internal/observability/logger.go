package observability

import (
	"log/slog"

	"github.com/couchcryptid/constitution-forecast-service/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "constitution-forecast")
	slog.SetDefault(logger)
	return logger
}
