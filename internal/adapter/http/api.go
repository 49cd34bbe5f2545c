package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
)

const (
	maxBodyBytes = 64 << 10
	maxHistory   = 100
)

// API serves questionnaire intake and stored forecasts.
type API struct {
	profiles  domain.ProfileStore
	forecasts domain.ForecastStore
	metrics   *observability.Metrics
	logger    *slog.Logger
	newID     func() string
}

// NewAPI creates the API handlers. forecasts may be nil when no forecast
// store is configured; the forecast route then answers 503.
func NewAPI(profiles domain.ProfileStore, forecasts domain.ForecastStore, metrics *observability.Metrics, logger *slog.Logger) *API {
	return &API{
		profiles:  profiles,
		forecasts: forecasts,
		metrics:   metrics,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/profiles/{userID}", a.handleSubmitAnswers)
	mux.HandleFunc("GET /v1/profiles/{userID}", a.handleCurrentProfile)
	mux.HandleFunc("GET /v1/profiles/{userID}/history", a.handleProfileHistory)
	mux.HandleFunc("GET /v1/forecasts/{userID}/{date}", a.handleGetForecast)
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

type historyBody struct {
	UserID  string                 `json:"user_id"`
	Records []domain.ProfileRecord `json:"records"`
}

func (a *API) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var raw domain.RawAnswers
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}

	answers, err := domain.ParseAnswers(raw)
	if err != nil {
		a.metrics.ValidationFailures.Inc()
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid answers", Fields: verr.Fields})
			return
		}
		sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}

	rec := domain.NewProfileRecord(a.newID(), userID, answers)
	if err := a.profiles.SaveProfile(r.Context(), rec); err != nil {
		a.logger.Error("save profile failed", "user_id", userID, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "could not save profile"})
		return
	}

	a.metrics.ProfilesClassified.WithLabelValues(rec.Profile.CoreCode).Inc()
	a.logger.Info("profile classified",
		"user_id", userID,
		"event_id", rec.EventID,
		"core_code", rec.Profile.CoreCode,
	)
	sharedobs.WriteJSON(w, http.StatusCreated, rec)
}

func (a *API) handleCurrentProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	rec, err := a.profiles.CurrentProfile(r.Context(), userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		a.logger.Error("load profile failed", "user_id", userID, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "could not load profile"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, rec)
}

func (a *API) handleProfileHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistory {
			sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be between 1 and " + strconv.Itoa(maxHistory)})
			return
		}
		limit = n
	}

	records, err := a.profiles.ProfileHistory(r.Context(), userID, limit)
	if err != nil {
		a.logger.Error("load profile history failed", "user_id", userID, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "could not load history"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, historyBody{UserID: userID, Records: records})
}

func (a *API) handleGetForecast(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	date := r.PathValue("date")

	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "date must be YYYY-MM-DD"})
		return
	}
	if a.forecasts == nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, errorBody{Error: "forecast store disabled"})
		return
	}

	f, err := a.forecasts.GetForecast(r.Context(), userID, date)
	if errors.Is(err, domain.ErrForecastNotFound) {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		a.logger.Error("load forecast failed", "user_id", userID, "date", date, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "could not load forecast"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, f)
}
