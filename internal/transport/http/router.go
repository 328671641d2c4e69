// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/adiadia/concierge/internal/metrics"
	"github.com/adiadia/concierge/internal/pipeline"
	"github.com/adiadia/concierge/internal/recorder"
	"github.com/adiadia/concierge/internal/transport/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type createRequestBody struct {
	Text string `json:"text"`
}

type answerRequestBody struct {
	Text string `json:"text"`
}

type confirmRequestBody struct {
	Approve bool `json:"approve"`
}

// turnResponse is the wire shape of a pipeline turn.
type turnResponse struct {
	RequestID   string                    `json:"request_id"`
	Kind        pipeline.TurnKind         `json:"kind"`
	Status      domain.RequestStatus      `json:"status"`
	Field       string                    `json:"field,omitempty"`
	Question    string                    `json:"question,omitempty"`
	RetryNotice string                    `json:"retry_notice,omitempty"`
	Message     string                    `json:"message,omitempty"`
	Draft       *domain.Draft             `json:"draft,omitempty"`
	Review      *domain.ReviewResult      `json:"review,omitempty"`
	Outcomes    []domain.ExecutionOutcome `json:"outcomes,omitempty"`
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))
	if deps.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimit(deps.RateLimitPerMinute, nil))
	}

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health.Check(r.Context()); err != nil {
				logger.Warn("readiness check failed", "error", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- REQUESTS ----------------

	r.Post("/requests", func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody[createRequestBody](r)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		text := strings.TrimSpace(body.Text)
		if text == "" {
			http.Error(w, "text must not be empty", http.StatusBadRequest)
			return
		}

		session, turn := deps.Pipeline.Begin(r.Context(), text)
		deps.Sessions.Add(session)

		logger.Info("request accepted via API", "request_id", session.ID())
		writeJSON(w, http.StatusOK, toTurnResponse(session, turn))
	})

	r.Get("/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromPath(w, r, deps, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, session.Snapshot())
	})

	r.Post("/requests/{id}/answer", func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromPath(w, r, deps, logger)
		if !ok {
			return
		}

		body, err := decodeBody[answerRequestBody](r)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.Text) == "" {
			http.Error(w, "text must not be empty", http.StatusBadRequest)
			return
		}

		turn := session.Answer(r.Context(), body.Text)
		writeJSON(w, http.StatusOK, toTurnResponse(session, turn))
	})

	r.Post("/requests/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromPath(w, r, deps, logger)
		if !ok {
			return
		}

		body, err := decodeBody[confirmRequestBody](r)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		turn := session.Confirm(r.Context(), body.Approve)
		writeJSON(w, http.StatusOK, toTurnResponse(session, turn))
	})

	r.Post("/requests/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromPath(w, r, deps, logger)
		if !ok {
			return
		}

		turn := session.Cancel(r.Context())
		logger.Info("request canceled via API", "request_id", session.ID())
		writeJSON(w, http.StatusOK, toTurnResponse(session, turn))
	})

	r.Get("/requests/{id}/record", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid request ID", http.StatusBadRequest)
			return
		}

		records, err := deps.History.Recent(r.Context(), recorder.MaxRecords)
		if err != nil {
			logger.Error("load interaction record failed", "error", err)
			http.Error(w, "failed to load record", http.StatusInternalServerError)
			return
		}
		for _, rec := range records {
			if rec.RequestID == id {
				writeJSON(w, http.StatusOK, rec)
				return
			}
		}
		http.Error(w, "no record for request", http.StatusNotFound)
	})

	// ---------------- INTERACTION HISTORY ----------------

	r.Get("/interactions", func(w http.ResponseWriter, r *http.Request) {
		limit := parseLimit(r.URL.Query().Get("limit"), 20)
		records, err := deps.History.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("list interactions failed", "error", err)
			http.Error(w, "failed to list interactions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"interactions": records,
		})
	})

	r.Get("/interactions/search", func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			http.Error(w, "q must not be empty", http.StatusBadRequest)
			return
		}
		limit := parseLimit(r.URL.Query().Get("limit"), 5)

		records, err := deps.History.SearchSimilar(r.Context(), query, limit)
		if err != nil {
			logger.Error("search interactions failed", "error", err)
			http.Error(w, "failed to search interactions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"interactions": records,
		})
	})

	r.Get("/interactions/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.History.Stats(r.Context())
		if err != nil {
			logger.Error("interaction stats failed", "error", err)
			http.Error(w, "failed to compute stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	return r
}

func sessionFromPath(w http.ResponseWriter, r *http.Request, deps Deps, logger *slog.Logger) (*pipeline.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid request ID", http.StatusBadRequest)
		return nil, false
	}

	session, ok := deps.Sessions.Get(id)
	if !ok {
		logger.Warn("request not found", "request_id", id)
		http.Error(w, "request not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func toTurnResponse(s *pipeline.Session, turn pipeline.Turn) turnResponse {
	return turnResponse{
		RequestID:   s.ID().String(),
		Kind:        turn.Kind,
		Status:      turn.Status,
		Field:       turn.Field,
		Question:    turn.Question,
		RetryNotice: turn.RetryNotice,
		Message:     turn.Message,
		Draft:       turn.Draft,
		Review:      turn.Review,
		Outcomes:    turn.Outcomes,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody[T any](r *http.Request) (T, error) {
	var body T
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return body, nil
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return body, nil
		}
		return body, err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return body, errors.New("request body must contain exactly one JSON object")
	}
	return body, nil
}

func parseLimit(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
