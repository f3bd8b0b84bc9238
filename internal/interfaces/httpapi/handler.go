package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"pricealert/internal/application/feed"
	"pricealert/internal/application/service"
	"pricealert/internal/domain"
)

const maxBodyBytes = 1 << 20

type handler struct {
	deps Deps
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"` // 秒
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(h.deps.Started).Seconds(),
	})
}

func (h *handler) feeds(w http.ResponseWriter, _ *http.Request) {
	out := []feed.FeedStatus{}
	if h.deps.Feeds != nil {
		out = append(out, h.deps.Feeds.Feeds()...)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createAlert(w http.ResponseWriter, r *http.Request) {
	var in service.CreateAlertInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a, err := h.deps.Alerts.Create(r.Context(), in)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	all, err := h.deps.Alerts.List(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if all == nil {
		all = []domain.AlertCondition{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *handler) getAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.deps.Alerts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) updateAlert(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateAlertInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a, err := h.deps.Alerts.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) deleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Alerts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "alert deleted"})
}

// statusFor 领域错误 -> HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlertTriggered):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAlert),
		errors.Is(err, domain.ErrUnsupportedInstrument),
		errors.Is(err, domain.ErrConditionAlreadyMet):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrQuoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
