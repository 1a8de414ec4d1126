package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/merchant"
)

type profileRequest struct {
	WebhookURL         string            `json:"webhook_url"`
	Secret             string            `json:"secret,omitempty"`
	CustomHeaders      map[string]string `json:"custom_headers,omitempty"`
	DisabledEventTypes []string          `json:"disabled_event_types,omitempty"`
	RetryBudget        int               `json:"retry_budget,omitempty"`
	RateLimit          int               `json:"rate_limit,omitempty"`
	PayloadFormat      string            `json:"payload_format,omitempty"`
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	var in profileRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := h.merchants.SaveProfile(r.Context(), merchant.ProfileInput{
		MerchantID:         chi.URLParam(r, "merchant_id"),
		ProfileID:          chi.URLParam(r, "profile_id"),
		WebhookURL:         in.WebhookURL,
		Secret:             in.Secret,
		CustomHeaders:      in.CustomHeaders,
		DisabledEventTypes: in.DisabledEventTypes,
		RetryBudget:        in.RetryBudget,
		RateLimit:          in.RateLimit,
		PayloadFormat:      in.PayloadFormat,
	})
	if err != nil {
		var verr *merchant.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "save profile failed")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.merchants.RotateSecret(r.Context(),
		chi.URLParam(r, "merchant_id"), chi.URLParam(r, "profile_id"))
	if err != nil {
		if errors.Is(err, merchant.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "rotate secret failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

func (h *Handler) saveAccount(w http.ResponseWriter, r *http.Request) {
	var a merchant.ConnectorAccount
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.MerchantID = chi.URLParam(r, "merchant_id")
	a.AccountID = chi.URLParam(r, "account_id")

	saved, err := h.merchants.SaveAccount(r.Context(), &a)
	if err != nil {
		var verr *merchant.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "save account failed")
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) listDLQ(w http.ResponseWriter, r *http.Request) {
	opts := dlq.ListOpts{
		MerchantID: r.URL.Query().Get("merchant_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	entries, err := h.dlq.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list dlq failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) replayDLQ(w http.ResponseWriter, r *http.Request) {
	dlqID, err := id.ParseDLQID(chi.URLParam(r, "dlq_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dlq id")
		return
	}

	if err := h.dlq.Replay(r.Context(), dlqID); err != nil {
		switch {
		case errors.Is(err, dlq.ErrEntryNotFound):
			writeError(w, http.StatusNotFound, "entry not found")
		case errors.Is(err, dlq.ErrReplayNotConfigured):
			writeError(w, http.StatusNotImplemented, "replay not configured")
		default:
			writeError(w, http.StatusInternalServerError, "replay failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "replayed"})
}
