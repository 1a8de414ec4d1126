package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fluxpay/webhooks/connector"
	"github.com/fluxpay/webhooks/core"
	"github.com/fluxpay/webhooks/inbound"
	"github.com/fluxpay/webhooks/merchant"
)

// maxWebhookBody caps inbound payload reads.
const maxWebhookBody = 1 << 20 // 1MB

// receiveWebhook handles /v1/webhooks/{merchant_id}/{connector} with an
// optional /accounts/{account_id} suffix. Any method is accepted; some
// connectors probe with GET or HEAD before posting.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	route := inbound.Route{
		MerchantID:    chi.URLParam(r, "merchant_id"),
		ConnectorName: chi.URLParam(r, "connector"),
		AccountID:     chi.URLParam(r, "account_id"),
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	req := &connector.IncomingRequest{
		Method:  r.Method,
		URI:     r.URL.RequestURI(),
		Headers: r.Header,
		Query:   r.URL.RawQuery,
		Body:    body,
	}

	ack, _, err := h.dispatcher.Process(r.Context(), req, route)
	if err != nil {
		switch {
		case errors.Is(err, inbound.ErrVerificationFailed):
			writeError(w, http.StatusUnauthorized, "verification failed")
		case errors.Is(err, merchant.ErrAccountNotFound),
			errors.Is(err, connector.ErrNotRegistered):
			writeError(w, http.StatusNotFound, "unknown webhook destination")
		case errors.Is(err, core.ErrNotFound):
			// The referenced object may not exist yet; a non-2xx makes the
			// connector redeliver later.
			writeError(w, http.StatusUnprocessableEntity, "referenced resource not found")
		default:
			writeError(w, http.StatusInternalServerError, "processing failed")
		}
		return
	}

	contentType := ack.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	status := ack.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(ack.Body)
}
