// Package api exposes the webhook subsystem over HTTP: the inbound
// connector endpoint plus a small admin surface for profiles, accounts and
// the dead letter queue.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxpay/webhooks/connector"
	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/inbound"
	"github.com/fluxpay/webhooks/merchant"
)

// Dispatcher processes inbound connector webhooks.
type Dispatcher interface {
	Process(ctx context.Context, req *connector.IncomingRequest, route inbound.Route) (*connector.AckResponse, inbound.Outcome, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the API's collaborators.
type Handler struct {
	dispatcher Dispatcher
	merchants  *merchant.Service
	dlq        *dlq.Service
	pinger     Pinger
}

// NewHandler creates an API handler.
func NewHandler(dispatcher Dispatcher, merchants *merchant.Service, dlqSvc *dlq.Service, pinger Pinger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		merchants:  merchants,
		dlq:        dlqSvc,
		pinger:     pinger,
	}
}

// Router builds the HTTP router.
func (h *Handler) Router() *chi.Mux {
	logger := httplog.NewLogger("webhooks-api", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Connectors send whatever method and body they like; the adapter
		// decides what to do with it.
		r.HandleFunc("/webhooks/{merchant_id}/{connector}", h.receiveWebhook)
		r.HandleFunc("/webhooks/{merchant_id}/{connector}/accounts/{account_id}", h.receiveWebhook)

		r.Put("/merchants/{merchant_id}/profiles/{profile_id}", h.saveProfile)
		r.Post("/merchants/{merchant_id}/profiles/{profile_id}/rotate-secret", h.rotateSecret)
		r.Put("/merchants/{merchant_id}/accounts/{account_id}", h.saveAccount)

		r.Get("/dlq", h.listDLQ)
		r.Post("/dlq/{dlq_id}/replay", h.replayDLQ)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
