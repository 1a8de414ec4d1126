package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/signature"
)

const maxResponseBody = 1024 // 1KB cap on response body storage

// DefaultTimeout bounds one delivery request end to end.
const DefaultTimeout = 5 * time.Second

// Result captures the outcome of one delivery request.
type Result struct {
	StatusCode int
	Headers    map[string]string
	Response   string
	Error      string
	LatencyMs  int
}

// Success reports whether the merchant acknowledged the delivery. Any 2xx
// counts.
func (r Result) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender performs HTTP webhook delivery.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given HTTP timeout.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sender{
		client: &http.Client{Timeout: timeout},
	}
}

// Send replays a request snapshot to the profile's webhook URL. The
// snapshot carries the signed headers and body frozen at event creation,
// so every attempt of a cycle sends identical bytes.
func (s *Sender) Send(ctx context.Context, url string, evt *event.Event, snap *event.RequestSnapshot, p *merchant.Profile) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(snap.Body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	// Frozen headers: content type, signature, timestamp.
	for k, v := range snap.Headers {
		req.Header.Set(k, v)
	}

	req.Header.Set("User-Agent", "Fluxpay-Webhooks/1.0")
	req.Header.Set(signature.HeaderEventID, evt.ID.String())
	req.Header.Set(signature.HeaderEventType, string(evt.Type))

	for k, v := range p.CustomHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a merchant-configured webhook destination; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Headers:    headers,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Response:   string(respBody),
		LatencyMs:  int(latency),
	}
}
