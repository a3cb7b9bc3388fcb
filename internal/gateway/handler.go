package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deliverypulse/eventstream/internal/broker"
	"github.com/deliverypulse/eventstream/internal/envelope"
	"github.com/deliverypulse/eventstream/internal/logging"
	"github.com/deliverypulse/eventstream/internal/ratelimit"
	"github.com/deliverypulse/eventstream/internal/snowflake"
	"github.com/deliverypulse/eventstream/internal/sources"
)

// Handler receives webhook deliveries, authenticates the sender and publishes
// the enriched envelope onto the event bus.
type Handler struct {
	registry  *sources.Registry
	publisher broker.Publisher
	ids       *snowflake.Generator
	limiter   ratelimit.RateLimiter
	logger    *logging.Logger
}

// NewHandler wires the gateway's collaborators.
func NewHandler(registry *sources.Registry, publisher broker.Publisher, ids *snowflake.Generator, limiter ratelimit.RateLimiter, logger *logging.Logger) *Handler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	return &Handler{
		registry:  registry,
		publisher: publisher,
		ids:       ids,
		limiter:   limiter,
		logger:    logger,
	}
}

// HandleWebhook is the single inbound operation. Each gate aborts the request
// before any broker interaction; once verification passes the sender always
// sees success, because publish failures are logged rather than surfaced
// (flaky webhook senders retrying against a degraded broker help nobody).
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := sources.Classify(r.Header)
	webhooksReceived.WithLabelValues(source).Inc()

	src, ok := h.registry.Lookup(source)
	if !ok {
		h.reject(w, source, "unauthorized", http.StatusForbidden,
			fmt.Sprintf("Source not authorized: %s", source))
		return
	}

	allowed, err := h.limiter.Allow(ctx, source)
	if err != nil {
		h.logger.WarnContext(ctx, "rate limiter unavailable, allowing request", logging.Error(err))
	} else if !allowed {
		h.reject(w, source, "rate_limited", http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// The credential may travel in a header or a query parameter.
	credential := r.Header.Get(src.SignatureHeader)
	if credential == "" {
		credential = r.URL.Query().Get(src.SignatureHeader)
	}
	if credential == "" {
		h.reject(w, source, "no_signature", http.StatusForbidden,
			"Signature not found in request headers")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.reject(w, source, "body_read", http.StatusBadRequest, "unable to read request body")
		return
	}
	defer r.Body.Close()

	if !src.Verify(credential, body) {
		h.reject(w, source, "bad_signature", http.StatusForbidden,
			"Signature does not match expected signature")
		return
	}

	h.publish(ctx, source, body, sanitizeHeaders(r.Header))

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reject(w http.ResponseWriter, source, reason string, status int, msg string) {
	webhooksRejected.WithLabelValues(source, reason).Inc()
	http.Error(w, msg, status)
}

// publish enriches the payload and performs a single best-effort publish.
// Failures past the verification gates are invisible to the sender by design.
func (h *Handler) publish(ctx context.Context, source string, body []byte, headers map[string]string) {
	payload, err := envelope.Parse(body)
	if err != nil {
		h.logger.WarnContext(ctx, "discarding unparseable payload",
			logging.Source(source), logging.Error(err))
		return
	}

	msgID := h.ids.Next()
	enriched := envelope.Enrich(payload, headers, msgID, time.Now())

	data, err := enriched.Marshal()
	if err != nil {
		publishErrors.Inc()
		h.logger.WarnContext(ctx, "failed to serialize envelope",
			logging.Source(source), logging.Error(err))
		return
	}

	subject := broker.Subject(source)
	h.logger.InfoContext(ctx, "publishing message",
		logging.MsgID(msgID), logging.Subject(subject))

	start := time.Now()
	err = h.publisher.Publish(ctx, subject, data)
	publishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		publishErrors.Inc()
		h.logger.WarnContext(ctx, "publish failed, message dropped",
			logging.MsgID(msgID), logging.Subject(subject), logging.Error(err))
		return
	}

	envelopesPublished.WithLabelValues(source).Inc()
}

// sanitizeHeaders flattens the request headers and strips the gateway's own
// credentials; they must never reach the broker.
func sanitizeHeaders(header http.Header) map[string]string {
	sanitized := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) == 0 {
			continue
		}
		sanitized[name] = values[0]
	}
	delete(sanitized, "Authorization")
	return sanitized
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
