// Package webhook ingests billing events from the external billing
// provider. Requests carry an HS256-signed JWT in the X-Billing-Signature
// header whose claims bind the payload hash; unsigned or tampered
// requests are rejected before the body is interpreted.
package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carries the signed token for a billing delivery.
const SignatureHeader = "X-Billing-Signature"

// maxBodySize caps webhook payloads at 1 MiB.
const maxBodySize = 1 << 20

// BillingEvent is the payload delivered by the billing provider.
type BillingEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"` // e.g. "subscription.updated"
	UserID     string    `json:"user_id"`
	Plan       string    `json:"plan"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink receives verified billing events.
type Sink interface {
	HandleBillingEvent(event BillingEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event BillingEvent) error

func (f SinkFunc) HandleBillingEvent(event BillingEvent) error { return f(event) }

// Handler verifies and dispatches billing webhook deliveries.
type Handler struct {
	secret []byte
	sink   Sink
	logger *slog.Logger
}

// NewHandler creates a webhook handler. The secret is the shared HS256
// signing key configured with the billing provider.
func NewHandler(secret string, sink Sink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{secret: []byte(secret), sink: sink, logger: logger}
}

// ServeHTTP handles POST /webhooks/billing.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":{"type":"invalid_request","message":"method not allowed"}}`, http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, `{"error":{"type":"invalid_request","message":"reading body"}}`, http.StatusBadRequest)
		return
	}

	if err := h.verify(r.Header.Get(SignatureHeader), body); err != nil {
		h.logger.Warn("billing webhook signature rejected",
			"remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, `{"error":{"type":"invalid_request","message":"invalid signature"}}`, http.StatusUnauthorized)
		return
	}

	var event BillingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, `{"error":{"type":"invalid_request","message":"malformed event"}}`, http.StatusBadRequest)
		return
	}
	if event.ID == "" || event.Type == "" {
		http.Error(w, `{"error":{"type":"invalid_request","message":"event id and type are required"}}`, http.StatusBadRequest)
		return
	}

	if h.sink != nil {
		if err := h.sink.HandleBillingEvent(event); err != nil {
			h.logger.Error("billing event handling failed",
				"event_id", event.ID, "event_type", event.Type, "error", err)
			http.Error(w, `{"error":{"type":"server_error","message":"event handling failed"}}`, http.StatusInternalServerError)
			return
		}
	}

	h.logger.Info("billing event received",
		"event_id", event.ID, "event_type", event.Type, "user_id", event.UserID)

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"received":true}`))
}

// verify parses the signature token and checks that its payload-hash claim
// matches the delivered body.
func (h *Handler) verify(tokenStr string, body []byte) error {
	if tokenStr == "" {
		return fmt.Errorf("missing %s header", SignatureHeader)
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid token claims")
	}

	want, _ := claims["body_sha256"].(string)
	if want == "" {
		return fmt.Errorf("token missing body_sha256 claim")
	}

	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != want {
		return fmt.Errorf("payload hash mismatch")
	}
	return nil
}

// Sign builds the signature token for a payload. Exported for tests and
// for the mock billing sender in development.
func Sign(secret string, body []byte) (string, error) {
	sum := sha256.Sum256(body)
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"iat":         time.Now().Unix(),
		"body_sha256": hex.EncodeToString(sum[:]),
	})
	return token.SignedString([]byte(secret))
}
