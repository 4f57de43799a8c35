package fragment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// Classify maps an arbitrary generation failure to a classified stream
// error. Already-classified stream errors pass through untouched.
// Otherwise a structured JSON error body is preferred over the raw text,
// and the message is matched against known failure signatures. Anything
// unrecognized is surfaced verbatim as generic.
func Classify(err error) *api.APIError {
	if apiErr := (*api.APIError)(nil); errors.As(err, &apiErr) {
		if apiErr.Type == api.ErrorTypeStreamError {
			return apiErr
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewStreamError(api.StreamErrorTimeout, "generation timed out")
	}

	msg := err.Error()
	if structured := structuredMessage(msg); structured != "" {
		msg = structured
	}

	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "rate limit", "too many requests", "429", "quota", "overloaded"):
		return api.NewStreamError(api.StreamErrorRateLimit, msg)
	case containsAny(lower, "unauthorized", "forbidden", "api key", "authentication", "401", "403", "access denied"):
		return api.NewStreamError(api.StreamErrorAuth, msg)
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return api.NewStreamError(api.StreamErrorTimeout, msg)
	case containsAny(lower, "connection refused", "connection reset", "no such host", "network", "unexpected eof", "broken pipe"):
		return api.NewStreamError(api.StreamErrorNetwork, msg)
	default:
		return api.NewStreamError(api.StreamErrorGeneric, msg)
	}
}

// structuredMessage extracts the human-readable message from an error whose
// text embeds a JSON error body, e.g. `{"error":{"message":"..."}}` or
// `{"message":"..."}`.
func structuredMessage(msg string) string {
	start := strings.IndexByte(msg, '{')
	if start < 0 {
		return ""
	}
	raw := msg[start:]

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &nested); err != nil {
		return ""
	}
	if nested.Error.Message != "" {
		return nested.Error.Message
	}
	return nested.Message
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
