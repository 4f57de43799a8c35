package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// mapHTTPError converts a non-2xx backend response into a classified stream
// error. It attempts to parse the body as a chatErrorResponse to extract a
// descriptive message.
func mapHTTPError(resp *http.Response) *api.APIError {
	message := extractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		return api.NewStreamError(api.StreamErrorRateLimit, message)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "backend authentication failed"
		}
		return api.NewStreamError(api.StreamErrorAuth, message)

	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		if message == "" {
			message = "backend request timed out"
		}
		return api.NewStreamError(api.StreamErrorTimeout, message)

	default:
		if message == "" {
			message = fmt.Sprintf("backend error (HTTP %d)", resp.StatusCode)
		}
		return api.NewStreamError(api.StreamErrorGeneric, message)
	}
}

// mapNetworkError converts a network-level error (connection refused, DNS
// resolution failure) into a classified stream error.
func mapNetworkError(err error) *api.APIError {
	return api.NewStreamError(api.StreamErrorNetwork, "backend connection error: "+err.Error())
}

// extractErrorMessage tries to parse the response body as a
// chatErrorResponse and returns the error message if found.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp chatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
