package apikey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fragmentd/fragmentd/pkg/auth"
)

func newAuthenticator() *Authenticator {
	return New([]RawKeyEntry{
		{Key: "sk-alice-123", Identity: auth.Identity{UserID: "alice"}},
		{Key: "sk-bob-456", Identity: auth.Identity{UserID: "bob"}},
	})
}

func bearerRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/files", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthenticate(t *testing.T) {
	a := newAuthenticator()

	tests := []struct {
		name     string
		request  *http.Request
		decision auth.Decision
		userID   string
	}{
		{"valid key", bearerRequest("sk-alice-123"), auth.Yes, "alice"},
		{"second key", bearerRequest("sk-bob-456"), auth.Yes, "bob"},
		{"unknown key", bearerRequest("sk-mallory"), auth.No, ""},
		{"no header", bearerRequest(""), auth.Abstain, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.Authenticate(context.Background(), tt.request)
			if result.Decision != tt.decision {
				t.Fatalf("decision = %v, want %v", result.Decision, tt.decision)
			}
			if tt.userID != "" && result.Identity.UserID != tt.userID {
				t.Errorf("user = %q, want %q", result.Identity.UserID, tt.userID)
			}
		})
	}
}

func TestAuthenticate_NonBearerAbstains(t *testing.T) {
	a := newAuthenticator()

	r := httptest.NewRequest(http.MethodGet, "/files", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	if result := a.Authenticate(context.Background(), r); result.Decision != auth.Abstain {
		t.Errorf("decision = %v, want Abstain for non-bearer credentials", result.Decision)
	}
}

func TestAuthenticate_EmptyBearerRejected(t *testing.T) {
	a := newAuthenticator()

	r := httptest.NewRequest(http.MethodGet, "/files", nil)
	r.Header.Set("Authorization", "Bearer ")

	if result := a.Authenticate(context.Background(), r); result.Decision != auth.No {
		t.Errorf("decision = %v, want No for empty bearer token", result.Decision)
	}
}
