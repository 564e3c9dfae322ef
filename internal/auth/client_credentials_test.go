package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waabox/graphctl/internal/auth"
	"github.com/waabox/graphctl/internal/domain"
)

func TestClientCredentials_AcquireToken_ReturnsAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tenant-1/oauth2/v2.0/token" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, "app-id", r.FormValue("client_id"))
		assert.Equal(t, "secret", r.FormValue("client_secret"))
		assert.Equal(t, "https://graph.microsoft.com/.default", r.FormValue("scope"))
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token_type":     "Bearer",
			"expires_in":     3599,
			"ext_expires_in": 3599,
			"access_token":   "eyJ0eXAi.token",
		})
	}))
	defer server.Close()

	cc := auth.NewClientCredentials(server.URL, "", server.Client())
	tok, err := cc.AcquireToken(context.Background(), testCredentials())
	require.NoError(t, err)

	assert.Equal(t, "eyJ0eXAi.token", tok.Token)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, 3599, tok.ExpiresIn)
}

func TestClientCredentials_AcquireToken_ErrorStatusesNeverReturnToken(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		wantKind error
	}{
		{"invalid client secret", http.StatusUnauthorized, "invalid_client", domain.ErrAPI},
		{"bad request", http.StatusBadRequest, "invalid_request", domain.ErrAPI},
		{"unauthorized client", http.StatusBadRequest, "unauthorized_client", domain.ErrAPI},
		{"unknown code", http.StatusInternalServerError, "temporarily_unavailable", domain.ErrAPI},
		{"access denied", http.StatusForbidden, "access_denied", domain.ErrAuthorizationDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":             tt.code,
					"error_description": "AADSTS7000215: Invalid client secret provided.",
					"timestamp":         "2024-03-01 09:00:00Z",
					"trace_id":          "trace-9",
					"correlation_id":    "corr-9",
					// a token next to an error must still be ignored
					"access_token": "should-not-be-used",
				})
			}))
			defer server.Close()

			cc := auth.NewClientCredentials(server.URL, "", server.Client())
			tok, err := cc.AcquireToken(context.Background(), testCredentials())

			require.Error(t, err)
			assert.Empty(t, tok.Token)
			assert.ErrorIs(t, err, tt.wantKind)

			var apiErr *domain.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Detail.Code)
			assert.Equal(t, "AADSTS7000215: Invalid client secret provided.", apiErr.Detail.Message)
			assert.Equal(t, "corr-9", apiErr.Detail.Inner.RequestID)
			assert.Equal(t, "2024-03-01 09:00:00Z", apiErr.Detail.Inner.Date)
		})
	}
}

func TestClientCredentials_AcquireToken_MissingAccessTokenIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"token_type":"Bearer","expires_in":3599}`)
	}))
	defer server.Close()

	cc := auth.NewClientCredentials(server.URL, "", server.Client())
	_, err := cc.AcquireToken(context.Background(), testCredentials())

	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestClientCredentials_AcquireToken_MalformedBodyIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>gateway</html>`)
	}))
	defer server.Close()

	cc := auth.NewClientCredentials(server.URL, "", server.Client())
	_, err := cc.AcquireToken(context.Background(), testCredentials())

	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestClientCredentials_AcquireToken_ErrorStatusWithoutEnvelopeIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cc := auth.NewClientCredentials(server.URL, "", server.Client())
	_, err := cc.AcquireToken(context.Background(), testCredentials())

	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Contains(t, err.Error(), "502")
}

func TestClientCredentials_AcquireToken_UsesConfiguredScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, "api://custom/.default", r.FormValue("scope"))
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	}))
	defer server.Close()

	cc := auth.NewClientCredentials(server.URL, "api://custom/.default", server.Client())
	_, err := cc.AcquireToken(context.Background(), testCredentials())
	require.NoError(t, err)
}

func TestClientCredentials_AcquireToken_TransportErrorIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	url := server.URL
	server.Close()

	cc := auth.NewClientCredentials(url, "", nil)
	_, err := cc.AcquireToken(context.Background(), testCredentials())

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, 0, calls)
}

func TestEndpoint_DefaultAuthority(t *testing.T) {
	ep := auth.Endpoint("", "contoso")

	assert.Equal(t, "https://login.microsoftonline.com/contoso/oauth2/v2.0/token", ep.TokenURL)
	assert.Equal(t, "https://login.microsoftonline.com/contoso/oauth2/v2.0/devicecode", ep.DeviceAuthURL)
}

func TestEndpoint_CustomAuthority(t *testing.T) {
	ep := auth.Endpoint("https://login.example.test/", "contoso")

	assert.Equal(t, "https://login.example.test/contoso/oauth2/v2.0/token", ep.TokenURL)
	assert.Equal(t, "https://login.example.test/contoso/oauth2/v2.0/devicecode", ep.DeviceAuthURL)
}
