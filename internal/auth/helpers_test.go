package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/waabox/graphctl/internal/domain"
)

const testTenant = "tenant-1"

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	start  time.Time
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &fakeClock{start: t0, now: t0}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) elapsed() time.Duration { return c.now.Sub(c.start) }

type reply struct {
	status int
	body   interface{}
}

// tokenServer serves a fixed device code response and a scripted sequence of token
// responses. The last reply repeats once the script is exhausted.
type tokenServer struct {
	*httptest.Server
	mu     sync.Mutex
	script []reply
	polls  int
	forms  []map[string]string
}

func newTokenServer(t *testing.T, script ...reply) *tokenServer {
	t.Helper()
	ts := &tokenServer{script: script}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/" + testTenant + "/oauth2/v2.0/devicecode":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"device_code":      "dev-abc",
				"user_code":        "ABCD-1234",
				"verification_uri": "https://microsoft.com/devicelogin",
				"message":          "To sign in, use a web browser to open the page https://microsoft.com/devicelogin and enter the code ABCD-1234.",
				"expires_in":       900,
				"interval":         5,
			})
		case "/" + testTenant + "/oauth2/v2.0/token":
			ts.mu.Lock()
			idx := ts.polls
			if idx >= len(ts.script) {
				idx = len(ts.script) - 1
			}
			ts.polls++
			ts.forms = append(ts.forms, map[string]string{
				"client_id":   r.FormValue("client_id"),
				"grant_type":  r.FormValue("grant_type"),
				"device_code": r.FormValue("device_code"),
			})
			rep := ts.script[idx]
			ts.mu.Unlock()
			w.WriteHeader(rep.status)
			json.NewEncoder(w).Encode(rep.body)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) pollCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.polls
}

func pending() reply {
	return reply{status: http.StatusBadRequest, body: map[string]interface{}{
		"error":             "authorization_pending",
		"error_description": "AADSTS70016: OAuth 2.0 device flow error. Authorization is pending.",
		"error_codes":       []int{70016},
	}}
}

func providerError(code, description string) reply {
	return reply{status: http.StatusBadRequest, body: map[string]interface{}{
		"error":             code,
		"error_description": description,
		"timestamp":         "2024-03-01 09:00:10Z",
		"trace_id":          "trace-1",
		"correlation_id":    "corr-1",
	}}
}

func granted(token string) reply {
	return reply{status: http.StatusOK, body: map[string]interface{}{
		"token_type":    "Bearer",
		"scope":         "https://graph.microsoft.com/.default",
		"expires_in":    3599,
		"access_token":  token,
		"refresh_token": "refresh-" + token,
	}}
}

func testCredentials() domain.Credentials {
	return domain.Credentials{ClientID: "app-id", TenantID: testTenant, ClientSecret: "secret"}
}

// recordingObserver captures device-code prompts and poll progress.
type recordingObserver struct {
	sessions []domain.DeviceCodeSession
	polls    []int
	bodies   []string
	// pollsBeforePrompt counts polls that happened before DeviceCode was called.
	pollsBeforePrompt int
}

func (o *recordingObserver) DeviceCode(s domain.DeviceCodeSession) {
	o.sessions = append(o.sessions, s)
}

func (o *recordingObserver) Poll(attempt int, _ int, body []byte, _ time.Duration) {
	if len(o.sessions) == 0 {
		o.pollsBeforePrompt++
	}
	o.polls = append(o.polls, attempt)
	o.bodies = append(o.bodies, string(body))
}
