package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/waabox/graphctl/internal/domain"
	"github.com/waabox/graphctl/internal/transport"
)

const (
	deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// defaultInterval is used when the server omits the polling interval.
	defaultInterval = 5

	// slowDownStep is added to the polling interval on every slow_down response.
	slowDownStep = 5 * time.Second
)

// DeviceState is a state of the device-code grant.
type DeviceState int

const (
	// StateInitiated means a device code was issued and no poll has run yet.
	StateInitiated DeviceState = iota
	// StatePolling means the user has not finished; the loop keeps polling.
	StatePolling
	// StateSucceeded means an access token was granted.
	StateSucceeded
	// StateDenied means the user or the tenant declined the request.
	StateDenied
	// StateExpired means the device code deadline passed.
	StateExpired
	// StateFailed means an unrecognized error or a malformed response ended the flow.
	StateFailed
)

// String returns the lower-case state name used in log output.
func (s DeviceState) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateDenied:
		return "denied"
	case StateExpired:
		return "expired"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("DeviceState(%d)", int(s))
	}
}

// DeviceFlow implements the OAuth 2.0 Device Authorization Grant for the Microsoft identity platform.
// See https://learn.microsoft.com/en-us/entra/identity-platform/v2-oauth2-device-code
type DeviceFlow struct {
	authority string
	client    *transport.Client
	settings
}

// NewDeviceFlow creates a DeviceFlow.
// Pass an empty authority to use the real identity platform. Pass a test server URL in tests.
func NewDeviceFlow(authority string, doer transport.Doer, opts ...Option) *DeviceFlow {
	f := &DeviceFlow{
		authority: authority,
		client:    transport.NewClient(doer),
		settings:  defaultSettings(),
	}
	for _, opt := range opts {
		opt(&f.settings)
	}
	return f
}

// Authenticate runs the whole grant: it requests a device code, shows it to the
// observer and polls until the user completes, declines, or the code expires.
// ctx cancellation is checked once per poll iteration.
func (f *DeviceFlow) Authenticate(ctx context.Context, creds domain.Credentials, scope string) (domain.AccessToken, error) {
	session, err := f.RequestCode(ctx, creds, scope)
	if err != nil {
		return domain.AccessToken{}, err
	}
	f.observer.DeviceCode(session)
	return f.PollToken(ctx, creds, session)
}

// RequestCode requests a device code and user code. Any failure is fatal since there
// is no session to poll.
func (f *DeviceFlow) RequestCode(ctx context.Context, creds domain.Credentials, scope string) (domain.DeviceCodeSession, error) {
	if scope == "" {
		scope = DefaultScope
	}
	data := url.Values{}
	data.Set("client_id", creds.ClientID)
	data.Set("scope", scope)

	issuedAt := f.clock.Now()
	resp, err := f.client.PostForm(ctx, Endpoint(f.authority, creds.TenantID).DeviceAuthURL, data)
	if err != nil {
		return domain.DeviceCodeSession{}, fmt.Errorf("requesting device code: %w", err)
	}
	if !resp.OK() {
		return domain.DeviceCodeSession{}, fmt.Errorf("requesting device code: %w", errorFromResponse(resp))
	}

	var raw struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		Message         string `json:"message"`
		ExpiresIn       int    `json:"expires_in"`
		Interval        int    `json:"interval"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return domain.DeviceCodeSession{}, fmt.Errorf("%w: decoding device code response: %w", domain.ErrProtocol, err)
	}
	switch {
	case raw.DeviceCode == "":
		return domain.DeviceCodeSession{}, fmt.Errorf("%w: device code response has no device_code", domain.ErrProtocol)
	case raw.UserCode == "":
		return domain.DeviceCodeSession{}, fmt.Errorf("%w: device code response has no user_code", domain.ErrProtocol)
	case raw.VerificationURI == "":
		return domain.DeviceCodeSession{}, fmt.Errorf("%w: device code response has no verification_uri", domain.ErrProtocol)
	case raw.ExpiresIn <= 0:
		return domain.DeviceCodeSession{}, fmt.Errorf("%w: device code response has invalid expires_in %d", domain.ErrProtocol, raw.ExpiresIn)
	}
	if raw.Interval <= 0 {
		raw.Interval = defaultInterval
	}

	session := domain.DeviceCodeSession{
		DeviceCode:      raw.DeviceCode,
		UserCode:        raw.UserCode,
		VerificationURI: raw.VerificationURI,
		Message:         raw.Message,
		ExpiresIn:       raw.ExpiresIn,
		Interval:        raw.Interval,
		IssuedAt:        issuedAt,
	}
	f.logger.Debug("device code issued",
		"user_code", session.UserCode,
		"expires_in", session.ExpiresIn,
		"interval", session.Interval,
		"state", StateInitiated)
	return session, nil
}

// pollState is owned by a single PollToken call.
type pollState struct {
	state    DeviceState
	interval time.Duration
	floor    time.Duration
	deadline time.Time
}

// advance applies one token endpoint response. done reports whether the loop must stop.
func (s *pollState) advance(status int, raw tokenResponse) (tok domain.AccessToken, done bool, err error) {
	if raw.AccessToken != "" {
		s.state = StateSucceeded
		return raw.token(), true, nil
	}
	if raw.Error == "" {
		s.state = StateFailed
		return domain.AccessToken{}, true, fmt.Errorf("%w: token response (status %d) has neither access_token nor error", domain.ErrProtocol, status)
	}

	switch domain.ParseErrorCode(raw.Error) {
	case domain.CodeAuthorizationPending:
		return domain.AccessToken{}, false, nil
	case domain.CodeSlowDown:
		s.interval += slowDownStep
		return domain.AccessToken{}, false, nil
	}

	apiErr := domain.NewAPIError(status, raw.detail())
	switch apiErr.Kind {
	case domain.ErrAuthorizationDenied:
		s.state = StateDenied
	case domain.ErrSessionExpired:
		s.state = StateExpired
	default:
		s.state = StateFailed
	}
	return domain.AccessToken{}, true, apiErr
}

// PollToken polls the token endpoint until an access token is granted, the user
// declines, or the session deadline would be reached. The interval starts at the
// session's interval and only ever grows. It is never derived from expires_in.
func (f *DeviceFlow) PollToken(ctx context.Context, creds domain.Credentials, session domain.DeviceCodeSession) (domain.AccessToken, error) {
	floor := session.MinInterval()
	if floor <= 0 {
		floor = defaultInterval * time.Second
	}
	st := &pollState{
		state:    StatePolling,
		interval: floor,
		floor:    floor,
		deadline: session.Deadline(),
	}
	tokenURL := Endpoint(f.authority, creds.TenantID).TokenURL

	for attempt := 1; ; attempt++ {
		if st.interval < st.floor {
			st.interval = st.floor
		}
		if !f.clock.Now().Add(st.interval).Before(st.deadline) {
			st.state = StateExpired
			return domain.AccessToken{}, f.expired(session)
		}
		if err := f.clock.Sleep(ctx, st.interval); err != nil {
			return domain.AccessToken{}, fmt.Errorf("waiting for authorization: %w", err)
		}
		if !f.clock.Now().Before(st.deadline) {
			st.state = StateExpired
			return domain.AccessToken{}, f.expired(session)
		}

		data := url.Values{}
		data.Set("client_id", creds.ClientID)
		data.Set("grant_type", deviceCodeGrantType)
		data.Set("device_code", session.DeviceCode)

		resp, err := f.client.PostForm(ctx, tokenURL, data)
		if err != nil {
			return domain.AccessToken{}, fmt.Errorf("polling token: %w", err)
		}

		raw, decodeErr := decodeTokenResponse(resp.Body)
		if decodeErr != nil {
			f.observer.Poll(attempt, resp.Status, resp.Body, 0)
			return domain.AccessToken{}, decodeErr
		}

		tok, done, err := st.advance(resp.Status, raw)
		next := st.interval
		if done {
			next = 0
		}
		f.observer.Poll(attempt, resp.Status, resp.Body, next)
		f.logger.Debug("device code poll",
			"attempt", attempt,
			"status", resp.Status,
			"error", raw.Error,
			"state", st.state,
			"next_interval", next)
		if done {
			return tok, err
		}
	}
}

func (f *DeviceFlow) expired(session domain.DeviceCodeSession) error {
	return fmt.Errorf("%w: code %s was not used within %d seconds", domain.ErrSessionExpired, session.UserCode, session.ExpiresIn)
}
