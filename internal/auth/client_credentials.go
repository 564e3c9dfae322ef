package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/waabox/graphctl/internal/domain"
	"github.com/waabox/graphctl/internal/transport"
)

// ClientCredentials implements the OAuth 2.0 client-credentials grant against the
// Microsoft identity platform v2.0 token endpoint.
type ClientCredentials struct {
	authority string
	scope     string
	client    *transport.Client
	settings
}

// NewClientCredentials creates a ClientCredentials.
// Pass an empty authority to use the real identity platform and an empty scope to use DefaultScope.
// doer may be nil, in which case a client with transport.DefaultTimeout is used.
func NewClientCredentials(authority string, scope string, doer transport.Doer, opts ...Option) *ClientCredentials {
	if scope == "" {
		scope = DefaultScope
	}
	c := &ClientCredentials{
		authority: authority,
		scope:     scope,
		client:    transport.NewClient(doer),
		settings:  defaultSettings(),
	}
	for _, opt := range opts {
		opt(&c.settings)
	}
	return c
}

// AcquireToken sends a single token request. It never retries: any status other than
// 200, or a 200 without access_token, is returned as an error.
func (c *ClientCredentials) AcquireToken(ctx context.Context, creds domain.Credentials) (domain.AccessToken, error) {
	data := url.Values{}
	data.Set("client_id", creds.ClientID)
	data.Set("client_secret", creds.ClientSecret)
	data.Set("scope", c.scope)
	data.Set("grant_type", "client_credentials")

	tokenURL := Endpoint(c.authority, creds.TenantID).TokenURL
	c.logger.Debug("requesting client credentials token", "url", tokenURL, "credentials", creds.String())

	resp, err := c.client.PostForm(ctx, tokenURL, data)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("requesting token: %w", err)
	}
	if resp.Status != http.StatusOK {
		return domain.AccessToken{}, fmt.Errorf("authenticating client %s: %w", creds.ClientID, errorFromResponse(resp))
	}

	raw, err := decodeTokenResponse(resp.Body)
	if err != nil {
		return domain.AccessToken{}, err
	}
	if raw.AccessToken == "" {
		return domain.AccessToken{}, fmt.Errorf("%w: token response has no access_token", domain.ErrProtocol)
	}
	c.logger.Debug("token acquired", "token_type", raw.TokenType, "expires_in", raw.ExpiresIn, "length", len(raw.AccessToken))
	return raw.token(), nil
}
