// Package graph reads directory users from Microsoft Graph.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waabox/graphctl/internal/domain"
	"github.com/waabox/graphctl/internal/transport"
)

// DefaultBaseURL is the Microsoft Graph host.
const DefaultBaseURL = "https://graph.microsoft.com"

const usersPath = "/v1.0/users?$select=id,displayName"

// Client calls the Microsoft Graph users endpoint with a bearer token.
type Client struct {
	baseURL string
	client  *transport.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient creates a Graph client.
// baseURL is used for testing; pass empty string to use the real Graph API.
// doer and logger may be nil.
func NewClient(baseURL string, doer transport.Doer, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  transport.NewClient(doer),
		logger:  logger,
		now:     time.Now,
	}
}

// usersPage is the raw Graph collection envelope.
type usersPage struct {
	Value    []domain.UserSummary `json:"value"`
	NextLink string               `json:"@odata.nextLink"`
}

// errorEnvelope is the raw Graph error shape.
type errorEnvelope struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		InnerError struct {
			Date            string `json:"date"`
			RequestID       string `json:"request-id"`
			ClientRequestID string `json:"client-request-id"`
		} `json:"innerError"`
	} `json:"error"`
}

// FetchUsers returns the first page of users exactly as Graph ordered them.
func (c *Client) FetchUsers(ctx context.Context, token domain.AccessToken) ([]domain.UserSummary, error) {
	page, err := c.fetchPage(ctx, token, c.baseURL+usersPath)
	if err != nil {
		return nil, err
	}
	return page.Value, nil
}

// FetchAllUsers follows @odata.nextLink until the collection is exhausted,
// appending pages in the order they were served. A link that leaves the base
// URL's scheme and host, or that revisits a page, is a protocol error.
func (c *Client) FetchAllUsers(ctx context.Context, token domain.AccessToken) ([]domain.UserSummary, error) {
	var users []domain.UserSummary
	visited := make(map[string]struct{})
	next := c.baseURL + usersPath
	for next != "" {
		visited[next] = struct{}{}
		page, err := c.fetchPage(ctx, token, next)
		if err != nil {
			return nil, err
		}
		users = append(users, page.Value...)
		if page.NextLink == "" {
			break
		}
		if err := c.checkNextLink(page.NextLink); err != nil {
			return nil, err
		}
		if _, seen := visited[page.NextLink]; seen {
			return nil, fmt.Errorf("%w: @odata.nextLink revisits %s", domain.ErrProtocol, page.NextLink)
		}
		next = page.NextLink
	}
	return users, nil
}

// checkNextLink rejects links the bearer token must not be sent to.
func (c *Client) checkNextLink(link string) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parsing base URL: %w", err)
	}
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%w: invalid @odata.nextLink: %w", domain.ErrProtocol, err)
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return fmt.Errorf("%w: @odata.nextLink leaves %s://%s", domain.ErrProtocol, base.Scheme, base.Host)
	}
	return nil
}

func (c *Client) fetchPage(ctx context.Context, token domain.AccessToken, endpoint string) (usersPage, error) {
	tok := token.OAuth2(c.now())
	requestID := uuid.NewString()
	header := http.Header{}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	header.Set("Accept", "application/json")
	header.Set("client-request-id", requestID)

	resp, err := c.client.Get(ctx, endpoint, header)
	if err != nil {
		return usersPage{}, fmt.Errorf("listing users: %w", err)
	}
	c.logger.Debug("graph response", "url", endpoint, "status", resp.Status, "client_request_id", requestID)

	if !resp.OK() {
		return usersPage{}, fmt.Errorf("listing users: %w", decodeError(resp))
	}

	var page usersPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return usersPage{}, fmt.Errorf("%w: decoding users response: %w", domain.ErrProtocol, err)
	}
	if page.Value == nil {
		return usersPage{}, fmt.Errorf("%w: users response has no value array", domain.ErrProtocol)
	}
	return page, nil
}

// decodeError maps a Graph error envelope to *domain.APIError. Authorization_RequestDenied
// becomes domain.ErrAuthorizationDenied; any other code becomes domain.ErrAPI.
func decodeError(resp transport.Response) error {
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || env.Error.Code == "" {
		return fmt.Errorf("%w: graph returned status %d without an error envelope", domain.ErrProtocol, resp.Status)
	}
	requestID := env.Error.InnerError.RequestID
	if requestID == "" {
		requestID = resp.Header.Get("request-id")
	}
	return domain.NewAPIError(resp.Status, domain.ErrorDetail{
		Code:    env.Error.Code,
		Message: env.Error.Message,
		Inner: domain.InnerError{
			Date:      env.Error.InnerError.Date,
			RequestID: requestID,
		},
	})
}
