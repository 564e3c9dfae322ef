package auth

import (
	"encoding/json"
	"fmt"

	"github.com/waabox/graphctl/internal/domain"
	"github.com/waabox/graphctl/internal/transport"
)

// tokenResponse is the union of the success and error shapes returned by the token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Timestamp        string `json:"timestamp"`
	TraceID          string `json:"trace_id"`
	CorrelationID    string `json:"correlation_id"`
}

func decodeTokenResponse(body []byte) (tokenResponse, error) {
	var raw tokenResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return tokenResponse{}, fmt.Errorf("%w: decoding token response: %w", domain.ErrProtocol, err)
	}
	return raw, nil
}

func (r tokenResponse) token() domain.AccessToken {
	return domain.AccessToken{
		Token:        r.AccessToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		RefreshToken: r.RefreshToken,
		Scope:        r.Scope,
	}
}

func (r tokenResponse) detail() domain.ErrorDetail {
	requestID := r.CorrelationID
	if requestID == "" {
		requestID = r.TraceID
	}
	return domain.ErrorDetail{
		Code:    r.Error,
		Message: r.ErrorDescription,
		Inner: domain.InnerError{
			Date:      r.Timestamp,
			RequestID: requestID,
		},
	}
}

// errorFromResponse turns a non-success identity response into an *domain.APIError,
// or a protocol error when the body carries no error envelope.
func errorFromResponse(resp transport.Response) error {
	raw, err := decodeTokenResponse(resp.Body)
	if err != nil || raw.Error == "" {
		return fmt.Errorf("%w: unexpected status %d from identity provider", domain.ErrProtocol, resp.Status)
	}
	return domain.NewAPIError(resp.Status, raw.detail())
}
