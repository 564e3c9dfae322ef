package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the auth and graph packages matches exactly one
// of these with errors.Is.
var (
	// ErrConfiguration is returned when a required identifier is missing at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransport wraps network and timeout failures. They are never retried.
	ErrTransport = errors.New("transport error")

	// ErrProtocol indicates a malformed or unexpected response body.
	ErrProtocol = errors.New("protocol error")

	// ErrAuthorizationPending is recovered inside the device-code poll loop and never surfaced.
	ErrAuthorizationPending = errors.New("authorization pending")

	// ErrAuthorizationDenied indicates the user declined consent or the resource refused access.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrSessionExpired indicates the device code was not redeemed before it expired.
	ErrSessionExpired = errors.New("device code expired")

	// ErrAPI covers every other error code returned by the identity provider or the resource API.
	ErrAPI = errors.New("api error")
)

// ErrorCode is the closed set of provider error codes this program understands.
// Anything else parses to CodeUnrecognized.
type ErrorCode string

const (
	CodeUnrecognized          ErrorCode = ""
	CodeAuthorizationPending  ErrorCode = "authorization_pending"
	CodeSlowDown              ErrorCode = "slow_down"
	CodeAuthorizationDeclined ErrorCode = "authorization_declined"
	CodeAccessDenied          ErrorCode = "access_denied"
	CodeBadVerificationCode   ErrorCode = "bad_verification_code"
	CodeExpiredToken          ErrorCode = "expired_token"
	CodeInvalidRequest        ErrorCode = "invalid_request"
	CodeInvalidClient         ErrorCode = "invalid_client"
	CodeInvalidGrant          ErrorCode = "invalid_grant"
	CodeInvalidScope          ErrorCode = "invalid_scope"
	CodeUnauthorizedClient    ErrorCode = "unauthorized_client"
	// CodeRequestDenied is Microsoft Graph's code for insufficient privileges.
	CodeRequestDenied ErrorCode = "Authorization_RequestDenied"
)

// ParseErrorCode maps a raw code to its enumerated value.
func ParseErrorCode(raw string) ErrorCode {
	switch c := ErrorCode(raw); c {
	case CodeAuthorizationPending, CodeSlowDown, CodeAuthorizationDeclined, CodeAccessDenied,
		CodeBadVerificationCode, CodeExpiredToken, CodeInvalidRequest, CodeInvalidClient,
		CodeInvalidGrant, CodeInvalidScope, CodeUnauthorizedClient, CodeRequestDenied:
		return c
	default:
		return CodeUnrecognized
	}
}

// Kind returns the sentinel error the code belongs to.
func (c ErrorCode) Kind() error {
	switch c {
	case CodeAuthorizationPending, CodeSlowDown:
		return ErrAuthorizationPending
	case CodeAuthorizationDeclined, CodeAccessDenied, CodeBadVerificationCode, CodeRequestDenied:
		return ErrAuthorizationDenied
	case CodeExpiredToken:
		return ErrSessionExpired
	default:
		return ErrAPI
	}
}

// InnerError carries correlation data for a failed request.
type InnerError struct {
	Date      string
	RequestID string
}

// ErrorDetail is the provider-neutral description of a failed call.
type ErrorDetail struct {
	Code    string
	Message string
	Inner   InnerError
}

// APIError is returned whenever the identity provider or the resource API answers
// with an error envelope. It unwraps to one of the sentinel kinds above.
type APIError struct {
	Kind   error
	Status int
	Detail ErrorDetail
}

// NewAPIError classifies detail by its code.
func NewAPIError(status int, detail ErrorDetail) *APIError {
	return &APIError{
		Kind:   ParseErrorCode(detail.Code).Kind(),
		Status: status,
		Detail: detail,
	}
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Detail.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail.Message)
	}
	if e.Detail.Code != "" {
		fmt.Fprintf(&b, " (code %s", e.Detail.Code)
		if e.Detail.Inner.RequestID != "" {
			fmt.Fprintf(&b, ", request-id %s", e.Detail.Inner.RequestID)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// ConfigError lists every required setting that was not supplied.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}
