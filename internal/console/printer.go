// Package console renders prompts, poll progress and results as human-readable text.
// Prompts and progress go to the error stream so stdout stays clean for piping.
package console

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/waabox/graphctl/internal/auth"
	"github.com/waabox/graphctl/internal/domain"
)

// Printer writes results to out and everything else to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
}

var _ auth.Observer = (*Printer)(nil)

// New creates a Printer.
func New(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut}
}

// DeviceCode shows the user code and where to enter it.
func (p *Printer) DeviceCode(s domain.DeviceCodeSession) {
	fmt.Fprintf(p.errOut, "Visit:      %s\n", s.VerificationURI)
	fmt.Fprintf(p.errOut, "Enter code: %s\n", s.UserCode)
	fmt.Fprintf(p.errOut, "The code expires in %s.\n", time.Duration(s.ExpiresIn)*time.Second)
	fmt.Fprintf(p.errOut, "Waiting for authorization...\n")
}

// Poll prints the raw server response of one poll, with token values masked.
func (p *Printer) Poll(attempt int, status int, body []byte, next time.Duration) {
	fmt.Fprintf(p.errOut, "[poll %d] HTTP %d %s\n", attempt, status, redact(body))
	if next > 0 {
		fmt.Fprintf(p.errOut, "[poll %d] still waiting, next check in %s\n", attempt, next)
	}
}

// Users prints one line per user in the order given.
func (p *Printer) Users(users []domain.UserSummary) {
	for _, u := range users {
		fmt.Fprintf(p.out, "ID: %s, Display Name: %s\n", u.ID, u.DisplayName)
	}
}

// Failure prints the user-facing description of err.
func (p *Printer) Failure(err error) {
	fmt.Fprintln(p.errOut, Describe(err))
}

// Describe maps an error to the sentence shown to the operator.
func Describe(err error) string {
	var apiErr *domain.APIError
	hasDetail := errors.As(err, &apiErr)

	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return fmt.Sprintf("Configuration error: %v", err)
	case errors.Is(err, domain.ErrSessionExpired):
		return "The device code was not used in time; run graphctl again."
	case errors.Is(err, domain.ErrAuthorizationDenied) && hasDetail:
		return fmt.Sprintf("Authorization failed: %s", apiErr.Detail.Message)
	case hasDetail:
		msg := fmt.Sprintf("Error: %s (code %s", apiErr.Detail.Message, apiErr.Detail.Code)
		if id := apiErr.Detail.Inner.RequestID; id != "" {
			msg += ", request-id " + id
		}
		return msg + ")"
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

var secretFields = []string{"access_token", "refresh_token", "id_token"}

// redact masks token values in a JSON object body. Anything else is returned trimmed.
func redact(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return string(trimmed)
	}
	changed := false
	for _, k := range secretFields {
		if _, ok := obj[k]; ok {
			obj[k] = json.RawMessage(`"<redacted>"`)
			changed = true
		}
	}
	if !changed {
		return string(trimmed)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return string(trimmed)
	}
	return string(out)
}
