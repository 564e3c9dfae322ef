package auth

import (
	"io"
	"log/slog"
	"time"

	"github.com/waabox/graphctl/internal/domain"
)

// Observer receives the human-facing events of a device-code flow.
type Observer interface {
	// DeviceCode is called once, before polling begins.
	DeviceCode(session domain.DeviceCodeSession)
	// Poll is called after every poll with the raw server response.
	Poll(attempt int, status int, body []byte, next time.Duration)
}

type nopObserver struct{}

func (nopObserver) DeviceCode(domain.DeviceCodeSession) {}
func (nopObserver) Poll(int, int, []byte, time.Duration) {}

type settings struct {
	clock    Clock
	observer Observer
	logger   *slog.Logger
}

func defaultSettings() settings {
	return settings{
		clock:    SystemClock,
		observer: nopObserver{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a ClientCredentials or DeviceFlow.
type Option func(*settings)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithObserver sets the receiver of device-code prompts and poll progress.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
