package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/waabox/graphctl/internal/domain"
)

// TokenFunc adapts a function to domain.TokenProvider.
type TokenFunc func(ctx context.Context) (domain.AccessToken, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (domain.AccessToken, error) {
	return f(ctx)
}

// Registry maps grant flow names to TokenProvider implementations.
type Registry struct {
	entries []entry
}

type entry struct {
	flow     domain.Flow
	provider domain.TokenProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register associates a flow with a provider. Registering a flow twice replaces the earlier provider.
func (r *Registry) Register(flow domain.Flow, p domain.TokenProvider) {
	for i, e := range r.entries {
		if e.flow == flow {
			r.entries[i].provider = p
			return
		}
	}
	r.entries = append(r.entries, entry{flow: flow, provider: p})
}

// Select returns the provider registered for flow.
// Returns an error listing the known flows if none matches.
func (r *Registry) Select(flow domain.Flow) (domain.TokenProvider, error) {
	for _, e := range r.entries {
		if e.flow == flow {
			return e.provider, nil
		}
	}
	return nil, fmt.Errorf("unknown flow %q (supported: %s)", flow, strings.Join(r.names(), ", "))
}

// Flows returns the registered flows in registration order.
func (r *Registry) Flows() []domain.Flow {
	flows := make([]domain.Flow, len(r.entries))
	for i, e := range r.entries {
		flows[i] = e.flow
	}
	return flows
}

func (r *Registry) names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = string(e.flow)
	}
	return names
}
