package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/waabox/graphctl/internal/auth"
	"github.com/waabox/graphctl/internal/config"
	"github.com/waabox/graphctl/internal/console"
	"github.com/waabox/graphctl/internal/domain"
	"github.com/waabox/graphctl/internal/provider"
	"github.com/waabox/graphctl/internal/transport"
)

// newRegistry binds both grant flows to the configured credentials.
// Credentials are captured once here and never looked up again.
func newRegistry(cfg config.Config, doer transport.Doer, printer *console.Printer, logger *slog.Logger) *provider.Registry {
	creds := cfg.Credentials()

	cc := auth.NewClientCredentials(cfg.Azure.Authority, cfg.Azure.Scope, doer, auth.WithLogger(logger))
	dc := auth.NewDeviceFlow(cfg.Azure.Authority, doer, auth.WithObserver(printer), auth.WithLogger(logger))

	reg := provider.NewRegistry()
	reg.Register(domain.FlowClientCredentials, provider.TokenFunc(func(ctx context.Context) (domain.AccessToken, error) {
		return cc.AcquireToken(ctx, creds)
	}))
	reg.Register(domain.FlowDeviceCode, provider.TokenFunc(func(ctx context.Context) (domain.AccessToken, error) {
		return dc.Authenticate(ctx, creds, cfg.Azure.DeviceScope)
	}))
	return reg
}

// flowNames lists the registered flows for help text.
func flowNames() string {
	flows := newRegistry(config.Defaults(), nil, console.New(io.Discard, io.Discard), nil).Flows()
	names := make([]string, len(flows))
	for i, f := range flows {
		names[i] = fmt.Sprintf("%q", f)
	}
	return strings.Join(names, " or ")
}
