package domain

// Flow names a supported OAuth 2.0 grant.
type Flow string

const (
	FlowClientCredentials Flow = "client-credentials"
	FlowDeviceCode        Flow = "device-code"
)

// NeedsSecret reports whether the grant authenticates the client with a secret.
func (f Flow) NeedsSecret() bool {
	return f == FlowClientCredentials
}
