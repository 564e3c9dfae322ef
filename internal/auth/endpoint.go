package auth

import (
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultAuthority is the Microsoft identity platform host.
const DefaultAuthority = "https://login.microsoftonline.com"

// DefaultScope requests every application permission granted to the app on Microsoft Graph.
const DefaultScope = "https://graph.microsoft.com/.default"

// Endpoint returns the v2.0 token and device authorization URLs for tenant.
// Pass an empty authority to use DefaultAuthority. Pass a test server URL in tests.
func Endpoint(authority string, tenant string) oauth2.Endpoint {
	authority = strings.TrimRight(authority, "/")
	if authority == "" || authority == DefaultAuthority {
		ep := endpoints.AzureAD(tenant)
		if ep.DeviceAuthURL == "" {
			ep.DeviceAuthURL = strings.TrimSuffix(ep.TokenURL, "/token") + "/devicecode"
		}
		return ep
	}
	if tenant == "" {
		tenant = "common"
	}
	base := authority + "/" + url.PathEscape(tenant) + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
	}
}
