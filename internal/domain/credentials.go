package domain

import "fmt"

// Credentials identifies the application registration used to request tokens.
// ClientSecret is only required by the client-credentials grant.
type Credentials struct {
	ClientID     string
	TenantID     string
	ClientSecret string
}

// String renders the credentials without the secret so they are safe to log.
func (c Credentials) String() string {
	secret := "<none>"
	if c.ClientSecret != "" {
		secret = "<redacted>"
	}
	return fmt.Sprintf("client_id=%s tenant_id=%s client_secret=%s", c.ClientID, c.TenantID, secret)
}
