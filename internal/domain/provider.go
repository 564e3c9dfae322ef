package domain

import "context"

// TokenProvider is the port every grant flow implements.
// The rest of the program does not know which grant produced the token.
type TokenProvider interface {
	Token(ctx context.Context) (AccessToken, error)
}
