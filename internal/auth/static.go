package auth

import "context"

type staticProvider struct {
	key string
}

// Acquire returns the configured key. An empty key is valid: the server
// runs without authentication.
func (p *staticProvider) Acquire(ctx context.Context) (string, error) {
	return p.key, nil
}
