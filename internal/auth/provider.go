// Package auth resolves the pre-shared Qdrant API key.
package auth

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/qdrant-dump/internal/config"
)

var (
	ErrEmptyKeyFile = errors.New("api key file is empty")
)

// Provider abstracts where the API key comes from (no refresh here).
type Provider interface {
	Acquire(ctx context.Context) (string, error)
}

// New selects the provider: a key file when configured, otherwise the
// static key (possibly empty, meaning no auth header).
// NOTE: This package never initializes logging; main() does via logx.
func New(cfg config.Config) Provider {
	if cfg.APIKeyFile != "" {
		log.Debug().
			Str("action", "auth_new").
			Str("method", "file").
			Str("path", cfg.APIKeyFile).
			Msg("auth provider selected")
		return &fileProvider{path: cfg.APIKeyFile}
	}
	log.Debug().
		Str("action", "auth_new").
		Str("method", "static").
		Bool("configured", cfg.APIKey != "").
		Msg("auth provider selected")
	return &staticProvider{key: cfg.APIKey}
}

// ResolveKey is a convenience for call sites that only need the key.
func ResolveKey(ctx context.Context, cfg config.Config) (string, error) {
	return New(cfg).Acquire(ctx)
}
