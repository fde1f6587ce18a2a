package auth

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// fileProvider reads the key from a file such as a mounted Kubernetes secret.
type fileProvider struct {
	path string
}

func (p *fileProvider) Acquire(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return "", errors.Wrap(err, "read api key file")
	}
	// Never log the key content.
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", errors.Wrapf(ErrEmptyKeyFile, "%s", p.path)
	}
	log.Debug().
		Str("action", "auth_acquire").
		Str("method", "file").
		Msg("api key loaded")
	return key, nil
}
