package dump

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/qdrant-dump/internal/qdrant"
)

// AllCollections selects every collection listed by the server.
const AllCollections = "all"

// API is the full client surface used by Run.
type API interface {
	SnapshotAPI
	ListCollections(ctx context.Context) ([]qdrant.Collection, error)
}

// ErrEmptyTarget is returned when no collection name was given.
var ErrEmptyTarget = errors.New("collection name is empty")

// Targets resolves the collections to back up. With AllCollections it lists
// them from the server and keeps the server order. Any other target is used
// verbatim, surrounding spaces included.
func Targets(ctx context.Context, api API, target string) ([]string, error) {
	if strings.TrimSpace(target) == "" {
		return nil, ErrEmptyTarget
	}
	if target != AllCollections {
		return []string{target}, nil
	}

	cols, err := api.ListCollections(ctx)
	if err != nil {
		log.Error().Err(err).Str("action", "list_collections").Msg("listing collections failed")
		return nil, errors.Wrap(err, "list collections")
	}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	log.Info().Str("action", "list_collections").Int("count", len(names)).Msg("collections listed")
	return names, nil
}

// Run backs up target (a collection name or AllCollections) into dir, one
// collection at a time. The first failure stops the run: later collections
// are not attempted and files already written are kept. The returned slice
// holds the collections completed before the failure.
func Run(ctx context.Context, api API, target, dir string, opts Options) ([]Result, error) {
	start := time.Now()
	names, err := Targets(ctx, api, target)
	if err != nil {
		return nil, err
	}
	if target == AllCollections {
		opts.progress().Found(len(names))
	}

	results := make([]Result, 0, len(names))
	for i, name := range names {
		res, err := Collection(ctx, api, name, dir, opts)
		if err != nil {
			log.Error().
				Err(err).
				Str("action", "dump").
				Str("collection", name).
				Int("done", i).
				Int("total", len(names)).
				Msg("backup aborted")
			return results, err
		}
		log.Debug().Str("action", "dump").Str("result", res.String()).Msg("collection saved")
		results = append(results, res)
	}

	log.Info().
		Str("action", "dump").
		Int("collections", len(results)).
		Str("dir", dir).
		Dur("elapsed_ms", time.Since(start)).
		Msg("backup OK")
	return results, nil
}
