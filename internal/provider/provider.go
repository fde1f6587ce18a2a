package provider

import "context"

// Provider copies a saved snapshot file to remote storage. Keys are plain
// slash-separated strings so implementations can decide their own layout.
type Provider interface {
	// Upload sends the local file at source to key, attaching meta to the object.
	Upload(ctx context.Context, source, key string, meta map[string]string) error

	// Name returns the provider identifier (e.g. "azure", "s3").
	Name() string
}
