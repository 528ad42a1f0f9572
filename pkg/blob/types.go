package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned for a missing artifact.
var ErrNotFound = errors.New("artifact not found")

// ArtifactStore holds experiment artifacts (graph files, mutation
// configurations, programs, results) under slash-separated keys.
type ArtifactStore interface {
	// Put writes content under key, replacing any previous artifact.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get opens the artifact under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an artifact.
	Delete(ctx context.Context, key string) error
}
