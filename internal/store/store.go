// Package store abstracts the remote object-storage surface the sync engine
// talks to. Any backend implementing the three operations below is
// compatible: a point stat, a marker-paginated prefix listing, and an
// upload.
package store

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Stat when the key has never been
// uploaded. Backends must map their vendor-specific "not found" status to
// this sentinel rather than surfacing it as a failure.
var ErrObjectNotFound = errors.New("object not found")

// FingerprintKey is the user-metadata key under which backends persist the
// content fingerprint of an uploaded object.
const FingerprintKey = "content-fingerprint"

// Object is the last-known server state of one key.
type Object struct {
	Key  string
	Hash string // content fingerprint; empty when the backend could not supply one
	Size int64
}

// Page is one page of a prefix listing. An empty Marker signals the end of
// pagination; a non-empty one is the opaque token for the next call.
type Page struct {
	Items  []Object
	Marker string
}

type Store interface {
	// Stat looks up a single key. Absent keys yield ErrObjectNotFound.
	Stat(ctx context.Context, key string) (*Object, error)

	// List returns at most limit objects under prefix, starting after
	// marker (empty marker starts from the beginning).
	List(ctx context.Context, prefix, marker string, limit int32) (*Page, error)

	// Upload writes size bytes from body under key with the given content
	// type and records the content fingerprint alongside the object.
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType, fingerprint string) error
}
