// Package media implements the blob-store capability consumed by the post
// graph and profile services. The interface mirrors the external contract:
// store returns a stable URL plus an id, delete is best-effort by id.
package media

import "context"

// Blob identifies a stored binary object.
type Blob struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Store is the boundary capability for binary attachments.
// Delete failures must be handled by callers (logged and swallowed when the
// surrounding operation has to proceed anyway).
type Store interface {
	Store(ctx context.Context, data []byte, folder string) (Blob, error)
	Delete(ctx context.Context, id string) error
}
