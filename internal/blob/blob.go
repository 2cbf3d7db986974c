// Package blob implements the asset transfer used for recorded pronunciations.
package blob

import (
	"context"
	"io"
	"net/url"

	"github.com/google/uuid"
)

// Transfer uploads recordings and fetches them back as local files.
type Transfer interface {
	// Upload stores the bytes under key and returns a URI clients can fetch.
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
	// Download makes the object available locally and returns its path.
	Download(ctx context.Context, key string) (string, error)
}

// Key is the deterministic object key for a word recorded in a session.
// The word is path-escaped and separated from the session id so that
// distinct (session, word) pairs never share a key.
func Key(sessionID uuid.UUID, word string) string {
	return "recordings/" + sessionID.String() + "/" + url.PathEscape(word) + ".m4a"
}
