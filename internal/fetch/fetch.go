// Package fetch defines the remote-gallery boundary: given an album id,
// a fetcher materializes the album's pages, in reading order, into a
// caller-supplied directory.
package fetch

import (
	"context"
	"fmt"
)

// Album is the result of a successful fetch. Pages are absolute file paths
// in reading order.
type Album struct {
	ID    string
	Title string
	Pages []string
}

// ContentFetcher downloads one album into destDir
type ContentFetcher interface {
	Fetch(ctx context.Context, id string, destDir string) (*Album, error)
}

// Error is a typed fetch failure carrying the album id and failing stage
type Error struct {
	ID    string
	Stage string // "album", "pages"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed for album %s: %v", e.Stage, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
