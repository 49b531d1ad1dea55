// Package packager turns an ordered list of page images into one shippable
// archive file.
package packager

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPages is returned when packing is attempted on an empty page list
var ErrNoPages = errors.New("no pages to package")

// Packager converts ordered page images into a single output file.
// Implementations must preserve input order and fail cleanly on an empty
// input list.
type Packager interface {
	// Pack writes the archive to outPath
	Pack(pages []string, outPath string) error
	// Ext returns the output file extension, dot included
	Ext() string
}

// New selects a packager by output format name
func New(format string) (Packager, error) {
	switch strings.ToLower(format) {
	case "pdf":
		return &PDFPackager{}, nil
	case "cbz":
		return &CBZPackager{}, nil
	default:
		return nil, fmt.Errorf("unknown packager format: %s", format)
	}
}
