package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CBZPackager emits a comic-book zip archive. Entries are renumbered by
// input position so readers page through them in fetch order.
type CBZPackager struct{}

// Ext returns ".cbz"
func (c *CBZPackager) Ext() string { return ".cbz" }

// Pack writes all pages into a single CBZ at outPath
func (c *CBZPackager) Pack(pages []string, outPath string) error {
	if len(pages) == 0 {
		return ErrNoPages
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	for i, page := range pages {
		name := fmt.Sprintf("%04d%s", i+1, filepath.Ext(page))
		if err := addEntry(zw, page, name); err != nil {
			zw.Close()
			return fmt.Errorf("page %d (%s): %w", i+1, page, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Store without recompression; page images are already compressed
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}
