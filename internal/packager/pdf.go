package packager

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/signintech/gopdf"
)

// PDFPackager emits a PDF with one page per image, each page sized to the
// image's pixel dimensions at 72dpi.
type PDFPackager struct{}

// Ext returns ".pdf"
func (p *PDFPackager) Ext() string { return ".pdf" }

// Pack writes all pages into a single PDF at outPath
func (p *PDFPackager) Pack(pages []string, outPath string) error {
	if len(pages) == 0 {
		return ErrNoPages
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4, Unit: gopdf.UnitPT})

	for i, page := range pages {
		w, h, err := imageSize(page)
		if err != nil {
			return fmt.Errorf("page %d (%s): %w", i+1, page, err)
		}

		rect := gopdf.Rect{W: w, H: h}
		pdf.AddPageWithOption(gopdf.PageOption{PageSize: &rect})
		if err := pdf.Image(page, 0, 0, &rect); err != nil {
			return fmt.Errorf("page %d (%s): %w", i+1, page, err)
		}
	}

	if err := pdf.WritePdf(outPath); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func imageSize(path string) (float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}
