package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"mangabot/internal/logger"
)

const defaultTimeout = 30 * time.Second

var pageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// CollyFetcher implements ContentFetcher by scraping the album page for its
// page images and downloading each one in order.
type CollyFetcher struct {
	opts Options
}

// NewColly builds a CollyFetcher
func NewColly(opts Options) *CollyFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	return &CollyFetcher{opts: opts}
}

func (f *CollyFetcher) newCollector() *colly.Collector {
	c := colly.NewCollector(colly.Async(false))
	if f.opts.UserAgent != "" {
		c.UserAgent = f.opts.UserAgent
	}
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(f.opts.Timeout)

	if len(f.opts.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range f.opts.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	return c
}

// Fetch scrapes the album page and downloads every page image into destDir.
// Page files are named by zero-padded reading order so a lexical sort of the
// directory reproduces the album order.
func (f *CollyFetcher) Fetch(ctx context.Context, id string, destDir string) (*Album, error) {
	if f.opts.BaseURL == "" {
		return nil, &Error{ID: id, Stage: "album", Err: fmt.Errorf("fetch base_url not configured")}
	}

	albumURL := strings.TrimRight(f.opts.BaseURL, "/") + "/album/" + id

	var (
		title    string
		pageURLs []string
	)

	c := f.newCollector()
	c.OnHTML("h1", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})
	c.OnHTML("img", func(e *colly.HTMLElement) {
		src := e.Attr("data-original")
		if src == "" {
			src = e.Attr("src")
		}
		if src == "" || !pageExtensions[strings.ToLower(path.Ext(stripQuery(src)))] {
			return
		}
		pageURLs = append(pageURLs, e.Request.AbsoluteURL(src))
	})

	if err := c.Visit(albumURL); err != nil {
		return nil, &Error{ID: id, Stage: "album", Err: err}
	}
	c.Wait()

	if len(pageURLs) == 0 {
		return nil, &Error{ID: id, Stage: "album", Err: fmt.Errorf("no page images found")}
	}

	logger.Infof("Fetch: album %s (%q) has %d pages", id, title, len(pageURLs))

	pages, err := f.downloadPages(ctx, id, destDir, pageURLs)
	if err != nil {
		return nil, err
	}

	return &Album{ID: id, Title: title, Pages: pages}, nil
}

func (f *CollyFetcher) downloadPages(ctx context.Context, id, destDir string, urls []string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, &Error{ID: id, Stage: "pages", Err: err}
	}

	d := f.newCollector()

	var saveErr error
	d.OnResponse(func(r *colly.Response) {
		target := r.Ctx.Get("target")
		if target == "" {
			return
		}
		if err := r.Save(target); err != nil && saveErr == nil {
			saveErr = err
		}
	})

	pages := make([]string, 0, len(urls))
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, &Error{ID: id, Stage: "pages", Err: err}
		}

		ext := strings.ToLower(path.Ext(stripQuery(u)))
		target := filepath.Join(destDir, fmt.Sprintf("%04d%s", i+1, ext))

		reqCtx := colly.NewContext()
		reqCtx.Put("target", target)

		if err := d.Request("GET", u, nil, reqCtx, http.Header{}); err != nil {
			return nil, &Error{ID: id, Stage: "pages", Err: fmt.Errorf("page %d: %w", i+1, err)}
		}
		if saveErr != nil {
			return nil, &Error{ID: id, Stage: "pages", Err: saveErr}
		}

		pages = append(pages, target)
	}
	d.Wait()

	return pages, nil
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
