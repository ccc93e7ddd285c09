package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/bierserv/api/internal/config"
)

// ErrPDFUnavailable is returned when no Chrome binary can be found.
var ErrPDFUnavailable = errors.New("pdf rendering unavailable")

const defaultPDFTimeout = 30 * time.Second

// PDFRenderer prints an HTML document to PDF.
type PDFRenderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

// ChromePDF prints HTML through a headless Chrome started per document.
type ChromePDF struct {
	execPath string
	timeout  time.Duration
}

// NewChromePDF uses cfg.ChromePath, or the first Chrome found on the host.
func NewChromePDF(cfg config.PDFConfig) *ChromePDF {
	path := cfg.ChromePath
	if path == "" {
		path = detectChromePath()
	} else if _, err := os.Stat(path); err != nil {
		path = ""
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPDFTimeout
	}
	return &ChromePDF{execPath: path, timeout: timeout}
}

// Available reports whether a Chrome binary was found.
func (c *ChromePDF) Available() bool {
	return c.execPath != ""
}

func (c *ChromePDF) Render(ctx context.Context, html []byte) ([]byte, error) {
	if !c.Available() {
		return nil, ErrPDFUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(c.execPath),
		chromedp.NoSandbox,
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27). // A4
				WithPaperHeight(11.69).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

// detectChromePath checks CHROME_PATH, then the usual install locations.
func detectChromePath() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
