package pagereader

import (
	"context"

	"github.com/chromedp/chromedp"
)

// Renderer returns the HTML of a page after it has been loaded.
type Renderer interface {
	Render(ctx context.Context, link string) (string, error)
}

// Browser renders pages in a fresh headless Chrome per call.
type Browser struct {
	UserAgent string
	// ExecPath overrides the Chrome binary lookup when set.
	ExecPath string
}

// NewBrowser returns a headless Chrome renderer.
func NewBrowser(userAgent string) *Browser {
	return &Browser{UserAgent: userAgent}
}

func (b *Browser) Render(ctx context.Context, link string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(b.UserAgent),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
