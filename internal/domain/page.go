package domain

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/amoylab/janus/internal/protocol"
)

// Page wraps page navigation and capture in one session.
type Page struct {
	base
}

func NewPage(conn Conn, sessionID string) *Page {
	return &Page{base{conn: conn, session: sessionID, name: "Page"}}
}

func (p *Page) Enable(ctx context.Context) error {
	return p.exec(ctx, "enable", nil)
}

// NavigateResult is the result of Page.navigate. ErrorText is set when the
// navigation itself failed, e.g. on a DNS error.
type NavigateResult struct {
	FrameID   string `json:"frameId"`
	LoaderID  string `json:"loaderId,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

func (p *Page) Navigate(ctx context.Context, url string) (NavigateResult, error) {
	return call[NavigateResult](ctx, p.base, "navigate", map[string]string{"url": url})
}

func (p *Page) Reload(ctx context.Context, ignoreCache bool) error {
	return p.exec(ctx, "reload", map[string]bool{"ignoreCache": ignoreCache})
}

// ScreenshotOptions are the optional Page.captureScreenshot params.
type ScreenshotOptions struct {
	Format      string `json:"format,omitempty"` // png, jpeg or webp
	Quality     int    `json:"quality,omitempty"`
	FromSurface bool   `json:"fromSurface,omitempty"`
}

// CaptureScreenshot returns the base64 encoded image as sent by the browser.
func (p *Page) CaptureScreenshot(ctx context.Context, opts ScreenshotOptions) (string, error) {
	return p.data(ctx, "captureScreenshot", opts)
}

// PDFOptions are the optional Page.printToPDF params.
type PDFOptions struct {
	Landscape       bool    `json:"landscape,omitempty"`
	PrintBackground bool    `json:"printBackground,omitempty"`
	Scale           float64 `json:"scale,omitempty"`
	PaperWidth      float64 `json:"paperWidth,omitempty"`
	PaperHeight     float64 `json:"paperHeight,omitempty"`
	PageRanges      string  `json:"pageRanges,omitempty"`
}

// PrintToPDF returns the base64 encoded document as sent by the browser.
func (p *Page) PrintToPDF(ctx context.Context, opts PDFOptions) (string, error) {
	return p.data(ctx, "printToPDF", opts)
}

func (p *Page) data(ctx context.Context, name string, params any) (string, error) {
	raw, err := p.raw(ctx, name, params)
	if err != nil {
		return "", err
	}
	data := gjson.GetBytes(raw, "data")
	if data.Type != gjson.String {
		return "", fmt.Errorf("%s: %w: no data", p.method(name), protocol.ErrMalformed)
	}
	return data.Str, nil
}
