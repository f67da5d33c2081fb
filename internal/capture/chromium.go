package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	appLog "calgrid/internal/log"
)

// Default capture parameters. The viewport only sets the page width the
// table is laid out against; the screenshot covers the whole page.
const (
	DefaultWidth      = 1200
	DefaultHeight     = 900
	DefaultTimeoutSec = 30
)

// readySelector is present once the calendar document has been parsed.
const readySelector = "table"

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// HTML is the complete document to capture, usually page.Document output.
	HTML string

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero, a sane default
	// (DefaultTimeoutSec) is used.
	Timeout time.Duration
}

func (o *CaptureOptions) normalize() error {
	if o.HTML == "" {
		return errors.New("capture: HTML is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return nil
}

// dataURL embeds doc so Chromium can load it without a server.
func dataURL(doc string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(doc))
}

// CapturePNG launches a headless Chromium instance via chromedp, loads
// opts.HTML, waits until the calendar table is visible and writes a
// full-page PNG screenshot to opts.OutputPath.
func CapturePNG(parentCtx context.Context, opts CaptureOptions) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(dataURL(opts.HTML)),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("calendar screenshot written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}
