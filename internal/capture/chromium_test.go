package capture

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureOptionsNormalize(t *testing.T) {
	o := CaptureOptions{HTML: "<table></table>", OutputPath: "out.png"}
	require.NoError(t, o.normalize())
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeoutSec*time.Second, o.Timeout)

	o = CaptureOptions{HTML: "x", OutputPath: "y", Width: 800, Height: 480, Timeout: time.Second}
	require.NoError(t, o.normalize())
	assert.Equal(t, 800, o.Width)
	assert.Equal(t, 480, o.Height)
	assert.Equal(t, time.Second, o.Timeout)
}

func TestCapturePNGRequiresInputs(t *testing.T) {
	err := CapturePNG(context.Background(), CaptureOptions{OutputPath: "out.png"})
	assert.ErrorContains(t, err, "HTML is required")

	err = CapturePNG(context.Background(), CaptureOptions{HTML: "<table></table>"})
	assert.ErrorContains(t, err, "OutputPath is required")
}

func TestDataURL(t *testing.T) {
	doc := `<!DOCTYPE html><html><body><table class="a&b"></table></body></html>`
	u := dataURL(doc)

	const prefix = "data:text/html;charset=utf-8;base64,"
	require.True(t, strings.HasPrefix(u, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(u, prefix))
	require.NoError(t, err)
	assert.Equal(t, doc, string(raw))
}
