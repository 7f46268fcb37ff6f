package session

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextOptionsFromFingerprint(t *testing.T) {
	opts := contextOptionsFromFingerprint(map[string]any{
		"user_agent":          "Mozilla/5.0 test",
		"viewport":            map[string]any{"width": float64(1440), "height": float64(900)},
		"locale":              "de-DE",
		"timezone_id":         "Europe/Berlin",
		"color_scheme":        "dark",
		"device_scale_factor": float64(2),
		"is_mobile":           false,
		"has_touch":           true,
	})

	require.NotNil(t, opts.UserAgent)
	assert.Equal(t, "Mozilla/5.0 test", *opts.UserAgent)
	require.NotNil(t, opts.Viewport)
	assert.Equal(t, 1440, opts.Viewport.Width)
	assert.Equal(t, 900, opts.Viewport.Height)
	require.NotNil(t, opts.Locale)
	assert.Equal(t, "de-DE", *opts.Locale)
	require.NotNil(t, opts.TimezoneId)
	assert.Equal(t, "Europe/Berlin", *opts.TimezoneId)
	require.NotNil(t, opts.ColorScheme)
	assert.Equal(t, *playwright.ColorSchemeDark, *opts.ColorScheme)
	require.NotNil(t, opts.DeviceScaleFactor)
	assert.Equal(t, 2.0, *opts.DeviceScaleFactor)
	require.NotNil(t, opts.IsMobile)
	assert.False(t, *opts.IsMobile)
	require.NotNil(t, opts.HasTouch)
	assert.True(t, *opts.HasTouch)
}

func TestContextOptionsFromFingerprintDropsMalformed(t *testing.T) {
	opts := contextOptionsFromFingerprint(map[string]any{
		"user_agent":          "   ",
		"viewport":            map[string]any{"width": "wide"},
		"locale":              7,
		"color_scheme":        "sepia",
		"device_scale_factor": float64(-1),
	})

	assert.Nil(t, opts.UserAgent)
	assert.Nil(t, opts.Viewport)
	assert.Nil(t, opts.Locale)
	assert.Nil(t, opts.ColorScheme)
	assert.Nil(t, opts.DeviceScaleFactor)
}

func TestContextOptionsFromFingerprintEmpty(t *testing.T) {
	opts := contextOptionsFromFingerprint(nil)
	assert.Nil(t, opts.UserAgent)
	assert.Nil(t, opts.Viewport)
}
