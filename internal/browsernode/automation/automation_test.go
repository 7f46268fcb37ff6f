package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

func TestShouldAbortRequest(t *testing.T) {
	tests := []struct {
		name         string
		mode         v1.BandwidthMode
		resourceType string
		url          string
		abort        bool
	}{
		{"full allows images", v1.BandwidthFull, "image", "https://pbs.twimg.com/media/a.jpg", false},
		{"full allows media", v1.BandwidthFull, "media", "https://video.twimg.com/a.mp4", false},
		{"eco blocks images", v1.BandwidthEco, "image", "https://pbs.twimg.com/media/a.jpg", true},
		{"eco blocks media", v1.BandwidthEco, "media", "https://video.twimg.com/a.mp4", true},
		{"eco allows scripts", v1.BandwidthEco, "script", "https://abs.twimg.com/app.js", false},
		{"balanced allows images", v1.BandwidthBalanced, "image", "https://pbs.twimg.com/media/a.jpg", false},
		{"balanced blocks media", v1.BandwidthBalanced, "media", "https://video.twimg.com/a.mp4", true},
		{"full ignores trackers", v1.BandwidthFull, "script", "https://ad.doubleclick.net/track", false},
		{"eco blocks analytics", v1.BandwidthEco, "script", "https://www.google-analytics.com/collect", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.abort, shouldAbortRequest(tt.mode, tt.resourceType, tt.url))
		})
	}
}

func TestNormalizeTweetURL(t *testing.T) {
	tests := []struct {
		name       string
		href       string
		wantID     string
		wantURL    string
		wantOK     bool
	}{
		{"relative status link", "/someuser/status/1234567890", "1234567890", "https://x.com/someuser/status/1234567890", true},
		{"absolute with query", "https://x.com/someuser/status/1234567890?s=20&t=abc", "1234567890", "https://x.com/someuser/status/1234567890", true},
		{"photo suffix stripped", "/someuser/status/1234567890/photo/1", "1234567890", "https://x.com/someuser/status/1234567890", true},
		{"legacy domain rewritten", "https://twitter.com/u/status/42", "42", "https://x.com/u/status/42", true},
		{"no status segment", "/someuser/likes", "", "", false},
		{"non-numeric id", "/someuser/status/abc", "", "", false},
		{"empty", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, normalized, ok := normalizeTweetURL(tt.href)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantURL, normalized)
		})
	}
}

func TestClampParam(t *testing.T) {
	assert.Equal(t, 20, clampParam(nil, "max_candidates", 20, 1, 200))
	assert.Equal(t, 20, clampParam(map[string]any{}, "max_candidates", 20, 1, 200))
	// JSON-decoded numbers arrive as float64.
	assert.Equal(t, 50, clampParam(map[string]any{"max_candidates": float64(50)}, "max_candidates", 20, 1, 200))
	assert.Equal(t, 200, clampParam(map[string]any{"max_candidates": float64(9999)}, "max_candidates", 20, 1, 200))
	assert.Equal(t, 1, clampParam(map[string]any{"max_candidates": float64(-3)}, "max_candidates", 20, 1, 200))
	assert.Equal(t, 20, clampParam(map[string]any{"max_candidates": "lots"}, "max_candidates", 20, 1, 200))
}

func TestParamText(t *testing.T) {
	assert.Equal(t, "", paramText(nil))
	assert.Equal(t, "", paramText(map[string]any{"text": "   "}))
	assert.Equal(t, "", paramText(map[string]any{"text": 7}))
	assert.Equal(t, "hello", paramText(map[string]any{"text": "  hello "}))
}

func TestStorageStateOption(t *testing.T) {
	_, err := storageStateOption(nil)
	require.Error(t, err)
	_, err = storageStateOption(map[string]any{})
	require.Error(t, err)

	state := map[string]any{
		"cookies": []any{
			map[string]any{
				"name":   "auth_token",
				"value":  "secret",
				"domain": ".x.com",
				"path":   "/",
			},
		},
		"origins": []any{},
	}
	opt, err := storageStateOption(state)
	require.NoError(t, err)
	require.Len(t, opt.Cookies, 1)
	assert.Equal(t, "auth_token", opt.Cookies[0].Name)
	require.NotNil(t, opt.Cookies[0].Domain)
	assert.Equal(t, ".x.com", *opt.Cookies[0].Domain)
}

func TestContextOptions(t *testing.T) {
	opts := contextOptions(map[string]any{
		"user_agent":  "Mozilla/5.0 test",
		"viewport":    map[string]any{"width": float64(1280), "height": float64(720)},
		"locale":      "en-US",
		"timezone_id": "Europe/Berlin",
	})
	require.NotNil(t, opts.UserAgent)
	assert.Equal(t, "Mozilla/5.0 test", *opts.UserAgent)
	require.NotNil(t, opts.Viewport)
	assert.Equal(t, 1280, opts.Viewport.Width)
	assert.Equal(t, 720, opts.Viewport.Height)
	require.NotNil(t, opts.Locale)
	assert.Equal(t, "en-US", *opts.Locale)

	// Malformed fields are dropped, not propagated.
	opts = contextOptions(map[string]any{
		"user_agent": "  ",
		"viewport":   map[string]any{"width": float64(0)},
		"locale":     42,
	})
	assert.Nil(t, opts.UserAgent)
	assert.Nil(t, opts.Viewport)
	assert.Nil(t, opts.Locale)
}

func TestReplyRestrictedIsPolicySkip(t *testing.T) {
	// Reply restrictions are a policy skip, not a failure.
	res := skippedWithCode(nil, CodeReplyRestricted, "replies are restricted on this tweet", nil)
	assert.Equal(t, v1.ActionResultSkipped, res.Status)
	require.NotNil(t, res.ErrorCode)
	assert.Equal(t, "REPLY_RESTRICTED", *res.ErrorCode)
	require.NotNil(t, res.Message)
}

func TestRepeatResult(t *testing.T) {
	res := failed(CodeUnsupportedPlatform, "unsupported platform: myspace", nil)
	out := repeatResult(3, res)
	require.Len(t, out, 3)
	for _, r := range out {
		assert.Equal(t, v1.ActionResultFailed, r.Status)
		require.NotNil(t, r.ErrorCode)
		assert.Equal(t, CodeUnsupportedPlatform, *r.ErrorCode)
	}
}
