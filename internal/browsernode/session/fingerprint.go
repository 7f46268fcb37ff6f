package session

import (
	"strings"

	"github.com/playwright-community/playwright-go"
)

// contextOptionsFromFingerprint maps a whitelisted subset of a fingerprint
// profile onto browser context options. Malformed fields are dropped rather
// than rejected, matching how accounts created before a profile field existed
// keep working.
func contextOptionsFromFingerprint(profile map[string]any) playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{}
	if len(profile) == 0 {
		return opts
	}

	if ua, ok := profile["user_agent"].(string); ok && strings.TrimSpace(ua) != "" {
		opts.UserAgent = playwright.String(strings.TrimSpace(ua))
	}

	if viewport, ok := profile["viewport"].(map[string]any); ok {
		width, wok := intField(viewport, "width")
		height, hok := intField(viewport, "height")
		if wok && hok && width > 0 && height > 0 {
			opts.Viewport = &playwright.Size{Width: width, Height: height}
		}
	}

	if locale, ok := profile["locale"].(string); ok && strings.TrimSpace(locale) != "" {
		opts.Locale = playwright.String(strings.TrimSpace(locale))
	}

	if tz, ok := profile["timezone_id"].(string); ok && strings.TrimSpace(tz) != "" {
		opts.TimezoneId = playwright.String(strings.TrimSpace(tz))
	}

	if scheme, ok := profile["color_scheme"].(string); ok {
		switch strings.TrimSpace(strings.ToLower(scheme)) {
		case "light":
			opts.ColorScheme = playwright.ColorSchemeLight
		case "dark":
			opts.ColorScheme = playwright.ColorSchemeDark
		case "no-preference":
			opts.ColorScheme = playwright.ColorSchemeNoPreference
		}
	}

	if dsf, ok := floatField(profile, "device_scale_factor"); ok && dsf > 0 {
		opts.DeviceScaleFactor = playwright.Float(dsf)
	}

	if isMobile, ok := profile["is_mobile"].(bool); ok {
		opts.IsMobile = playwright.Bool(isMobile)
	}

	if hasTouch, ok := profile["has_touch"].(bool); ok {
		opts.HasTouch = playwright.Bool(hasTouch)
	}

	return opts
}

// intField reads an integer that may arrive as int or, after a JSON round
// trip, as float64.
func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func floatField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
