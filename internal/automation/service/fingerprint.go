package service

import "math/rand"

// Desktop browser profiles assigned to new accounts. The browser node only
// honors whitelisted keys, so every profile here stays within that set.
var desktopProfiles = []map[string]any{
	{
		"user_agent":          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"viewport":            map[string]any{"width": 1920, "height": 1080},
		"locale":              "en-US",
		"timezone_id":         "America/New_York",
		"color_scheme":        "light",
		"device_scale_factor": 1,
		"is_mobile":           false,
		"has_touch":           false,
	},
	{
		"user_agent":          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"viewport":            map[string]any{"width": 1440, "height": 900},
		"locale":              "en-US",
		"timezone_id":         "America/Los_Angeles",
		"color_scheme":        "light",
		"device_scale_factor": 2,
		"is_mobile":           false,
		"has_touch":           false,
	},
	{
		"user_agent":          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		"viewport":            map[string]any{"width": 1366, "height": 768},
		"locale":              "en-US",
		"timezone_id":         "Europe/London",
		"color_scheme":        "light",
		"device_scale_factor": 1,
		"is_mobile":           false,
		"has_touch":           false,
	},
}

// generateFingerprintProfile picks a random desktop profile for a new
// account. Returns a copy so later mutation cannot alias the template.
func generateFingerprintProfile() map[string]any {
	src := desktopProfiles[rand.Intn(len(desktopProfiles))]
	out := make(map[string]any, len(src))
	for k, v := range src {
		if nested, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}
