package automation

import (
	"strings"

	"github.com/playwright-community/playwright-go"

	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// trackerHosts are aborted in both filtering modes.
var trackerHosts = []string{"doubleclick.net", "google-analytics.com"}

// shouldAbortRequest decides whether the bandwidth filter drops a request.
func shouldAbortRequest(mode v1.BandwidthMode, resourceType, url string) bool {
	switch mode {
	case v1.BandwidthEco:
		if resourceType == "image" || resourceType == "media" {
			return true
		}
	case v1.BandwidthBalanced:
		if resourceType == "media" {
			return true
		}
	default:
		return false
	}
	for _, host := range trackerHosts {
		if strings.Contains(url, host) {
			return true
		}
	}
	return false
}

// installBandwidthFilter routes all context traffic through the filter.
// Full mode (or none) installs nothing.
func installBandwidthFilter(context playwright.BrowserContext, mode v1.BandwidthMode) error {
	normalized := v1.BandwidthMode(strings.ToLower(strings.TrimSpace(string(mode))))
	if normalized != v1.BandwidthEco && normalized != v1.BandwidthBalanced {
		return nil
	}
	return context.Route("**/*", func(route playwright.Route) {
		req := route.Request()
		if shouldAbortRequest(normalized, req.ResourceType(), req.URL()) {
			_ = route.Abort()
			return
		}
		_ = route.Continue()
	})
}
