// Package platforms is the browser node's side of the platform adapter
// contract. It mirrors the control plane's registry but operates on
// Playwright cookies, so the two stay intentionally separate.
package platforms

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// ErrUnsupported is returned for platform keys the node cannot drive.
type ErrUnsupported struct {
	Key string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.Key)
}

func normalize(platformKey string) string {
	return strings.ToLower(strings.TrimSpace(platformKey))
}

// LoginURL is the page opened for interactive login.
func LoginURL(platformKey string) (string, error) {
	if normalize(platformKey) == "x" {
		return "https://x.com/i/flow/login", nil
	}
	return "", &ErrUnsupported{Key: platformKey}
}

// CookieOrigin is the origin whose cookies carry the auth session.
func CookieOrigin(platformKey string) (string, error) {
	if normalize(platformKey) == "x" {
		return "https://x.com", nil
	}
	return "", &ErrUnsupported{Key: platformKey}
}

// IsLoggedIn inspects the cookie set for an authenticated session.
func IsLoggedIn(platformKey string, cookies []playwright.Cookie) (bool, error) {
	if normalize(platformKey) != "x" {
		return false, &ErrUnsupported{Key: platformKey}
	}
	for _, c := range cookies {
		if c.Name == "auth_token" {
			return true, nil
		}
	}
	return false, nil
}

// IsSupported reports whether the node can drive the platform.
func IsSupported(platformKey string) bool {
	return normalize(platformKey) == "x"
}
