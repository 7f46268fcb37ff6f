// Package platform defines the narrow adapter contract for supported social
// platforms and the registry used to look adapters up by key.
package platform

import (
	"fmt"
	"strings"
)

// Cookie is the subset of a browser cookie the login predicate inspects.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
}

// LoginAdapter describes how to drive interactive login for one platform.
// The control plane and the browser node share this contract.
type LoginAdapter interface {
	// Key returns the canonical platform key (e.g. "x").
	Key() string

	// LoginURL is the page to open for interactive login.
	LoginURL() string

	// CookieOrigin is the origin whose cookies carry the auth session.
	CookieOrigin() string

	// IsLoggedIn reports whether the cookie set contains an authenticated session.
	IsLoggedIn(cookies []Cookie) bool
}

// ErrUnsupported is returned for platform keys with no registered adapter.
type ErrUnsupported struct {
	Key string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.Key)
}

var adapters = map[string]LoginAdapter{
	"x": xAdapter{},
}

// Lookup returns the adapter for a platform key. Keys are matched
// case-insensitively after trimming whitespace.
func Lookup(platformKey string) (LoginAdapter, error) {
	key := strings.ToLower(strings.TrimSpace(platformKey))
	if adapter, ok := adapters[key]; ok {
		return adapter, nil
	}
	return nil, &ErrUnsupported{Key: platformKey}
}

// IsSupported reports whether a platform key has a registered adapter.
func IsSupported(platformKey string) bool {
	_, err := Lookup(platformKey)
	return err == nil
}
