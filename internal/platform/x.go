package platform

// xAdapter implements the login contract for platform "x".
type xAdapter struct{}

func (xAdapter) Key() string { return "x" }

func (xAdapter) LoginURL() string { return "https://x.com/i/flow/login" }

func (xAdapter) CookieOrigin() string { return "https://x.com" }

// IsLoggedIn treats the presence of the auth_token cookie as an
// authenticated session.
func (xAdapter) IsLoggedIn(cookies []Cookie) bool {
	for _, c := range cookies {
		if c.Name == "auth_token" {
			return true
		}
	}
	return false
}
