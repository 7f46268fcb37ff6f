package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	adapter, err := Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, "x", adapter.Key())
	assert.Equal(t, "https://x.com/i/flow/login", adapter.LoginURL())
	assert.Equal(t, "https://x.com", adapter.CookieOrigin())

	// Keys are normalized before lookup.
	_, err = Lookup("  X ")
	assert.NoError(t, err)

	_, err = Lookup("mastodon")
	require.Error(t, err)
	var unsupported *ErrUnsupported
	assert.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "mastodon", unsupported.Key)
}

func TestXIsLoggedIn(t *testing.T) {
	adapter, err := Lookup("x")
	require.NoError(t, err)

	assert.False(t, adapter.IsLoggedIn(nil))
	assert.False(t, adapter.IsLoggedIn([]Cookie{{Name: "guest_id", Value: "1"}}))
	assert.True(t, adapter.IsLoggedIn([]Cookie{
		{Name: "guest_id", Value: "1"},
		{Name: "auth_token", Value: "secret", Domain: ".x.com"},
	}))
}
