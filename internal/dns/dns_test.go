package dns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupIPLiteral(t *testing.T) {
	ip, err := Lookup(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)

	ip, err = Lookup(context.Background(), "::1")
	require.NoError(t, err)
	assert.Equal(t, "::1", ip)
}

func TestPreferIPv4(t *testing.T) {
	ip, err := preferIPv4([]string{"2001:db8::1", "192.0.2.7"})
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.7", ip)

	ip, err = preferIPv4([]string{"2001:db8::1"})
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", ip)

	_, err = preferIPv4(nil)
	assert.Error(t, err)
}
