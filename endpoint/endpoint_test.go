package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpoint_FormatIPv4(t *testing.T) {
	e, err := Parse("192.168.1.7:8080")
	require.NoError(t, err)
	require.Equal(t, FamilyIPv4, e.Family())
	require.Equal(t, 4, e.Size())
	require.Equal(t, uint16(8080), e.Port())
	require.Equal(t, "192.168.1.7:8080", e.Format())
}

func TestEndpoint_FormatIPv6Bracketed(t *testing.T) {
	e, err := Parse("[::1]:60000")
	require.NoError(t, err)
	require.Equal(t, FamilyIPv6, e.Family())
	require.Equal(t, 16, e.Size())
	require.Equal(t, "[::1]:60000", e.Format())
}

func TestEndpoint_ParseRejectsTrailingGarbage(t *testing.T) {
	_, err := Parse("192.168.1.7:8080extra")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestEndpoint_ToCharsTooSmall(t *testing.T) {
	e, err := Parse("[::1]:60000")
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = e.ToChars(buf)
	require.ErrorIs(t, err, ErrValueTooLarge)
}

func TestEndpoint_ToCharsFromCharsRoundTrip(t *testing.T) {
	cases := []string{
		"127.0.0.1:1",
		"255.255.255.255:65535",
		"[::1]:60000",
		"[2001:db8::1]:443",
	}
	for _, s := range cases {
		e, err := Parse(s)
		require.NoError(t, err)

		buf := make([]byte, 64)
		n, err := e.ToChars(buf)
		require.NoError(t, err)

		got, err := FromChars(buf[:n])
		require.NoError(t, err)
		require.Equal(t, e, got)
		require.Equal(t, s, got.Format())
	}
}

func TestEndpoint_AddrPortRoundTrip(t *testing.T) {
	e, err := Parse("10.0.0.1:53")
	require.NoError(t, err)
	got := FromAddrPort(e.AddrPort())
	require.Equal(t, e, got)
}

func TestEndpoint_ZeroValue(t *testing.T) {
	var e Endpoint
	require.False(t, e.IsValid())
	require.Equal(t, FamilyNone, e.Family())
	require.Equal(t, "", e.Format())
}
