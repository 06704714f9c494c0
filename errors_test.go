package asyncsock

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := newError("send", KindNotConnected, stderrors.New("boom"))

	require.True(t, Is(err, KindNotConnected))
	require.False(t, Is(err, KindTimedOut))

	wrapped := fmtWrap(err)
	require.True(t, stderrors.Is(wrapped, &Error{Kind: KindNotConnected}))
}

func TestError_KindOf(t *testing.T) {
	k, ok := KindOf(newError("accept", KindBadFileDescriptor, nil))
	require.True(t, ok)
	require.Equal(t, KindBadFileDescriptor, k)

	_, ok = KindOf(stderrors.New("not ours"))
	require.False(t, ok)
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "not_connected", KindNotConnected.String())
	require.Equal(t, "message_too_large", KindMessageTooLarge.String())
}

func fmtWrap(err error) error {
	return stderrors.Join(err)
}
