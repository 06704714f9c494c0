package asyncsock

// Handle is a native OS socket handle: an int fd on POSIX systems,
// widened to a platform-independent representation. On Windows it
// holds a SOCKET value.
type Handle uintptr

// InvalidHandle is the value an unopened or already-closed handle is
// set to.
const InvalidHandle Handle = ^Handle(0)

// Type is the socket type, independent of address family.
type Type int

const (
	TypeStream Type = iota
	TypeDatagram
)

// AddressFamily is the socket address family.
type AddressFamily int

const (
	FamilyIPv4 AddressFamily = iota
	FamilyIPv6
)
