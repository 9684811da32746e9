package sandbox

import (
	"context"
	"io"
)

// GuestSession is the bidirectional byte-stream a provider hands back once the guest is
// reachable: the NDJSON-framed vsock-equivalent channel.
type GuestSession interface {
	io.Reader
	io.Writer
	Close() error
}

// VMProvider isolates everything this package needs to know about the guest's lifecycle:
// staging the bundle into an attachable image, booting the microVM, and opening the
// guest channel. A real implementation drives Firecracker (stage into an ext4 image,
// boot via its API socket, connect over AF_VSOCK); ProcessProvider is the in-tree
// stand-in used when no hypervisor is available, and FakeProvider backs tests.
type VMProvider interface {
	// Stage injects bundle into whatever image/volume the guest will mount.
	Stage(ctx context.Context, bundle Bundle) error
	// Boot starts the guest and blocks until it is ready to accept a connection.
	Boot(ctx context.Context) error
	// Connect opens the guest channel. Safe to call once per Boot.
	Connect(ctx context.Context) (GuestSession, error)
	// Stop tears down the guest and releases any staged resources.
	Stop(ctx context.Context) error
}
