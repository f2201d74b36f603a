// ABOUTME: Error values returned at the decoder session boundary
// ABOUTME: Engine failures are translated into these before reaching the host
package decode

import "errors"

var (
	// ErrInitialization means the engine rejected the session parameters
	ErrInitialization = errors.New("decoder initialization failed")

	// ErrDecodeFailure means a packet could not be turned into a frame.
	// The session stays usable.
	ErrDecodeFailure = errors.New("packet decode failed")

	// ErrClosed is returned by any call on a closed session
	ErrClosed = errors.New("decoder session closed")

	// ErrUnknownCodec is returned by Registry.Open for unregistered codecs
	ErrUnknownCodec = errors.New("unknown codec")

	errEmptyPacket  = errors.New("empty packet")
	errEngineClosed = errors.New("engine closed")
)
