package cashlink

import "github.com/iov-one/weave/errors"

var (
	// ErrMalformedPayload is returned when a binary payload or its
	// transport form cannot be decoded.
	ErrMalformedPayload = errors.Register(7001, "malformed payload")

	// ErrInvalidMessageLength is returned when the message does not fit
	// into the single length byte of the binary layout.
	ErrInvalidMessageLength = errors.Register(7002, "invalid message length")
)
