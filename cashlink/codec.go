package cashlink

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/iov-one/weave/errors"
)

const (
	// KeySize is the length of the private key seed carried by a cashlink.
	KeySize = 32

	// MaxMessageSize is the maximum length in bytes of an UTF-8 encoded
	// message.
	MaxMessageSize = 255

	valueSize = 8
	headSize  = KeySize + valueSize
)

// Payload is the decoded content of a single cashlink.
type Payload struct {
	// Secret is the ed25519 seed of the one-time key. The codec does not
	// validate the key material beyond its length.
	Secret []byte
	// Value is the amount transferred to the one-time key address,
	// expressed in fractional units.
	Value uint64
	// Message is an optional text for the recipient.
	Message string
}

// Size returns the length of the binary representation of this payload.
func (p *Payload) Size() int {
	if len(p.Message) == 0 {
		return headSize
	}
	return headSize + 1 + len(p.Message)
}

// Validate returns an error if this payload cannot be encoded.
func (p *Payload) Validate() error {
	if len(p.Secret) != KeySize {
		return errors.Wrapf(ErrMalformedPayload, "secret must be %d bytes, got %d", KeySize, len(p.Secret))
	}
	if len(p.Message) > MaxMessageSize {
		return errors.Wrapf(ErrInvalidMessageLength, "message is %d bytes, max %d", len(p.Message), MaxMessageSize)
	}
	if !utf8.ValidString(p.Message) {
		return errors.Wrap(ErrMalformedPayload, "message is not valid UTF-8")
	}
	return nil
}

// Encode returns the binary representation of given payload. A message
// longer than MaxMessageSize bytes is rejected, never truncated.
func Encode(p *Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw := make([]byte, p.Size())
	copy(raw, p.Secret)
	binary.BigEndian.PutUint64(raw[KeySize:headSize], p.Value)
	if n := len(p.Message); n != 0 {
		raw[headSize] = byte(n)
		copy(raw[headSize+1:], p.Message)
	}
	return raw, nil
}

// Decode parses the binary representation created by Encode.
func Decode(raw []byte) (*Payload, error) {
	if len(raw) < headSize {
		return nil, errors.Wrapf(ErrMalformedPayload, "payload is %d bytes, min %d", len(raw), headSize)
	}
	p := Payload{
		Secret: append([]byte(nil), raw[:KeySize]...),
		Value:  binary.BigEndian.Uint64(raw[KeySize:headSize]),
	}

	rest := raw[headSize:]
	if len(rest) == 0 {
		return &p, nil
	}

	// An empty message is never serialized with a length byte. Accepting
	// it would allow two encodings of the same payload.
	n := int(rest[0])
	rest = rest[1:]
	switch {
	case n == 0:
		return nil, errors.Wrap(ErrMalformedPayload, "zero message length")
	case n > len(rest):
		return nil, errors.Wrapf(ErrMalformedPayload, "message declares %d bytes, %d available", n, len(rest))
	case n < len(rest):
		return nil, errors.Wrapf(ErrMalformedPayload, "%d trailing bytes", len(rest)-n)
	}
	if !utf8.Valid(rest) {
		return nil, errors.Wrap(ErrMalformedPayload, "message is not valid UTF-8")
	}
	p.Message = string(rest)
	return &p, nil
}
