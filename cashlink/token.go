package cashlink

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/iov-one/weave/errors"
)

const (
	// padding is the base64url padding character used by the binary to
	// text step.
	padding = '.'

	// fragmentPadding replaces padding in the transport token.
	fragmentPadding = '='
)

var tokenEncoding = base64.URLEncoding.WithPadding(padding)

// EncodeToken returns the transport form of given payload.
func EncodeToken(p *Payload) (string, error) {
	raw, err := Encode(p)
	if err != nil {
		return "", err
	}
	token := tokenEncoding.EncodeToString(raw)
	return strings.Replace(token, string(padding), string(fragmentPadding), -1), nil
}

// DecodeToken parses the transport form created by EncodeToken. Tokens with
// either padding character or without any padding are accepted.
func DecodeToken(token string) (*Payload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.Wrap(ErrMalformedPayload, "empty token")
	}

	token = strings.Replace(token, string(fragmentPadding), string(padding), -1)
	token = strings.TrimRight(token, string(padding))
	raw, err := tokenEncoding.WithPadding(base64.NoPadding).DecodeString(token)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedPayload, "base64: %s", err)
	}
	return Decode(raw)
}

// Link returns the hub URL with the transport token of given payload set as
// the fragment.
func Link(hubURL string, p *Payload) (string, error) {
	token, err := EncodeToken(p)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInput, "hub url: %s", err)
	}
	u.Fragment = ""
	// The token alphabet is fragment safe and must not be escaped.
	return u.String() + "#" + token, nil
}

// ParseLink decodes the payload from a link created by Link. A bare token is
// accepted as well.
func ParseLink(link string) (*Payload, error) {
	link = strings.TrimSpace(link)
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[i+1:]
	}
	return DecodeToken(link)
}
