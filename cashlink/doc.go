/*
Package cashlink implements the binary encoding of a cashlink claim payload
and its URL fragment safe transport form.

A cashlink is a bearer credential. It carries a one-time private key seed,
the value that was transferred to the address of that key and an optional
message for the recipient. Anyone holding the link can claim the funds.

Binary layout

	seed     32 bytes
	value     8 bytes, big-endian unsigned
	length    1 byte, only present when the message is not empty
	message   length bytes of UTF-8 text

There is no version or tag byte. An empty message is encoded by omitting
both the length byte and the message bytes.

Transport form

The binary payload is base64url encoded using "." as the padding character
and every "." is then replaced with "=". The result is used as the fragment
of a hub link, for example

	https://wallet.iov.one/cashlink/#<token>

*/
package cashlink
