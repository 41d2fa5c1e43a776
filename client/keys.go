package client

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/crypto"
	"github.com/iov-one/weave/crypto/bech32"
	"github.com/iov-one/weave/errors"
	"github.com/stellar/go/exp/crypto/derivation"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ed25519"
)

// KeyPerm is the file permissions for saved private keys
const KeyPerm = 0600

type PrivateKey = crypto.PrivateKey

// GenPrivateKey creates a new random key.
func GenPrivateKey() *PrivateKey {
	return crypto.GenPrivKeyEd25519()
}

// PrivateKeyFromSeed returns the ed25519 key derived from given 32 byte
// seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Wrapf(errors.ErrInput, "seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return crypto.PrivKeyEd25519FromSeed(seed), nil
}

// Seed returns the 32 byte seed the given ed25519 key was derived from.
func Seed(key *PrivateKey) ([]byte, error) {
	raw := key.GetEd25519()
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Wrap(errors.ErrInput, "not an ed25519 key")
	}
	return ed25519.PrivateKey(raw).Seed(), nil
}

// Address returns the weave address of the signature condition of given
// key.
func Address(key *PrivateKey) weave.Address {
	return key.PublicKey().Address()
}

// HumanAddress returns the bech32 representation of given address.
func HumanAddress(hrp string, addr weave.Address) (string, error) {
	raw, err := bech32.Encode(hrp, addr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParseAddress accepts both the bech32 and the hex representation of an
// address.
func ParseAddress(raw string) (weave.Address, error) {
	if strings.Contains(raw, "1") && !isHex(raw) {
		_, addr, err := bech32.Decode(raw)
		if err != nil {
			return nil, err
		}
		return weave.Address(addr), weave.Address(addr).Validate()
	}
	return weave.ParseAddress(raw)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Mnemonic returns the BIP-39 mnemonic of the seed of given key. The key
// can be recovered with PrivateKeyFromMnemonic.
func Mnemonic(key *PrivateKey) (string, error) {
	seed, err := Seed(key)
	if err != nil {
		return "", err
	}
	m, err := bip39.NewMnemonic(seed)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInput, "mnemonic: %s", err)
	}
	return m, nil
}

// PrivateKeyFromMnemonic recovers a key backed up with Mnemonic.
func PrivateKeyFromMnemonic(mnemonic string) (*PrivateKey, error) {
	seed, err := bip39.EntropyFromMnemonic(strings.Join(strings.Fields(mnemonic), " "))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "mnemonic: %s", err)
	}
	return PrivateKeyFromSeed(seed)
}

// DefaultDerivationPath is the path of the first account of an IOV wallet.
const DefaultDerivationPath = "m/44'/234'/0'"

// PrivateKeyFromHDMnemonic derives the key of an HD wallet account, as
// created by the IOV wallets, using SLIP-10 ed25519 derivation of the
// BIP-39 seed.
//
// This is not the inverse of Mnemonic. See PrivateKeyFromMnemonic for
// that.
func PrivateKeyFromHDMnemonic(mnemonic, path string) (*PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "mnemonic: %s", err)
	}
	k, err := derivation.DeriveForPath(path, seed)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "derivation path %q: %s", path, err)
	}
	return PrivateKeyFromSeed(k.Key)
}

// LoadPrivateKey reads a raw ed25519 private key file as written by
// SavePrivateKey.
func LoadPrivateKey(filename string) (*PrivateKey, error) {
	raw, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(errors.ErrInput, "invalid private key length: %d", len(raw))
	}
	return &PrivateKey{Priv: &crypto.PrivateKey_Ed25519{Ed25519: raw}}, nil
}

// SavePrivateKey writes the raw ed25519 private key to the named file.
//
// Refuses to overwrite a file unless force is true
func SavePrivateKey(key *PrivateKey, filename string, force bool) error {
	if err := canWrite(filename, force); err != nil {
		return err
	}
	raw := key.GetEd25519()
	if len(raw) != ed25519.PrivateKeySize {
		return errors.Wrap(errors.ErrInput, "not an ed25519 key")
	}
	return errors.Wrap(ioutil.WriteFile(filename, raw, KeyPerm), "write key file")
}

// canWrite is a little helper to check if we want to write a file
func canWrite(filename string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(filename); err == nil {
		return errors.Wrapf(errors.ErrDuplicate, "refusing to overwrite: %s", filename)
	}
	return nil
}
