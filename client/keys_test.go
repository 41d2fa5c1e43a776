package client

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest/assert"
)

func TestGeneration(t *testing.T) {
	private := GenPrivateKey()
	private2 := GenPrivateKey()

	assert.Equal(t, private, private)
	assert.Equal(t, false, reflect.DeepEqual(private, private2))
	assert.Equal(t, false, Address(private).Equals(Address(private2)))
}

func TestSeed(t *testing.T) {
	private := GenPrivateKey()
	seed, err := Seed(private)
	assert.Nil(t, err)
	assert.Equal(t, 32, len(seed))

	restored, err := PrivateKeyFromSeed(seed)
	assert.Nil(t, err)
	assert.Equal(t, private, restored)

	if _, err := PrivateKeyFromSeed(seed[1:]); !errors.ErrInput.Is(err) {
		t.Fatalf("want input error, got %+v", err)
	}
}

func TestMnemonic(t *testing.T) {
	private := GenPrivateKey()
	m, err := Mnemonic(private)
	assert.Nil(t, err)
	assert.Equal(t, 24, len(strings.Fields(m)))

	// Whitespace layout does not matter, the backup is printed in groups.
	restored, err := PrivateKeyFromMnemonic(strings.Replace(m, " ", "\n  ", -1))
	assert.Nil(t, err)
	assert.Equal(t, private, restored)

	if _, err := PrivateKeyFromMnemonic("not a valid mnemonic"); err == nil {
		t.Fatal("want an error")
	}
}

func TestHDMnemonic(t *testing.T) {
	const mnemonic = `shy else mystery outer define there front bracket dawn honey excuse virus lazy book kiss cannon oven law coconut hedgehog veteran narrow great cage`

	// Addresses of the first IOV wallet accounts of this mnemonic.
	cases := map[string]string{
		"m/44'/234'/0'": "tiov1c3n70dph9m2jepszfmmh84pu75zuga3zrsd7jw",
		"m/44'/234'/1'": "tiov10lzv8v2lds7jvmkdt6t6khmhydr920r2yux8p9",
		"m/44'/234'/4'": "tiov16rjld9tw88yrcc954cvvtnern576daunnn8jmn",
	}
	for path, want := range cases {
		t.Run(path, func(t *testing.T) {
			key, err := PrivateKeyFromHDMnemonic(mnemonic, path)
			assert.Nil(t, err)
			got, err := HumanAddress("tiov", Address(key))
			assert.Nil(t, err)
			assert.Equal(t, want, got)
		})
	}

	if _, err := PrivateKeyFromHDMnemonic(mnemonic, "44/234"); !errors.ErrInput.Is(err) {
		t.Fatalf("want input error, got %+v", err)
	}
	if _, err := PrivateKeyFromHDMnemonic("shy else mystery", DefaultDerivationPath); !errors.ErrInput.Is(err) {
		t.Fatalf("want input error, got %+v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "cashlink-keys-test")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	filename := filepath.Join(dir, "wallet.key")
	private := GenPrivateKey()
	private2 := GenPrivateKey()

	assert.Nil(t, SavePrivateKey(private, filename, false))
	loaded, err := LoadPrivateKey(filename)
	assert.Nil(t, err)
	assert.Equal(t, private, loaded)

	// File content is compatible with the raw key format.
	raw, err := ioutil.ReadFile(filename)
	assert.Nil(t, err)
	assert.Equal(t, true, bytes.Equal(raw, private.GetEd25519()))

	// try to over-write, but fails
	if err := SavePrivateKey(private2, filename, false); !errors.ErrDuplicate.Is(err) {
		t.Fatalf("want duplicate error, got %+v", err)
	}
	assert.Nil(t, SavePrivateKey(private2, filename, true))
	loaded, err = LoadPrivateKey(filename)
	assert.Nil(t, err)
	assert.Equal(t, private2, loaded)

	corrupted := filepath.Join(dir, "corrupted.key")
	assert.Nil(t, ioutil.WriteFile(corrupted, raw[:10], KeyPerm))
	if _, err := LoadPrivateKey(corrupted); !errors.ErrInput.Is(err) {
		t.Fatalf("want input error, got %+v", err)
	}
}

func TestHumanAddress(t *testing.T) {
	addr := Address(GenPrivateKey())

	human, err := HumanAddress("tiov", addr)
	assert.Nil(t, err)
	assert.Equal(t, true, strings.HasPrefix(human, "tiov1"))

	parsed, err := ParseAddress(human)
	assert.Nil(t, err)
	assert.Equal(t, addr, parsed)

	parsed, err = ParseAddress(addr.String())
	assert.Nil(t, err)
	assert.Equal(t, addr, parsed)
}
