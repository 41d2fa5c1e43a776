package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iov-one/cashlink/client"
)

func cmdKeygen(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Generate a new private key or restore one from its mnemonic.

When successful a new file with binary content containing private key is
created and the backup mnemonic is printed. This command fails if the private
key file already exists.
`)
		fl.PrintDefaults()
	}
	var (
		keyPathFl = fl.String("key", defaultKeyPath(),
			"Path to the private key file. You can use CASHLINK_PRIV_KEY environment variable to set it.")
		mnemonicFl = fl.String("mnemonic", "",
			"Restore the key from this BIP-39 mnemonic instead of generating a new one.")
		pathFl = fl.String("path", "",
			"Treat the mnemonic as an IOV wallet mnemonic and derive the account of this path, for example "+client.DefaultDerivationPath+". By default the mnemonic is a backup printed by this command.")
	)
	fl.Parse(args)

	if *pathFl != "" && *mnemonicFl == "" {
		flagDie("derivation path requires a mnemonic")
		return nil
	}

	var key *client.PrivateKey
	switch {
	case *pathFl != "":
		k, err := client.PrivateKeyFromHDMnemonic(*mnemonicFl, *pathFl)
		if err != nil {
			return fmt.Errorf("cannot derive key: %s", err)
		}
		key = k
	case *mnemonicFl != "":
		k, err := client.PrivateKeyFromMnemonic(*mnemonicFl)
		if err != nil {
			return fmt.Errorf("cannot restore key: %s", err)
		}
		key = k
	default:
		key = client.GenPrivateKey()
	}

	// Do not allow to overwrite already existing private key. User must
	// manually delete it first.
	if err := client.SavePrivateKey(key, *keyPathFl, false); err != nil {
		return fmt.Errorf("cannot save private key: %s", err)
	}
	if *mnemonicFl != "" {
		return nil
	}
	mnemonic, err := client.Mnemonic(key)
	if err != nil {
		return fmt.Errorf("cannot create mnemonic: %s", err)
	}
	_, err = fmt.Fprintf(output, "Backup mnemonic:\n%s\n", groupWords(mnemonic, 4))
	return err
}

// groupWords breaks text into lines of n words.
func groupWords(text string, n int) string {
	words := strings.Fields(text)
	var lines []string
	for len(words) > n {
		lines = append(lines, strings.Join(words[:n], " "))
		words = words[n:]
	}
	if len(words) > 0 {
		lines = append(lines, strings.Join(words, " "))
	}
	return strings.Join(lines, "\n")
}

func cmdKeyaddr(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Print out the bech32 and the hex address associated with your private key.
`)
		fl.PrintDefaults()
	}
	var (
		keyPathFl = fl.String("key", defaultKeyPath(),
			"Path to the private key file. You can use CASHLINK_PRIV_KEY environment variable to set it.")
		prefixFl = fl.String("prefix", "tiov", "Bech32 prefix of the printed address.")
	)
	fl.Parse(args)

	key, err := client.LoadPrivateKey(*keyPathFl)
	if err != nil {
		return fmt.Errorf("cannot load private key: %s", err)
	}
	addr := client.Address(key)
	human, err := client.HumanAddress(*prefixFl, addr)
	if err != nil {
		return fmt.Errorf("cannot serialize to bech32: %s", err)
	}
	_, err = fmt.Fprintf(output, "%s\n%s\n", human, addr)
	return err
}

// loadKey reads the private key file with a user friendly message when it
// is missing.
func loadKey(path string) (*client.PrivateKey, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("private key file %q does not exist, create one with the keygen command", path)
	}
	key, err := client.LoadPrivateKey(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load private key: %s", err)
	}
	return key, nil
}
