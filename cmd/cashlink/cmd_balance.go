package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/weave"
)

func cmdBalance(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Print all coins held by an account. If no address is given, the account of
the private key is used.
`)
		fl.PrintDefaults()
	}
	var (
		tmAddrFl = fl.String("tm", defaultTmAddr(),
			"Tendermint node address. Use proper NETWORK name. You can use CASHLINK_TM_ADDR environment variable to set it.")
		keyPathFl = fl.String("key", defaultKeyPath(),
			"Path to the private key file. You can use CASHLINK_PRIV_KEY environment variable to set it.")
		addrFl = flAddress(fl, "addr", "", "Account address, bech32 or hex.")
	)
	fl.Parse(args)

	addr := *addrFl
	if len(addr) == 0 {
		key, err := loadKey(*keyPathFl)
		if err != nil {
			return err
		}
		addr = client.Address(key)
	}

	bns := client.NewClient(client.NewHTTPConnection(*tmAddrFl))
	defer bns.Close()
	return printBalance(output, bns, addr)
}

type walletGetter interface {
	GetWallet(weave.Address) (*client.WalletResponse, error)
}

func printBalance(output io.Writer, bns walletGetter, addr weave.Address) error {
	resp, err := bns.GetWallet(addr)
	if err != nil {
		return fmt.Errorf("cannot query wallet: %s", err)
	}
	if resp == nil || len(resp.Wallet.Coins) == 0 {
		_, err := fmt.Fprintln(output, "no funds")
		return err
	}
	for _, c := range resp.Wallet.Coins {
		if _, err := fmt.Fprintln(output, c.String()); err != nil {
			return err
		}
	}
	return nil
}
