package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/iov-one/cashlink/cashlink"
	"github.com/iov-one/cashlink/client"
)

func cmdEncode(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Encode a single cashlink and print it. Nothing is sent to the network, the
cashlink is not funded.

If no secret is given a new key is generated.
`)
		fl.PrintDefaults()
	}
	var (
		secretFl  = fl.String("secret", "", "Hex encoded 32 byte key seed.")
		valueFl   = flCoin(fl, "value", "5 IOV", "Value declared by the cashlink.")
		messageFl = fl.String("message", "", "Message embedded in the cashlink.")
		hubFl     = fl.String("hub", env("CASHLINK_HUB_URL", ""),
			"Cashlink hub URL. If empty, only the token is printed. You can use CASHLINK_HUB_URL environment variable to set it.")
	)
	fl.Parse(args)

	var secret []byte
	if *secretFl != "" {
		raw, err := hex.DecodeString(*secretFl)
		if err != nil {
			flagDie("invalid secret: %s", err)
			return nil
		}
		secret = raw
	} else {
		seed, err := client.Seed(client.GenPrivateKey())
		if err != nil {
			return fmt.Errorf("cannot generate key: %s", err)
		}
		secret = seed
	}
	value, err := client.CoinToUnits(*valueFl)
	if err != nil {
		return fmt.Errorf("invalid value: %s", err)
	}

	p := &cashlink.Payload{Secret: secret, Value: value, Message: *messageFl}
	var out string
	if *hubFl == "" {
		out, err = cashlink.EncodeToken(p)
	} else {
		out, err = cashlink.Link(*hubFl, p)
	}
	if err != nil {
		return fmt.Errorf("cannot encode: %s", err)
	}
	_, err = fmt.Fprintln(output, out)
	return err
}

func cmdDecode(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Decode cashlinks or tokens, one per line, read from the input or given as
arguments, and print their content.
`)
		fl.PrintDefaults()
	}
	var (
		prefixFl = fl.String("prefix", "tiov", "Bech32 prefix of the printed address.")
		tickerFl = fl.String("ticker", "IOV", "Currency of the declared value.")
	)
	fl.Parse(args)

	links := fl.Args()
	if len(links) == 0 {
		sc := bufio.NewScanner(input)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				links = append(links, line)
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("cannot read input: %s", err)
		}
	}

	for _, link := range links {
		p, err := cashlink.ParseLink(link)
		if err != nil {
			return fmt.Errorf("cannot decode %q: %s", link, err)
		}
		key, err := client.PrivateKeyFromSeed(p.Secret)
		if err != nil {
			return fmt.Errorf("cannot decode %q: %s", link, err)
		}
		human, err := client.HumanAddress(*prefixFl, client.Address(key))
		if err != nil {
			return fmt.Errorf("cannot serialize to bech32: %s", err)
		}
		_, err = fmt.Fprintf(output, "address\t%s\nvalue\t%s\nmessage\t%q\n",
			human, client.UnitsToCoin(p.Value, *tickerFl), p.Message)
		if err != nil {
			return err
		}
	}
	return nil
}
