package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/cashlink/issue"
	"github.com/iov-one/cashlink/qrsheet"
)

func cmdGenerate(input io.Reader, output io.Writer, args []string) error {
	conf := issue.DefaultConfig()

	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Issue a batch of cashlinks.

The wallet must hold enough funds to fund all cashlinks. If it does not, a
funding request link is printed and the command waits until the missing
funds arrive. Interrupt the command to give up.

All cashlinks are rendered as a single SVG sheet of scannable codes. A CSV
manifest lists each cashlink and the transaction that funded it.
`)
		fl.PrintDefaults()
	}
	var (
		tmAddrFl = fl.String("tm", defaultTmAddr(),
			"Tendermint node address. Use proper NETWORK name. You can use CASHLINK_TM_ADDR environment variable to set it.")
		keyPathFl = fl.String("key", defaultKeyPath(),
			"Path to the private key file of the funding wallet. You can use CASHLINK_PRIV_KEY environment variable to set it.")
		tempFl = fl.Bool("temporary", false,
			"Fund the batch from a new temporary wallet. Its backup mnemonic is printed before anything else happens.")
		countFl    = fl.Int("count", conf.Count, "Number of cashlinks to issue.")
		valueFl    = flCoin(fl, "value", conf.Value.String(), "Value of each cashlink.")
		feeFl      = flCoin(fl, "fee", conf.Fee.String(), "Fee of each funding transfer, paid only when the batch is larger than the free tier.")
		freeFl     = fl.Int("free-tx", conf.FreeTxPerSender, "Number of transactions a sender can submit without paying a fee.")
		maxFl      = fl.Int("max-tx", conf.MaxTxPerSender, "Maximum number of cashlinks in a batch. Zero disables the limit.")
		messageFl  = fl.String("message", "Hi there!", "Message embedded in each cashlink.")
		hubFl      = fl.String("hub", env("CASHLINK_HUB_URL", conf.HubURL), "Cashlink hub URL. You can use CASHLINK_HUB_URL environment variable to set it.")
		walletFl   = fl.String("wallet", env("CASHLINK_WALLET_URL", conf.WalletURL), "Wallet URL used for the funding request. You can use CASHLINK_WALLET_URL environment variable to set it.")
		prefixFl   = fl.String("prefix", conf.AddressPrefix, "Bech32 prefix of printed addresses.")
		rateFl     = fl.Float64("rate", conf.SubmitRate, "Maximum number of transactions submitted per second. Zero disables the limit.")
		columnsFl  = fl.Int("columns", qrsheet.DefaultSheet().Columns, "Number of codes in a single row of the sheet.")
		outFl      = fl.String("out", conf.OutputDir, "Directory where the SVG sheet and the CSV manifest are written.")
		logLevelFl = fl.String("log-level", "info", "Log level, one of debug, info, error or none.")
	)
	fl.Parse(args)

	conf.Count = *countFl
	conf.Value = *valueFl
	conf.Fee = *feeFl
	conf.FreeTxPerSender = *freeFl
	conf.MaxTxPerSender = *maxFl
	conf.Message = *messageFl
	conf.HubURL = *hubFl
	conf.WalletURL = *walletFl
	conf.AddressPrefix = *prefixFl
	conf.SubmitRate = *rateFl
	conf.OutputDir = *outFl
	if err := conf.Validate(); err != nil {
		flagDie("invalid configuration: %s", err)
		return nil
	}

	var wallet *client.PrivateKey
	if *tempFl {
		wallet = client.GenPrivateKey()
		mnemonic, err := client.Mnemonic(wallet)
		if err != nil {
			return fmt.Errorf("cannot create temporary wallet: %s", err)
		}
		fmt.Fprintf(output, "Temporary wallet backup mnemonic, keep it until the batch is claimed:\n%s\n\n", groupWords(mnemonic, 4))
	} else {
		key, err := loadKey(*keyPathFl)
		if err != nil {
			return err
		}
		wallet = key
	}

	ctx := cancelOnInterrupt(context.Background())
	bns := client.NewClient(client.NewHTTPConnection(*tmAddrFl))
	defer bns.Close()
	logger := newLogger(os.Stderr, *logLevelFl)

	sheet := qrsheet.DefaultSheet()
	sheet.Columns = *columnsFl
	if err := sheet.Validate(); err != nil {
		flagDie("invalid sheet: %s", err)
		return nil
	}

	report, err := issue.NewIssuer(conf, bns, wallet, logger).WithSheet(sheet).Run(ctx)
	if report != nil && len(report.Entries) != 0 {
		fmt.Fprintf(output, "funded %d of %d cashlinks\n", report.Funded(), len(report.Entries))
		if report.SheetPath != "" {
			fmt.Fprintf(output, "sheet: %s\n", report.SheetPath)
		}
		if report.ManifestPath != "" {
			fmt.Fprintf(output, "manifest: %s\n", report.ManifestPath)
		}
	}
	if err != nil {
		return fmt.Errorf("cannot issue cashlinks: %s", err)
	}
	return nil
}
