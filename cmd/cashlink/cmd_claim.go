package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/cashlink/issue"
)

func cmdClaim(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Transfer the funds held by a cashlink to the destination account. The whole
balance, minus the fee, is claimed.

The cashlink is given as the only argument.
`)
		fl.PrintDefaults()
	}
	var (
		tmAddrFl = fl.String("tm", defaultTmAddr(),
			"Tendermint node address. Use proper NETWORK name. You can use CASHLINK_TM_ADDR environment variable to set it.")
		dstFl      = flAddress(fl, "dst", "", "Destination account address, bech32 or hex.")
		feeFl      = flCoin(fl, "fee", "0 IOV", "Fee paid by the cashlink. Its currency is the claimed currency.")
		timeoutFl  = fl.Duration("timeout", 30*time.Second, "Give up if the claim was not submitted within this time.")
		waitFl     = fl.Bool("wait", false, "Wait until the claim transfer is included in a block.")
		logLevelFl = fl.String("log-level", "info", "Log level, one of debug, info, error or none.")
	)
	fl.Parse(args)

	if fl.NArg() != 1 {
		flagDie("exactly one cashlink must be given")
		return nil
	}
	if len(*dstFl) == 0 {
		flagDie("destination address is required")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFl)
	defer cancel()
	ctx = cancelOnInterrupt(ctx)

	bns := client.NewClient(client.NewHTTPConnection(*tmAddrFl))
	defer bns.Close()
	logger := newLogger(os.Stderr, *logLevelFl)
	claim, err := issue.NewClaimer(bns, *feeFl, logger).Claim(ctx, fl.Arg(0), *dstFl)
	if err != nil {
		return fmt.Errorf("cannot claim: %s", err)
	}
	if claim.Message != "" {
		fmt.Fprintf(output, "%q\n", claim.Message)
	}
	_, err = fmt.Fprintf(output, "claimed %s in transaction %s\n", claim.Amount, claim.TxID)
	if err != nil || !*waitFl {
		return err
	}
	res, err := bns.WaitForTx(ctx, claim.Tx, *timeoutFl)
	if err != nil {
		return fmt.Errorf("claim transfer failed: %s", err)
	}
	_, err = fmt.Fprintf(output, "included at height %d\n", res.Height)
	return err
}

// cancelOnInterrupt returns a context cancelled when the process receives
// an interrupt signal.
func cancelOnInterrupt(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		defer signal.Stop(sig)
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
