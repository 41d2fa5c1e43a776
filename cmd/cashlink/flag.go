package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/tendermint/tendermint/libs/log"
)

// flagDie terminates the program when a flag value is invalid. It is a
// variable so that tests can replace it.
var flagDie = func(description string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, description, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(2)
}

// flCoin returns a value that is being initialized with given default value
// and optionally overwritten by a command line argument if provided. This
// function follows Go's flag package convention.
// If given value cannot be deserialized to required type, process is
// terminated.
func flCoin(fl *flag.FlagSet, name, defaultVal, usage string) *coin.Coin {
	var c coin.Coin
	if defaultVal != "" {
		var err error
		c, err = coin.ParseHumanFormat(defaultVal)
		if err != nil {
			flagDie("Cannot parse %q coin flag value. %s", name, err)
		}
	}
	fl.Var(&c, name, usage)
	return &c
}

// flAddress returns an address flag accepting both the bech32 and the hex
// representation.
func flAddress(fl *flag.FlagSet, name, defaultVal, usage string) *weave.Address {
	a := flagAddress{}
	if defaultVal != "" {
		if err := a.Set(defaultVal); err != nil {
			flagDie("Cannot parse %q address flag value. %s", name, err)
		}
	}
	fl.Var(&a, name, usage)
	return &a.addr
}

type flagAddress struct {
	addr weave.Address
}

func (a *flagAddress) String() string {
	if a == nil || a.addr == nil {
		return ""
	}
	return a.addr.String()
}

func (a *flagAddress) Set(raw string) error {
	addr, err := client.ParseAddress(raw)
	if err != nil {
		return err
	}
	a.addr = addr
	return nil
}

// newLogger returns a structured logger writing to out, filtered by given
// level name.
func newLogger(out io.Writer, level string) log.Logger {
	logger := log.NewTMLogger(log.NewSyncWriter(out)).With("module", "cashlink")
	opt, err := log.AllowLevel(strings.ToLower(level))
	if err != nil {
		flagDie("invalid log level %q: %s", level, err)
		return logger
	}
	return log.NewFilter(logger, opt)
}
