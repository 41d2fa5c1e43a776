package main

import (
	"os"
)

// env returns the value of an environment variable if provided (even if empty)
// or a fallback value.
func env(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}

func defaultKeyPath() string {
	return env("CASHLINK_PRIV_KEY", os.Getenv("HOME")+"/.cashlink.priv.key")
}

func defaultTmAddr() string {
	return env("CASHLINK_TM_ADDR", "https://rpc.iov-testnet.example:443")
}
