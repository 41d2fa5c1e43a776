package issue

import (
	"strings"

	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
)

// FundingRequest returns a wallet link that requests given amount to be
// sent to given address:
//
//   <wallet url>#_request/<bech32 address>/<amount>_
//
// The amount is a decimal number without the ticker.
func FundingRequest(walletURL, hrp string, addr weave.Address, amount coin.Coin) (string, error) {
	human, err := client.HumanAddress(hrp, addr)
	if err != nil {
		return "", err
	}
	value := strings.TrimSuffix(amount.String(), " "+amount.Ticker)
	base := strings.TrimRight(walletURL, "#")
	return base + "#_request/" + human + "/" + value + "_", nil
}
