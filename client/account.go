package client

import (
	"context"
	"strings"
	"sync"

	"github.com/iov-one/cashlink/funding"
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
)

type walletReader interface {
	GetWallet(addr weave.Address) (*WalletResponse, error)
	SubscribeHeaders(out chan<- *Header) (func(), error)
}

// Account exposes the balance of a single ticker held by an address. A new
// block header is used as the balance change notification.
type Account struct {
	client walletReader
	addr   weave.Address
	ticker string
}

var _ funding.Account = (*Account)(nil)

// NewAccount returns an account view of given address.
func NewAccount(c walletReader, addr weave.Address, ticker string) *Account {
	return &Account{client: c, addr: addr, ticker: ticker}
}

// Address returns the address of this account.
func (a *Account) Address() weave.Address {
	return a.addr
}

// Coin returns the current balance of this account. A missing wallet has a
// zero balance.
func (a *Account) Coin(ctx context.Context) (coin.Coin, error) {
	zero := coin.NewCoin(0, 0, a.ticker)
	w, err := a.client.GetWallet(a.addr)
	if err != nil {
		return zero, err
	}
	if w == nil {
		return zero, nil
	}
	if c, ok := FindCoinByTicker(w.Wallet.Coins, a.ticker); ok {
		return *c, nil
	}
	return zero, nil
}

// Balance returns the current balance in fractional units.
func (a *Account) Balance(ctx context.Context) (uint64, error) {
	c, err := a.Coin(ctx)
	if err != nil {
		return 0, err
	}
	return CoinToUnits(c)
}

// Subscribe implements funding.Account. Signals are coalesced, a pending
// signal is not duplicated while it was not consumed.
func (a *Account) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	headers := make(chan *Header, 1)
	cancel, err := a.client.SubscribeHeaders(headers)
	if err != nil {
		return nil, nil, err
	}

	signals := make(chan struct{}, 1)
	stop := make(chan struct{})
	go func() {
		defer close(signals)
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case _, ok := <-headers:
				if !ok {
					return
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			cancel()
		})
	}
	return signals, release, nil
}

// FindCoinByTicker returns the first coin of given ticker.
func FindCoinByTicker(coins coin.Coins, ticker string) (*coin.Coin, bool) {
	for _, c := range coins {
		if strings.EqualFold(ticker, c.Ticker) {
			return c, true
		}
	}
	return nil, false
}
