package issue

import (
	"context"

	"github.com/iov-one/cashlink/cashlink"
	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// Claimer moves the funds held by a cashlink to a destination address.
type Claimer struct {
	ledger client.Client
	fee    coin.Coin
	logger log.Logger
}

// NewClaimer returns a claimer that pays given fee for each claim. The fee
// ticker selects the currency that is claimed.
func NewClaimer(ledger client.Client, fee coin.Coin, logger log.Logger) *Claimer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Claimer{ledger: ledger, fee: fee, logger: logger}
}

// Claim is the outcome of a successful claim.
type Claim struct {
	// Source is the cashlink address.
	Source weave.Address
	// Amount is the value transferred, fee excluded.
	Amount coin.Coin
	// Message is the text embedded in the cashlink.
	Message string
	TxID    client.TransactionID
	// Tx is the submitted transfer.
	Tx weave.Tx
}

// Claim transfers the whole balance of the cashlink, minus the fee, to dst.
// The balance held on the ledger is claimed, not the value declared by the
// link.
func (c *Claimer) Claim(ctx context.Context, link string, dst weave.Address) (*Claim, error) {
	if err := dst.Validate(); err != nil {
		return nil, errors.Wrap(err, "destination")
	}
	payload, err := cashlink.ParseLink(link)
	if err != nil {
		return nil, err
	}
	key, err := client.PrivateKeyFromSeed(payload.Secret)
	if err != nil {
		return nil, errors.Wrap(err, "cashlink key")
	}
	src := client.Address(key)
	logger := c.logger.With("cashlink", src.String())

	balance, err := client.NewAccount(c.ledger, src, c.fee.Ticker).Coin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "balance")
	}
	if balance.Compare(c.fee) <= 0 {
		return nil, errors.Wrapf(errors.ErrAmount, "balance %s does not cover the fee %s", balance, c.fee)
	}
	amount, err := balance.Subtract(c.fee)
	if err != nil {
		return nil, errors.Wrap(err, "amount")
	}
	if declared := client.UnitsToCoin(payload.Value, c.fee.Ticker); balance.Compare(declared) != 0 {
		logger.Info("balance differs from cashlink value", "balance", balance.String(), "value", declared.String())
	}

	chainID, err := c.ledger.ChainID()
	if err != nil {
		return nil, errors.Wrap(err, "chain id")
	}
	n, err := client.NewNonce(c.ledger, src).Next()
	if err != nil {
		return nil, errors.Wrap(err, "nonce")
	}
	tx := client.BuildSendTx(src, dst, amount, c.fee, "cashlink claim")
	if err := client.SignTx(tx, key, chainID, n); err != nil {
		return nil, err
	}
	id, err := c.ledger.SubmitTx(tx)
	if err != nil {
		return nil, errors.Wrap(err, "submit")
	}
	logger.Info("cashlink claimed", "amount", amount.String(), "tx", id.String())
	return &Claim{
		Source:  src,
		Amount:  amount,
		Message: payload.Message,
		TxID:    id,
		Tx:      tx,
	}, nil
}
