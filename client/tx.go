package client

import (
	"github.com/iov-one/weave"
	bnsd "github.com/iov-one/weave/cmd/bnsd/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/x/cash"
	"github.com/iov-one/weave/x/sigs"
)

// BuildSendTx will create an unsigned tx to move tokens. A zero fee is not
// attached to the transaction.
func BuildSendTx(src, dest weave.Address, amount, fee coin.Coin, memo string) *bnsd.Tx {
	tx := &bnsd.Tx{
		Sum: &bnsd.Tx_CashSendMsg{
			CashSendMsg: &cash.SendMsg{
				Metadata:    &weave.Metadata{Schema: 1},
				Source:      src,
				Destination: dest,
				Amount:      &amount,
				Memo:        memo,
			},
		},
	}
	if !fee.IsZero() {
		tx.Fees = &cash.FeeInfo{
			Payer: src,
			Fees:  &fee,
		}
	}
	return tx
}

// SignTx modifies the tx in-place, adding signatures.
func SignTx(tx *bnsd.Tx, signer *PrivateKey, chainID string, nonce int64) error {
	sig, err := sigs.SignTx(signer, tx, chainID, nonce)
	if err != nil {
		return errors.Wrap(err, "sign")
	}
	tx.Signatures = append(tx.Signatures, sig)
	return nil
}

// ParseTx will load a serialized tx into a format we can read.
func ParseTx(data []byte) (*bnsd.Tx, error) {
	var tx bnsd.Tx
	if err := tx.Unmarshal(data); err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}
	return &tx, nil
}
