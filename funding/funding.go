/*
Package funding implements waiting for an account balance to reach a target
while the funds arrive in any number of separate, unordered transfers.
*/
package funding

import (
	"context"
	"sync"

	"github.com/iov-one/weave/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// ErrBalanceQuery is returned when the balance of an account cannot be read
// or the change notifications cannot be received.
var ErrBalanceQuery = errors.Register(7010, "balance query failed")

// QueryError marks err as a balance query failure. The returned error is
// both ErrBalanceQuery and the original cause.
func QueryError(err error, description string) error {
	return errors.Wrap(errors.Append(ErrBalanceQuery, err), description)
}

// Account is the ledger view of a single funded account.
type Account interface {
	// Balance returns the current balance in fractional units.
	Balance(ctx context.Context) (uint64, error)

	// Subscribe starts delivering a signal each time the balance might
	// have changed. Signals can be duplicated and carry no ordering
	// guarantee. Returned function releases the subscription and must be
	// called exactly once.
	Subscribe(ctx context.Context) (<-chan struct{}, func(), error)
}

// Progress is emitted each time a higher balance is observed.
type Progress struct {
	// Received is the amount that arrived since the previous observation.
	Received uint64
	// Balance is the highest balance observed so far.
	Balance uint64
	// Remaining is the amount still missing to reach the target.
	Remaining uint64
}

// Waiter blocks until an account holds at least the requested amount.
type Waiter struct {
	account  Account
	logger   log.Logger
	progress func(Progress)
}

// NewWaiter returns a waiter for given account. Progress function is
// optional.
func NewWaiter(account Account, logger log.Logger, progress func(Progress)) *Waiter {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Waiter{
		account:  account,
		logger:   logger,
		progress: progress,
	}
}

// EnsureFunded returns as soon as the account balance is at least target.
// It returns the highest balance observed.
//
// If the balance is already sufficient no subscription is created. Otherwise
// the balance is read again after each change notification. A lower read
// than previously observed is ignored, the completion check always uses the
// highest balance seen.
//
// There is no timeout. Funding depends on an external party, use the context
// to bound the wait.
func (w *Waiter) EnsureFunded(ctx context.Context, target uint64) (uint64, error) {
	balance, err := w.account.Balance(ctx)
	if err != nil {
		return 0, QueryError(err, "initial balance")
	}
	if balance >= target {
		w.logger.Debug("account funded", "balance", balance, "target", target)
		return balance, nil
	}

	signals, cancel, err := w.account.Subscribe(ctx)
	if err != nil {
		return balance, QueryError(err, "subscribe")
	}
	var once sync.Once
	release := func() { once.Do(cancel) }
	defer release()

	w.logger.Debug("waiting for funds", "balance", balance, "target", target)

	// Funds may arrive between the initial read and the subscription
	// start. Such a transfer would get no notification.
	observe := func() (bool, error) {
		current, err := w.account.Balance(ctx)
		if err != nil {
			return false, QueryError(err, "balance")
		}
		if current <= balance {
			if current < balance {
				w.logger.Debug("ignoring lower balance read", "read", current, "max", balance)
			}
			return false, nil
		}
		received := current - balance
		balance = current
		remaining := uint64(0)
		if balance < target {
			remaining = target - balance
		}
		w.logger.Debug("funds received", "received", received, "remaining", remaining)
		if w.progress != nil {
			w.progress(Progress{Received: received, Balance: balance, Remaining: remaining})
		}
		return balance >= target, nil
	}

	if done, err := observe(); err != nil || done {
		return balance, err
	}
	for {
		select {
		case <-ctx.Done():
			return balance, errors.Wrap(ctx.Err(), "waiting for funds")
		case _, ok := <-signals:
			if !ok {
				return balance, errors.Wrap(ErrBalanceQuery, "notification stream closed")
			}
			if done, err := observe(); err != nil || done {
				return balance, err
			}
		}
	}
}
