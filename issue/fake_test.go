package issue

import (
	"crypto/sha256"
	"sync"

	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/weave"
	bnsd "github.com/iov-one/weave/cmd/bnsd/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/x/cash"
	"github.com/iov-one/weave/x/sigs"
)

const testChainID = "test-chain-cashlink"

// ledger is an in memory client.Client. Submitted transfers are applied
// immediately, ignoring fees.
type ledger struct {
	mu        sync.Mutex
	balances  map[string]coin.Coin
	sequences map[string]int64
	submitted []*bnsd.Tx
	// failAt makes the submission with this index fail. Negative
	// disables.
	failAt    int
	submitErr error
	// walletErr fails every wallet query when set.
	walletErr error
	// onSubscribe is called instead of delivering headers.
	onSubscribe func(l *ledger, out chan<- *client.Header)
}

var _ client.Client = (*ledger)(nil)

func newLedger() *ledger {
	return &ledger{
		balances:  make(map[string]coin.Coin),
		sequences: make(map[string]int64),
		failAt:    -1,
	}
}

func (l *ledger) credit(addr weave.Address, c coin.Coin) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creditLocked(addr, c)
}

func (l *ledger) creditLocked(addr weave.Address, c coin.Coin) {
	cur, ok := l.balances[addr.String()]
	if !ok {
		l.balances[addr.String()] = c
		return
	}
	sum, err := cur.Add(c)
	if err != nil {
		panic(err)
	}
	l.balances[addr.String()] = sum
}

func (l *ledger) ChainID() (string, error) {
	return testChainID, nil
}

func (l *ledger) GetUser(addr weave.Address) (*client.UserResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq, ok := l.sequences[addr.String()]
	if !ok {
		return nil, nil
	}
	return &client.UserResponse{Address: addr, UserData: sigs.UserData{Sequence: seq}}, nil
}

func (l *ledger) GetWallet(addr weave.Address) (*client.WalletResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.walletErr != nil {
		return nil, l.walletErr
	}
	c, ok := l.balances[addr.String()]
	if !ok {
		return nil, nil
	}
	c = *c.Clone()
	return &client.WalletResponse{Address: addr, Wallet: cash.Set{Coins: coin.Coins{&c}}}, nil
}

func (l *ledger) SubscribeHeaders(out chan<- *client.Header) (func(), error) {
	if l.onSubscribe != nil {
		go l.onSubscribe(l, out)
	}
	return func() {}, nil
}

// notify delivers a header unless one is already pending.
func notify(out chan<- *client.Header, height int64) {
	select {
	case out <- &client.Header{Height: height}:
	default:
	}
}

func (l *ledger) SubmitTx(tx weave.Tx) (client.TransactionID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.submitted) == l.failAt {
		return nil, l.submitErr
	}
	btx := tx.(*bnsd.Tx)
	msg, err := btx.GetMsg()
	if err != nil {
		return nil, err
	}
	send := msg.(*cash.SendMsg)
	l.submitted = append(l.submitted, btx)

	src := send.Source.String()
	l.sequences[src] = l.sequences[src] + 1
	l.creditLocked(send.Destination, *send.Amount)

	raw, err := btx.Marshal()
	if err != nil {
		return nil, err
	}
	id := sha256.Sum256(raw)
	return id[:], nil
}

func (l *ledger) transfers() []*cash.SendMsg {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*cash.SendMsg
	for _, tx := range l.submitted {
		msg, _ := tx.GetMsg()
		out = append(out, msg.(*cash.SendMsg))
	}
	return out
}
