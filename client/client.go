package client

import (
	"context"
	"sync"
	"time"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/x/cash"
	"github.com/iov-one/weave/x/sigs"
	cmn "github.com/tendermint/tendermint/libs/common"
	tmpubsub "github.com/tendermint/tendermint/libs/pubsub"
	rpcclient "github.com/tendermint/tendermint/rpc/client"
	ctypes "github.com/tendermint/tendermint/rpc/core/types"
	tmtypes "github.com/tendermint/tendermint/types"
)

type Header = tmtypes.Header
type Status = ctypes.ResultStatus

// TransactionID is the hash used to identify a transaction.
type TransactionID = cmn.HexBytes

var QueryNewBlockHeader = tmtypes.EventQueryNewBlockHeader

const unsubscribeTimeout = 5 * time.Second

var (
	// ErrNetwork is returned when the node cannot be reached or the
	// request failed on the transport level.
	ErrNetwork = errors.Register(7020, "network")

	// ErrRejected is returned when a transaction did not pass the node
	// check.
	ErrRejected = errors.Register(7021, "transaction rejected")
)

// Client is the subset of the node API used to issue and claim cashlinks.
type Client interface {
	ChainID() (string, error)
	GetUser(addr weave.Address) (*UserResponse, error)
	GetWallet(addr weave.Address) (*WalletResponse, error)
	SubscribeHeaders(out chan<- *Header) (func(), error)
	SubmitTx(tx weave.Tx) (TransactionID, error)
}

var _ Client = (*BnsClient)(nil)

// BnsClient is a tendermint client wrapped to provide simple access to the
// data structures used in bns.
//
// Subscriptions are served over a websocket that is opened by the first
// subscription. Call Close to release it.
type BnsClient struct {
	conn rpcclient.Client

	mu sync.Mutex
	// queries holds the active subscriptions. The node connection keys
	// subscriptions by query only.
	queries map[string]struct{}
	closed  bool
}

// NewClient wraps a BnsClient around an existing tendermint client
// connection.
func NewClient(conn rpcclient.Client) *BnsClient {
	return &BnsClient{conn: conn, queries: make(map[string]struct{})}
}

// start ensures the event connection is running.
func (b *BnsClient) start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Wrap(ErrNetwork, "client closed")
	}
	if b.conn.IsRunning() {
		return nil
	}
	if err := b.conn.Start(); err != nil && err != cmn.ErrAlreadyStarted {
		return errors.Wrapf(ErrNetwork, "connect: %s", err)
	}
	return nil
}

// Close stops the event connection if it was started. All subscriptions
// are terminated and their channels closed. Close is safe to call more
// than once.
func (b *BnsClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if !b.conn.IsRunning() {
		return nil
	}
	if err := b.conn.Stop(); err != nil && err != cmn.ErrAlreadyStopped {
		return errors.Wrapf(ErrNetwork, "stop: %s", err)
	}
	return nil
}

// Status will return the raw status from the node.
func (b *BnsClient) Status() (*Status, error) {
	status, err := b.conn.Status()
	if err != nil {
		return nil, errors.Wrap(ErrNetwork, err.Error())
	}
	return status, nil
}

// ChainID will parse out the chainID from the genesis.
func (b *BnsClient) ChainID() (string, error) {
	gen, err := b.conn.Genesis()
	if err != nil {
		return "", errors.Wrapf(ErrNetwork, "genesis: %s", err)
	}
	return gen.Genesis.ChainID, nil
}

// Height returns the latest block height known to the node.
func (b *BnsClient) Height() (int64, error) {
	status, err := b.Status()
	if err != nil {
		return -1, err
	}
	return status.SyncInfo.LatestBlockHeight, nil
}

// AbciResponse contains a query result: a (possibly empty) list of
// key-value pairs, and the height at which it queried.
type AbciResponse struct {
	Models []weave.Model
	Height int64
}

// AbciQuery calls abci query on tendermint rpc, verifies if it is an error
// or empty, and if there is data pulls out the ResultSets from keys and
// values into a useful AbciResponse struct.
func (b *BnsClient) AbciQuery(path string, data []byte) (AbciResponse, error) {
	var out AbciResponse

	q, err := b.conn.ABCIQuery(path, data)
	if err != nil {
		return out, errors.Wrapf(ErrNetwork, "query %s: %s", path, err)
	}
	resp := q.Response
	if resp.IsErr() {
		return out, errors.ABCIError(resp.Code, resp.Log)
	}
	out.Height = resp.Height

	if len(resp.Key) == 0 {
		return out, nil
	}

	var keys, vals app.ResultSet
	if err := keys.Unmarshal(resp.Key); err != nil {
		return out, errors.Wrap(err, "keys")
	}
	if err := vals.Unmarshal(resp.Value); err != nil {
		return out, errors.Wrap(err, "values")
	}
	out.Models, err = app.JoinResults(&keys, &vals)
	return out, err
}

// WalletResponse is a response on a query for a wallet.
type WalletResponse struct {
	Address weave.Address
	Wallet  cash.Set
	Height  int64
}

// GetWallet will return a wallet given an address. If no wallet is present,
// it will return (nil, nil).
func (b *BnsClient) GetWallet(addr weave.Address) (*WalletResponse, error) {
	if err := addr.Validate(); err != nil {
		return nil, errors.Wrap(err, "address")
	}
	resp, err := b.AbciQuery("/wallets", addr)
	if err != nil {
		return nil, err
	}
	if len(resp.Models) == 0 {
		return nil, nil
	}
	model := resp.Models[0]
	acct := trimPrefix(model.Key, "cash:")
	if !addr.Equals(acct) {
		return nil, errors.Wrapf(errors.ErrState, "queried %s, returned %s", addr, acct)
	}
	out := WalletResponse{
		Address: acct,
		Height:  resp.Height,
	}
	if err := out.Wallet.Unmarshal(model.Value); err != nil {
		return nil, errors.Wrap(err, "wallet")
	}
	return &out, nil
}

// UserResponse is a response on a query for a User.
type UserResponse struct {
	Address  weave.Address
	UserData sigs.UserData
	Height   int64
}

// GetUser will return nonce and public key registered for a given address
// if it was ever used. If it returns (nil, nil), then this address never
// signed a transaction before (and can use nonce = 0).
func (b *BnsClient) GetUser(addr weave.Address) (*UserResponse, error) {
	if err := addr.Validate(); err != nil {
		return nil, errors.Wrap(err, "address")
	}
	resp, err := b.AbciQuery("/auth", addr)
	if err != nil {
		return nil, err
	}
	if len(resp.Models) == 0 {
		return nil, nil
	}
	model := resp.Models[0]
	acct := trimPrefix(model.Key, "sigs:")
	if !addr.Equals(acct) {
		return nil, errors.Wrapf(errors.ErrState, "queried %s, returned %s", addr, acct)
	}
	out := UserResponse{
		Address: acct,
		Height:  resp.Height,
	}
	if err := out.UserData.Unmarshal(model.Value); err != nil {
		return nil, errors.Wrap(err, "user data")
	}
	return &out, nil
}

// trimPrefix strips the bucket name from a model key.
func trimPrefix(key []byte, prefix string) weave.Address {
	if len(key) >= len(prefix) && string(key[:len(prefix)]) == prefix {
		return key[len(prefix):]
	}
	return key
}

// SubmitTx submits the transaction to the mempool and returns as soon as
// the node accepted it. It does not wait for the transaction to be included
// in a block.
func (b *BnsClient) SubmitTx(tx weave.Tx) (TransactionID, error) {
	bz, err := tx.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}
	res, err := b.conn.BroadcastTxSync(bz)
	if err != nil {
		return nil, errors.Wrapf(ErrNetwork, "submit tx: %s", err)
	}
	if res.Code != 0 {
		return nil, errors.Wrapf(ErrRejected, "(%d) %s", res.Code, res.Log)
	}
	return res.Hash, nil
}

// WaitForTx blocks until the transaction is included in a block or the
// context is done. A transaction that was committed before this call is
// found by its hash.
func (b *BnsClient) WaitForTx(ctx context.Context, tx weave.Tx, timeout time.Duration) (*tmtypes.EventDataTx, error) {
	bz, err := tx.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	evts, release, err := b.Subscribe(tmtypes.EventQueryTxFor(bz))
	if err != nil {
		return nil, err
	}
	defer release()

	// The subscription is active, so a commit happening after this query
	// is delivered as an event.
	if res, err := b.conn.Tx(tmtypes.Tx(bz).Hash(), false); err == nil {
		data := tmtypes.EventDataTx{TxResult: tmtypes.TxResult{
			Height: res.Height,
			Index:  res.Index,
			Tx:     res.Tx,
			Result: res.TxResult,
		}}
		return txOutcome(&data)
	}

	select {
	case evt, ok := <-evts:
		if !ok {
			return nil, errors.Wrap(ErrNetwork, "subscription closed")
		}
		data, ok := evt.Data.(tmtypes.EventDataTx)
		if !ok {
			return nil, errors.Wrapf(errors.ErrState, "unexpected event %T", evt.Data)
		}
		return txOutcome(&data)
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for tx")
	}
}

func txOutcome(data *tmtypes.EventDataTx) (*tmtypes.EventDataTx, error) {
	if data.Result.IsErr() {
		return data, errors.ABCIError(data.Result.Code, data.Result.Log)
	}
	return data, nil
}

// SubscribeHeaders queries for headers and starts a goroutine to typecast
// the events into Headers. Returns a cancel function that must be called to
// release the subscription. Output channel is closed once the subscription
// is released or the connection stops.
func (b *BnsClient) SubscribeHeaders(out chan<- *Header) (func(), error) {
	pipe, cancel, err := b.Subscribe(QueryNewBlockHeader)
	if err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range pipe {
			evt, ok := msg.Data.(tmtypes.EventDataNewBlockHeader)
			if !ok {
				continue
			}
			h := evt.Header
			select {
			case out <- &h:
			case <-stop:
				return
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
	return release, nil
}

// Subscribe will take an arbitrary query and push all events to the
// returned channel. If there is no error, returns a cancel function that
// must be called to release the subscription. The channel is closed once
// the subscription is released or the connection stops.
//
// The node connection routes events by query, so only one subscription per
// query can be active at a time. A second one fails with ErrState.
func (b *BnsClient) Subscribe(query tmpubsub.Query) (<-chan ctypes.ResultEvent, func(), error) {
	if err := b.start(); err != nil {
		return nil, nil, err
	}
	q := query.String()
	b.mu.Lock()
	if _, ok := b.queries[q]; ok {
		b.mu.Unlock()
		return nil, nil, errors.Wrapf(errors.ErrState, "already subscribed to %q", q)
	}
	b.queries[q] = struct{}{}
	b.mu.Unlock()

	ctx := context.Background()
	subscriber := "cashlink-" + cmn.RandStr(12)
	in, err := b.conn.Subscribe(ctx, subscriber, q)
	if err != nil {
		b.forget(q)
		return nil, nil, errors.Wrapf(ErrNetwork, "subscribe: %s", err)
	}

	out := make(chan ctypes.ResultEvent, cap(in))
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case <-b.conn.Quit():
				return
			case evt := <-in:
				select {
				case out <- evt:
				case <-done:
					return
				case <-b.conn.Quit():
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if b.conn.IsRunning() {
				ctx, stop := context.WithTimeout(ctx, unsubscribeTimeout)
				_ = b.conn.Unsubscribe(ctx, subscriber, q)
				stop()
			}
			b.forget(q)
		})
	}
	return out, cancel, nil
}

func (b *BnsClient) forget(query string) {
	b.mu.Lock()
	delete(b.queries, query)
	b.mu.Unlock()
}
