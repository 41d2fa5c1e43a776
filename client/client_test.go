package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	amino "github.com/tendermint/go-amino"
	abci "github.com/tendermint/tendermint/abci/types"
	ctypes "github.com/tendermint/tendermint/rpc/core/types"
	rpctypes "github.com/tendermint/tendermint/rpc/lib/types"
	tmtypes "github.com/tendermint/tendermint/types"
)

// node serves the subset of the tendermint rpc used by BnsClient. Every
// subscription is fed with events until it is cancelled.
type node struct {
	cdc    *amino.Codec
	header tmtypes.Header
	// tx is returned by the tx route. Nil means the transaction is unknown.
	tx *ctypes.ResultTx
	// txEvent is published to transaction subscriptions when set.
	txEvent *tmtypes.EventDataTx

	mu    sync.Mutex
	calls []string
}

func newNode() *node {
	cdc := amino.NewCodec()
	ctypes.RegisterAmino(cdc)
	return &node{
		cdc: cdc,
		header: tmtypes.Header{
			ChainID: "test-chain",
			Height:  7,
			Time:    time.Date(2019, 5, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func (n *node) record(method string) {
	n.mu.Lock()
	n.calls = append(n.calls, method)
	n.mu.Unlock()
}

func (n *node) called(method string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.calls {
		if c == method {
			return true
		}
	}
	return false
}

func (n *node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/websocket" {
		n.serveWebsocket(w, r)
		return
	}

	var req rpctypes.RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.record(req.Method)
	resp := rpctypes.RPCMethodNotFoundError(req.ID)
	if req.Method == "tx" {
		if n.tx != nil {
			resp = rpctypes.NewRPCSuccessResponse(n.cdc, req.ID, n.tx)
		} else {
			resp = rpctypes.RPCInternalError(req.ID, errors.Wrap(errors.ErrNotFound, "tx"))
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

var upgrader = websocket.Upgrader{}

func (n *node) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var wmu sync.Mutex
	write := func(resp rpctypes.RPCResponse) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(resp)
	}

	gone := make(chan struct{})
	defer close(gone)
	subs := make(map[string]chan struct{})
	for {
		var req rpctypes.RPCRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		n.record(req.Method)
		var params struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(req.Params, &params)
		if err := write(rpctypes.NewRPCSuccessResponse(n.cdc, req.ID, struct{}{})); err != nil {
			return
		}

		switch req.Method {
		case "subscribe":
			stop := make(chan struct{})
			subs[params.Query] = stop
			go n.publish(params.Query, stop, gone, write)
		case "unsubscribe":
			if stop, ok := subs[params.Query]; ok {
				close(stop)
				delete(subs, params.Query)
			}
		case "unsubscribe_all":
			for q, stop := range subs {
				close(stop)
				delete(subs, q)
			}
		}
	}
}

// publish repeats the event of given query, because the client registers
// the subscription only after the request was sent.
func (n *node) publish(query string, stop, gone <-chan struct{}, write func(rpctypes.RPCResponse) error) {
	var data tmtypes.TMEventData
	switch {
	case query == QueryNewBlockHeader.String():
		data = tmtypes.EventDataNewBlockHeader{Header: n.header}
	case strings.HasPrefix(query, "tm.event='Tx'") && n.txEvent != nil:
		data = *n.txEvent
	default:
		return
	}

	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-gone:
			return
		case <-tick.C:
			evt := ctypes.ResultEvent{Query: query, Data: data}
			resp := rpctypes.NewRPCSuccessResponse(n.cdc, rpctypes.JSONRPCStringID("ws#event"), evt)
			if err := write(resp); err != nil {
				return
			}
		}
	}
}

func eventually(t testing.TB, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscribeHeadersOverWebsocket(t *testing.T) {
	n := newNode()
	srv := httptest.NewServer(n)
	defer srv.Close()

	bns := NewClient(NewHTTPConnection(srv.URL))
	defer bns.Close()

	headers := make(chan *Header, 1)
	cancel, err := bns.SubscribeHeaders(headers)
	require.NoError(t, err)

	select {
	case h := <-headers:
		require.NotNil(t, h)
		assert.Equal(t, int64(7), h.Height)
		assert.Equal(t, "test-chain", h.ChainID)
	case <-time.After(2 * time.Second):
		t.Fatal("no header received")
	}

	// only one subscription per query can be routed
	_, err = bns.SubscribeHeaders(make(chan *Header, 1))
	if !errors.ErrState.Is(err) {
		t.Fatalf("want state error, got %+v", err)
	}

	cancel()
	cancel()
	closed := false
	timeout := time.After(2 * time.Second)
	for !closed {
		select {
		case _, ok := <-headers:
			closed = !ok
		case <-timeout:
			t.Fatal("header channel not closed after release")
		}
	}
	eventually(t, func() bool { return n.called("unsubscribe") })

	// released query can be subscribed again
	again := make(chan *Header, 1)
	cancel, err = bns.SubscribeHeaders(again)
	require.NoError(t, err)
	defer cancel()
	select {
	case <-again:
	case <-time.After(2 * time.Second):
		t.Fatal("no header after resubscribe")
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	n := newNode()
	srv := httptest.NewServer(n)
	defer srv.Close()

	bns := NewClient(NewHTTPConnection(srv.URL))
	headers := make(chan *Header)
	cancel, err := bns.SubscribeHeaders(headers)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bns.Close())
	require.NoError(t, bns.Close())

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-headers:
			if !ok {
				_, err := bns.SubscribeHeaders(make(chan *Header, 1))
				if !ErrNetwork.Is(err) {
					t.Fatalf("want network error after close, got %+v", err)
				}
				return
			}
		case <-timeout:
			t.Fatal("header channel not closed by Close")
		}
	}
}

func TestSubscribeUnreachableNode(t *testing.T) {
	bns := NewClient(NewHTTPConnection("http://127.0.0.1:1"))
	defer bns.Close()

	acc := NewAccount(bns, Address(GenPrivateKey()), "IOV")
	_, _, err := acc.Subscribe(context.Background())
	if !ErrNetwork.Is(err) {
		t.Fatalf("want network error, got %+v", err)
	}

	// a failed dial does not poison the client
	_, err = bns.SubscribeHeaders(make(chan *Header, 1))
	if !ErrNetwork.Is(err) {
		t.Fatalf("want network error, got %+v", err)
	}
}

func TestWaitForTx(t *testing.T) {
	src, dst := Address(GenPrivateKey()), Address(GenPrivateKey())
	tx := BuildSendTx(src, dst, coin.NewCoin(1, 0, "IOV"), coin.NewCoin(0, 0, "IOV"), "test")
	raw, err := tx.Marshal()
	require.NoError(t, err)

	cases := map[string]struct {
		tx         *ctypes.ResultTx
		event      *tmtypes.EventDataTx
		wantHeight int64
		wantErr    bool
	}{
		"committed before waiting": {
			tx: &ctypes.ResultTx{
				Hash:   tmtypes.Tx(raw).Hash(),
				Height: 9,
				Tx:     raw,
			},
			wantHeight: 9,
		},
		"committed while waiting": {
			event: &tmtypes.EventDataTx{TxResult: tmtypes.TxResult{
				Height: 11,
				Tx:     raw,
			}},
			wantHeight: 11,
		},
		"delivery failed": {
			tx: &ctypes.ResultTx{
				Height:   12,
				Tx:       raw,
				TxResult: abci.ResponseDeliverTx{Code: 5, Log: "no funds"},
			},
			wantHeight: 12,
			wantErr:    true,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			n := newNode()
			n.tx = tc.tx
			n.txEvent = tc.event
			srv := httptest.NewServer(n)
			defer srv.Close()

			bns := NewClient(NewHTTPConnection(srv.URL))
			defer bns.Close()

			res, err := bns.WaitForTx(context.Background(), tx, 2*time.Second)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, res)
			assert.Equal(t, tc.wantHeight, res.Height)
			assert.True(t, n.called("tx"))
			eventually(t, func() bool { return n.called("subscribe") })
		})
	}
}

func TestWaitForTxTimeout(t *testing.T) {
	n := newNode()
	srv := httptest.NewServer(n)
	defer srv.Close()

	bns := NewClient(NewHTTPConnection(srv.URL))
	defer bns.Close()

	tx := BuildSendTx(Address(GenPrivateKey()), Address(GenPrivateKey()),
		coin.NewCoin(1, 0, "IOV"), coin.NewCoin(0, 0, "IOV"), "")
	_, err := bns.WaitForTx(context.Background(), tx, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline exceeded")
}
