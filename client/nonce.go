package client

import (
	"sync"

	"github.com/iov-one/weave"
)

type userQuerier interface {
	GetUser(addr weave.Address) (*UserResponse, error)
}

// Nonce has a client/address pair, queries for the nonce and caches recent
// nonce locally to quickly sign.
type Nonce struct {
	mutex     sync.Mutex
	client    userQuerier
	addr      weave.Address
	nonce     int64
	fromQuery bool
}

// NewNonce creates a nonce for a client / address pair. Call Query to force
// a query, Next to use cache if possible.
func NewNonce(client userQuerier, addr weave.Address) *Nonce {
	return &Nonce{client: client, addr: addr}
}

// Query always queries the blockchain for the next nonce.
func (n *Nonce) Query() (int64, error) {
	user, err := n.client.GetUser(n.addr)
	if err != nil {
		return 0, err
	}
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if user != nil {
		n.nonce = user.UserData.Sequence
	} else {
		n.nonce = 0 // new account starts at 0
	}
	n.fromQuery = true
	return n.nonce, nil
}

// Next will use a cached value if present, otherwise Query. It increments
// by 1 on each call, assuming the last nonce was properly used. This allows
// to rapidly sign many transactions without querying the blockchain each
// time.
func (n *Nonce) Next() (int64, error) {
	n.mutex.Lock()
	uninitialized := !n.fromQuery && n.nonce == 0
	n.mutex.Unlock()
	if uninitialized {
		return n.Query()
	}
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.nonce++
	n.fromQuery = false
	return n.nonce, nil
}
