package client

import (
	rpcclient "github.com/tendermint/tendermint/rpc/client"
)

// NewHTTPConnection takes a URL and sends all requests to the remote node.
// Subscriptions are served over the websocket endpoint of the same node,
// which is not dialed until the connection is started.
func NewHTTPConnection(remote string) rpcclient.Client {
	return rpcclient.NewHTTP(remote, "/websocket")
}
