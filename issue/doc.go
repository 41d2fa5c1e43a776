/*
Package issue implements issuing a batch of cashlinks from a single wallet.

A run computes the total amount required by the batch, waits until the
wallet holds it, generates one-time keys, encodes a cashlink for each of
them, renders the sheet of scannable codes and finally submits one transfer
per cashlink. Transfers are submitted in nonce order from a single sender.

Claim implements the opposite operation: moving the funds of a cashlink to
a regular account.
*/
package issue
