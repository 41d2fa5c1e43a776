package issue

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
)

// ErrNotSubmitted marks a cashlink which transfer was never submitted
// because the batch was aborted.
var ErrNotSubmitted = errors.Register(7030, "not submitted")

// Entry is a single cashlink of a batch.
type Entry struct {
	Index   int
	Address weave.Address
	// HumanAddress is the bech32 form of Address.
	HumanAddress string
	Link         string
	// TxID is set once the funding transfer was accepted by the node.
	TxID client.TransactionID
	// Err is set if the funding transfer failed or was never
	// submitted.
	Err error
}

// Funded returns true if the funding transfer of this cashlink was
// accepted.
func (e *Entry) Funded() bool {
	return e.Err == nil && len(e.TxID) != 0
}

// Report describes the outcome of a batch. It is returned even if the batch
// failed, so that it is known which cashlinks were funded.
type Report struct {
	BatchID string
	Wallet  string
	Plan    Plan
	Entries []Entry
	// SheetPath is the location of the rendered codes.
	SheetPath string
	// ManifestPath is the location of the CSV copy of this report.
	ManifestPath string
}

// Funded returns the number of cashlinks which funding transfer was
// accepted.
func (r *Report) Funded() int {
	var n int
	for i := range r.Entries {
		if r.Entries[i].Funded() {
			n++
		}
	}
	return n
}

// WriteCSV writes one row per cashlink.
func (r *Report) WriteCSV(w io.Writer) error {
	wr := csv.NewWriter(w)
	if err := wr.Write([]string{"index", "address", "link", "tx", "error"}); err != nil {
		return errors.Wrap(err, "csv header")
	}
	for _, e := range r.Entries {
		var msg string
		if e.Err != nil {
			msg = e.Err.Error()
		}
		row := []string{strconv.Itoa(e.Index), e.HumanAddress, e.Link, e.TxID.String(), msg}
		if err := wr.Write(row); err != nil {
			return errors.Wrapf(err, "csv row %d", e.Index)
		}
	}
	wr.Flush()
	return errors.Wrap(wr.Error(), "csv")
}
