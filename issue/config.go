package issue

import (
	"math"
	"net/url"
	"unicode/utf8"

	"github.com/iov-one/cashlink/cashlink"
	"github.com/iov-one/cashlink/client"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
)

// Config declares a single batch.
type Config struct {
	// Count is the number of cashlinks to issue.
	Count int
	// Value is the amount transferred to each cashlink.
	Value coin.Coin
	// Fee is the transaction fee paid for each transfer once the batch
	// is larger than FreeTxPerSender.
	Fee coin.Coin
	// FreeTxPerSender is the number of transactions a single sender can
	// submit without paying a fee.
	FreeTxPerSender int
	// MaxTxPerSender is the number of transactions a single sender can
	// have pending at once. A batch cannot be larger.
	MaxTxPerSender int
	// Message is an optional text embedded in each cashlink.
	Message string
	// HubURL is the base of each cashlink link.
	HubURL string
	// WalletURL is the base of the funding request link.
	WalletURL string
	// AddressPrefix is the bech32 human readable part of addresses.
	AddressPrefix string
	// SubmitRate limits the number of transactions submitted per second.
	// Zero means no limit.
	SubmitRate float64
	// OutputDir is where the code sheet and the manifest are written.
	OutputDir string
}

// DefaultConfig returns the configuration of a 64 cashlinks, 5 IOV each,
// testnet batch.
func DefaultConfig() Config {
	return Config{
		Count:           64,
		Value:           coin.NewCoin(5, 0, "IOV"),
		Fee:             coin.NewCoin(0, 10000000, "IOV"),
		FreeTxPerSender: 10,
		MaxTxPerSender:  500,
		HubURL:          "https://wallet.iov-testnet.example/cashlink/",
		WalletURL:       "https://wallet.iov-testnet.example/",
		AddressPrefix:   "tiov",
		SubmitRate:      10,
		OutputDir:       ".",
	}
}

// Validate returns an error if this configuration cannot be used to issue
// a batch.
func (c Config) Validate() error {
	var err error
	if c.Count <= 0 {
		err = errors.AppendField(err, "Count", errors.Wrap(errors.ErrInput, "must be positive"))
	}
	if c.MaxTxPerSender > 0 && c.Count > c.MaxTxPerSender {
		err = errors.AppendField(err, "Count", errors.Wrapf(errors.ErrInput, "maximum number of cashlinks is %d", c.MaxTxPerSender))
	}
	if verr := c.Value.Validate(); verr != nil {
		err = errors.AppendField(err, "Value", verr)
	} else if !c.Value.IsPositive() {
		err = errors.AppendField(err, "Value", errors.Wrap(errors.ErrAmount, "must be positive"))
	}
	if verr := c.Fee.Validate(); verr != nil {
		err = errors.AppendField(err, "Fee", verr)
	} else if !c.Fee.IsNonNegative() {
		err = errors.AppendField(err, "Fee", errors.Wrap(errors.ErrAmount, "must not be negative"))
	} else if !c.Fee.SameType(c.Value) {
		err = errors.AppendField(err, "Fee", errors.Wrapf(errors.ErrCurrency, "fee in %s, value in %s", c.Fee.Ticker, c.Value.Ticker))
	}
	if len(c.Message) > cashlink.MaxMessageSize {
		err = errors.AppendField(err, "Message", errors.Wrapf(cashlink.ErrInvalidMessageLength, "%d bytes", len(c.Message)))
	} else if !utf8.ValidString(c.Message) {
		err = errors.AppendField(err, "Message", errors.Wrap(errors.ErrInput, "not UTF-8"))
	}
	if u, perr := url.Parse(c.HubURL); perr != nil || u.Scheme == "" || u.Host == "" {
		err = errors.AppendField(err, "HubURL", errors.ErrInput)
	}
	if c.AddressPrefix == "" {
		err = errors.AppendField(err, "AddressPrefix", errors.ErrEmpty)
	}
	if c.SubmitRate < 0 {
		err = errors.AppendField(err, "SubmitRate", errors.Wrap(errors.ErrInput, "must not be negative"))
	}
	return err
}

// Plan is the amount a batch requires.
type Plan struct {
	// Value is the per cashlink value in fractional units.
	Value uint64
	// Fee is the fee attached to each transfer.
	Fee coin.Coin
	// Total is the amount the wallet must hold to issue the batch.
	Total coin.Coin
	// TotalUnits is Total expressed in fractional units.
	TotalUnits uint64
}

// Plan computes the fee of each transfer and the total amount required.
// Transfers are free when the batch is not larger than FreeTxPerSender.
func (c Config) Plan() (Plan, error) {
	if err := c.Validate(); err != nil {
		return Plan{}, err
	}
	fee := coin.NewCoin(0, 0, c.Value.Ticker)
	if c.Count > c.FreeTxPerSender {
		fee = c.Fee
	}
	value, err := client.CoinToUnits(c.Value)
	if err != nil {
		return Plan{}, errors.Wrap(err, "value")
	}
	feeUnits, err := client.CoinToUnits(fee)
	if err != nil {
		return Plan{}, errors.Wrap(err, "fee")
	}
	each := value + feeUnits
	if each < value || each > math.MaxUint64/uint64(c.Count) {
		return Plan{}, errors.Wrap(errors.ErrOverflow, "total")
	}
	units := each * uint64(c.Count)
	total := client.UnitsToCoin(units, c.Value.Ticker)
	if err := total.Validate(); err != nil {
		return Plan{}, errors.Wrap(err, "total")
	}
	return Plan{
		Value:      value,
		Fee:        fee,
		Total:      total,
		TotalUnits: units,
	}, nil
}
