package client

import (
	"math"

	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
)

// CoinToUnits returns the value of given coin expressed in fractional units.
// Negative values and values that do not fit into 64 bits are rejected.
func CoinToUnits(c coin.Coin) (uint64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if !c.IsNonNegative() {
		return 0, errors.Wrapf(errors.ErrAmount, "negative value %s", c)
	}
	whole, frac := uint64(c.Whole), uint64(c.Fractional)
	if whole > math.MaxUint64/uint64(coin.FracUnit) {
		return 0, errors.Wrapf(errors.ErrOverflow, "%s", c)
	}
	units := whole * uint64(coin.FracUnit)
	if units > math.MaxUint64-frac {
		return 0, errors.Wrapf(errors.ErrOverflow, "%s", c)
	}
	return units + frac, nil
}

// UnitsToCoin returns a coin of given ticker holding the value expressed in
// fractional units. Any uint64 value is a valid coin value.
func UnitsToCoin(units uint64, ticker string) coin.Coin {
	whole := units / uint64(coin.FracUnit)
	frac := units % uint64(coin.FracUnit)
	return coin.NewCoin(int64(whole), int64(frac), ticker)
}
