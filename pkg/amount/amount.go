package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// ErrInvalidAmount is returned for negative, non-finite or unparsable amounts
var ErrInvalidAmount = errors.New("invalid amount")

// maxPrecision bounds the number of significant digits kept while scaling.
// A uint256 has 78 decimal digits, so this leaves room for any fractional tail.
const maxPrecision = 200

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ToBaseUnits converts a human readable decimal quantity into the integer base-unit
// representation of a token with the given number of fractional digits.
// The result is floor(amount * 10^decimals).
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, _, err := apd.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, amount, err)
	}
	if d.Form != apd.Finite {
		return nil, fmt.Errorf("%w: %q is not finite", ErrInvalidAmount, amount)
	}
	if d.Negative && !d.IsZero() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, amount)
	}

	scaled := new(apd.Decimal).Set(d)
	scaled.Negative = false
	scaled.Exponent += int32(decimals)

	ctx := apd.BaseContext.WithPrecision(maxPrecision)
	ctx.Rounding = apd.RoundDown

	integral := new(apd.Decimal)
	if _, err := ctx.RoundToIntegralValue(integral, scaled); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, amount, err)
	}

	result, ok := new(big.Int).SetString(integral.Text('f'), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q cannot be represented as an integer", ErrInvalidAmount, amount)
	}
	if result.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%w: %q exceeds uint256", ErrInvalidAmount, amount)
	}
	return result, nil
}

// MustBaseUnits is like ToBaseUnits but panics on error
func MustBaseUnits(amount string, decimals uint8) *big.Int {
	v, err := ToBaseUnits(amount, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// FromBaseUnits renders an integer base-unit value as a decimal string
func FromBaseUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	coeff := new(apd.BigInt).SetMathBigInt(value)
	return apd.NewWithBigInt(coeff, -int32(decimals)).Text('f')
}
