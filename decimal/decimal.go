// Package decimal converts Open Payments amounts between their integer
// minor-unit representation and the human readable value given by the
// asset scale ("505" with scale 2 is "5.05").
package decimal

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

type Decimal struct {
	Value *big.Float
	// Number of decimal places used when formatting
	Scale uint8
}

const OperationPrec = 256

const RoundingMode = big.AwayFromZero

// MaxScale is the largest asset scale Open Payments allows
const MaxScale = 255

func newFloat() *big.Float {
	return big.NewFloat(0).SetMode(RoundingMode).SetPrec(OperationPrec)
}

func unit(scale uint8) (u *big.Float) {
	exp := big.NewInt(0).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	return newFloat().SetInt(exp)
}

func (d *Decimal) FromMinor(v uint64, scale uint8) {
	d.Scale = scale
	d.Value = newFloat().SetInt(big.NewInt(0).SetUint64(v))
	d.Value = d.Value.Quo(d.Value, unit(scale))
}

// FromMinorString parses an Open Payments amount value, which is always a
// base 10 integer string
func (d *Decimal) FromMinorString(v string, scale uint8) (err error) {
	minor, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount value: %s: %w", v, err)
	}
	d.FromMinor(minor, scale)
	return nil
}

func (d *Decimal) ToMinor(scale uint8) (v uint64) {
	if d.Value == nil {
		return 0
	}
	var amountCopy big.Float
	amountCopy = *amountCopy.Copy(d.Value)
	asInt, _ := amountCopy.Mul(&amountCopy, unit(scale)).Int(nil)
	return asInt.Uint64()
}

func (d *Decimal) FromString(s string) (err error) {
	d.Value, _, err = big.ParseFloat(s, 10, OperationPrec, RoundingMode)
	if err != nil {
		return err
	}
	return nil
}

func (d Decimal) String() (s string) {
	if d.Value == nil {
		return "0"
	}
	return d.Value.Text('f', int(d.Scale))
}

var ErrFractionalMinor = errors.New("amount has more decimals than the asset scale")

// ExactMinor is ToMinor for user input: negative values and values with more
// decimals than scale are rejected instead of truncated
func (d *Decimal) ExactMinor(scale uint8) (v uint64, err error) {
	if d.Value == nil || d.Value.Sign() < 0 {
		return 0, fmt.Errorf("invalid amount: %s", d.String())
	}
	text := d.Value.Text('f', -1)
	scaled, ok := new(big.Rat).SetString(text)
	if !ok {
		return 0, fmt.Errorf("invalid amount: %s", text)
	}
	exp := big.NewInt(0).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	scaled.Mul(scaled, new(big.Rat).SetInt(exp))
	if !scaled.IsInt() {
		return 0, fmt.Errorf("%w: %s", ErrFractionalMinor, text)
	}
	asInt := scaled.Num()
	if !asInt.IsUint64() {
		return 0, fmt.Errorf("amount out of range: %s", text)
	}
	return asInt.Uint64(), nil
}
