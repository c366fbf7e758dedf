package dataset

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Shares and fractions are compared in decimal so that a label sitting
// exactly on the threshold (33 of 1000 at 0.033) is not pushed either way by
// binary floating point.
var decimalCtx = apd.BaseContext.WithPrecision(34)

func decimalFromFloat(f float64) (*apd.Decimal, error) {
	d := new(apd.Decimal)
	if _, err := d.SetFloat64(f); err != nil {
		return nil, fmt.Errorf("invalid decimal %v: %w", f, err)
	}
	return d, nil
}

// lessThanShare reports whether count < share*total.
func lessThanShare(count, total int, share *apd.Decimal) (bool, error) {
	var limit apd.Decimal
	if _, err := decimalCtx.Mul(&limit, share, apd.New(int64(total), 0)); err != nil {
		return false, fmt.Errorf("threshold limit: %w", err)
	}
	return apd.New(int64(count), 0).Cmp(&limit) < 0, nil
}

// floorShare returns floor(share*n).
func floorShare(share *apd.Decimal, n int) (int, error) {
	var product, floor apd.Decimal
	if _, err := decimalCtx.Mul(&product, share, apd.New(int64(n), 0)); err != nil {
		return 0, fmt.Errorf("share product: %w", err)
	}
	if _, err := decimalCtx.Floor(&floor, &product); err != nil {
		return 0, fmt.Errorf("share floor: %w", err)
	}
	v, err := floor.Int64()
	if err != nil {
		return 0, fmt.Errorf("share floor: %w", err)
	}
	return int(v), nil
}
