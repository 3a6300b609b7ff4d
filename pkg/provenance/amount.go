package provenance

import "github.com/shopspring/decimal"

// amountWithinMax compares two arbitrary-precision decimal strings,
// matching the compliance verifier's amount-threshold parsing so a
// delegated session's max_amount is enforced with the same precision
// semantics used everywhere else amounts are compared.
func amountWithinMax(amount, max string) (bool, error) {
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return false, err
	}
	m, err := decimal.NewFromString(max)
	if err != nil {
		return false, err
	}
	return a.LessThanOrEqual(m), nil
}
