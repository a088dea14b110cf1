package formulas

import "github.com/shopspring/decimal"

// Round rounds half away from zero to the given number of decimal places
// using decimal arithmetic.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	return Round(v, 2)
}

// RoundPrice rounds a quote with precision depending on its magnitude:
// 2 places from 100 up, 3 places from 10 up, 4 places below.
func RoundPrice(price float64) float64 {
	switch {
	case price >= 100:
		return Round(price, 2)
	case price >= 10:
		return Round(price, 3)
	default:
		return Round(price, 4)
	}
}
