package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the token precision of every stake and bankroll amount.
const USDCDecimals = 6

// FormatUSDC renders a raw USDC amount with two decimal places.
func FormatUSDC(amount *big.Int) string {
	if amount == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(amount, -USDCDecimals).StringFixed(2)
}
