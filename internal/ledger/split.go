package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Split is the commission/payout division of one charge.
type Split struct {
	Commission  decimal.Decimal
	OwnerPayout decimal.Decimal
}

// ComputeSplit rounds the commission to cents and gives the owner the exact
// remainder, so Commission + OwnerPayout always equals amount.
func ComputeSplit(amount, percentage decimal.Decimal) Split {
	commission := amount.Mul(percentage).Div(hundred).Round(2)
	return Split{
		Commission:  commission,
		OwnerPayout: amount.Sub(commission),
	}
}
