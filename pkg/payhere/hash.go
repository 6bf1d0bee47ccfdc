package payhere

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// ComputeHash signs an outbound checkout request:
// UPPER(MD5(merchant_id + order_id + amount + currency + UPPER(MD5(secret)))).
// amount must already be formatted with FormatAmount.
func ComputeHash(merchantID, orderID, amount, currency, merchantSecret string) string {
	return upperMD5(merchantID + orderID + amount + currency + upperMD5(merchantSecret))
}

// ComputeStatusHash recomputes the md5sig the gateway attaches to an IPN.
func ComputeStatusHash(merchantID, orderID, payhereAmount, payhereCurrency, statusCode, merchantSecret string) string {
	return upperMD5(merchantID + orderID + payhereAmount + payhereCurrency + statusCode + upperMD5(merchantSecret))
}

// FormatAmount renders two decimals with a '.' separator and no grouping.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func upperMD5(value string) string {
	sum := md5.Sum([]byte(value))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
