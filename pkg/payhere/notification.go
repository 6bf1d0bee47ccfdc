package payhere

import (
	"crypto/subtle"
	"net/url"
	"strings"
)

// IPN status codes.
const (
	StatusSuccess    = "2"
	StatusPending    = "0"
	StatusCanceled   = "-1"
	StatusFailed     = "-2"
	StatusChargeback = "-3"
)

// Order id prefixes the checkout builders emit and the IPN handler routes on.
const (
	OrderPrefixToken  = "TOKEN_"
	OrderPrefixRental = "RENTAL_"
)

var signedFields = []string{"merchant_id", "order_id", "payhere_amount", "payhere_currency", "status_code", "md5sig"}

// Notification is the form payload of an IPN callback.
type Notification struct {
	MerchantID      string
	OrderID         string
	PaymentID       string
	Amount          string
	Currency        string
	StatusCode      string
	Signature       string
	StatusMessage   string
	Method          string
	CardHolderName  string
	CardNumber      string
	CardExpiry      string
	CustomerToken   string
	Custom1         string
	Custom2         string
	RecurringStatus string
}

// ParseNotification maps raw form values onto a Notification without
// verifying them.
func ParseNotification(values url.Values) Notification {
	get := func(key string) string { return strings.TrimSpace(values.Get(key)) }
	return Notification{
		MerchantID:      get("merchant_id"),
		OrderID:         get("order_id"),
		PaymentID:       get("payment_id"),
		Amount:          get("payhere_amount"),
		Currency:        get("payhere_currency"),
		StatusCode:      get("status_code"),
		Signature:       get("md5sig"),
		StatusMessage:   get("status_message"),
		Method:          get("method"),
		CardHolderName:  get("card_holder_name"),
		CardNumber:      get("card_no"),
		CardExpiry:      get("card_expiry"),
		CustomerToken:   get("customer_token"),
		Custom1:         get("custom_1"),
		Custom2:         get("custom_2"),
		RecurringStatus: get("recurring_status"),
	}
}

// VerifyNotification reports whether values carry every signed field and an
// md5sig matching the recomputed status hash. It never errors: a payload that
// fails here must be dropped without touching state.
func VerifyNotification(values url.Values, merchantSecret string) bool {
	if merchantSecret == "" {
		return false
	}
	for _, field := range signedFields {
		if strings.TrimSpace(values.Get(field)) == "" {
			return false
		}
	}

	// The gateway signed the fields as sent, so hash them untrimmed.
	expected := ComputeStatusHash(
		values.Get("merchant_id"),
		values.Get("order_id"),
		values.Get("payhere_amount"),
		values.Get("payhere_currency"),
		values.Get("status_code"),
		merchantSecret,
	)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(values.Get("md5sig"))) == 1
}

// IsSuccess reports the gateway's success status code.
func (n Notification) IsSuccess() bool {
	return n.StatusCode == StatusSuccess
}

// CardLast4 returns the last four digits of the masked card number.
func (n Notification) CardLast4() string {
	digits := make([]rune, 0, len(n.CardNumber))
	for _, r := range n.CardNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}
