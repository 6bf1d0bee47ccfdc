package payhere

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
)

const (
	tokenizationItem       = "Card Tokenization"
	tokenizationRecurrence = "Month"
	tokenizationDuration   = "12"
)

// CheckoutRequest is a hosted-checkout redirect: the caller renders FormFields
// as a form that POSTs to URL.
type CheckoutRequest struct {
	URL        string            `json:"url"`
	FormFields map[string]string `json:"form_fields"`
}

// Values returns the form fields as url.Values.
func (r CheckoutRequest) Values() url.Values {
	values := url.Values{}
	for k, v := range r.FormFields {
		values.Set(k, v)
	}
	return values
}

// Customer is the payer block shared by every checkout variant.
type Customer struct {
	ID      uuid.UUID
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
}

type RedirectURLs struct {
	ReturnURL string
	NotifyURL string
}

type TokenizationInput struct {
	Customer Customer
	URLs     RedirectURLs
}

type RentalPaymentInput struct {
	Customer        Customer
	PropertyID      uuid.UUID
	PropertyTitle   string
	RentAmount      decimal.Decimal
	SecurityDeposit decimal.Decimal
	URLs            RedirectURLs
}

// TokenOrderID is the order id of a zero-amount tokenization checkout.
func TokenOrderID(customerID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s%s_%d", OrderPrefixToken, customerID, now.Unix())
}

// RentalOrderID is the order id of a one-time rental checkout.
func RentalOrderID(customerID, propertyID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s%s_%s_%d", OrderPrefixRental, customerID, propertyID, now.Unix())
}

// BuildTokenizationRequest builds the zero-amount recurring checkout that
// makes the gateway issue a reusable card token.
func BuildTokenizationRequest(cfg Config, in TokenizationInput, now time.Time) (*CheckoutRequest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateCustomer(in.Customer, in.URLs); err != nil {
		return nil, err
	}

	amount := FormatAmount(decimal.Zero)
	orderID := TokenOrderID(in.Customer.ID, now)

	fields := baseFields(cfg, in.Customer, in.URLs)
	fields["order_id"] = orderID
	fields["items"] = tokenizationItem
	fields["amount"] = amount
	fields["recurrence"] = tokenizationRecurrence
	fields["duration"] = tokenizationDuration
	fields["startup_fee"] = FormatAmount(decimal.Zero)
	fields["hash"] = ComputeHash(cfg.MerchantID, orderID, amount, cfg.Currency, cfg.MerchantSecret)

	return &CheckoutRequest{URL: cfg.CheckoutURL(), FormFields: fields}, nil
}

// BuildRentalPaymentRequest builds a one-time checkout for the first rent plus
// the security deposit. The property and customer ids ride along in the custom
// fields so the IPN can be correlated.
func BuildRentalPaymentRequest(cfg Config, in RentalPaymentInput, now time.Time) (*CheckoutRequest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateCustomer(in.Customer, in.URLs); err != nil {
		return nil, err
	}
	if in.PropertyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property id is required")
	}
	if !in.RentAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rent amount must be positive")
	}
	if in.SecurityDeposit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "security deposit cannot be negative")
	}

	amount := FormatAmount(in.RentAmount.Add(in.SecurityDeposit))
	orderID := RentalOrderID(in.Customer.ID, in.PropertyID, now)

	items := strings.TrimSpace(in.PropertyTitle)
	if items == "" {
		items = "Property Rental"
	}

	fields := baseFields(cfg, in.Customer, in.URLs)
	fields["order_id"] = orderID
	fields["items"] = items
	fields["amount"] = amount
	fields["custom_1"] = in.PropertyID.String()
	fields["custom_2"] = in.Customer.ID.String()
	fields["hash"] = ComputeHash(cfg.MerchantID, orderID, amount, cfg.Currency, cfg.MerchantSecret)

	return &CheckoutRequest{URL: cfg.CheckoutURL(), FormFields: fields}, nil
}

func validateCustomer(c Customer, urls RedirectURLs) error {
	switch {
	case c.ID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	case strings.TrimSpace(c.Email) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	case strings.TrimSpace(urls.ReturnURL) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "return url is required")
	case strings.TrimSpace(urls.NotifyURL) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "notify url is required")
	}
	return nil
}

func baseFields(cfg Config, c Customer, urls RedirectURLs) map[string]string {
	first, last := splitName(c.Name)
	return map[string]string{
		"merchant_id": cfg.MerchantID,
		"return_url":  urls.ReturnURL,
		"cancel_url":  urls.ReturnURL,
		"notify_url":  urls.NotifyURL,
		"currency":    cfg.Currency,
		"first_name":  first,
		"last_name":   last,
		"email":       strings.TrimSpace(c.Email),
		"phone":       strings.TrimSpace(c.Phone),
		"address":     fallback(c.Address, cfg.DefaultAddress),
		"city":        fallback(c.City, cfg.DefaultCity),
		"country":     fallback("", cfg.DefaultCountry),
	}
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func fallback(value, def string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return def
}
