package payhere

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
)

const (
	SandboxBaseURL = "https://sandbox.payhere.lk"
	LiveBaseURL    = "https://www.payhere.lk"

	checkoutPath = "/pay/checkout"
	tokenPath    = "/merchant/v1/oauth/token"
	chargePath   = "/merchant/v1/payment/charge"
)

var hundred = decimal.NewFromInt(100)

// Config is one immutable snapshot of the gateway settings. A sweep run or a
// request takes a single snapshot and passes it down so credentials can never
// be mixed between sandbox and live mid-operation.
type Config struct {
	MerchantID           string
	MerchantSecret       string
	Mode                 enums.GatewayMode
	AppID                string
	AppSecret            string
	Currency             string
	CommissionPercentage decimal.Decimal

	// BaseURL overrides the host derived from Mode.
	BaseURL string

	DefaultAddress string
	DefaultCity    string
	DefaultCountry string
}

// Validate checks the fields every gateway interaction needs.
func (c Config) Validate() error {
	return configurationError(c.problems())
}

// ValidateRecurring additionally requires the app credentials used for
// server-to-server charges.
func (c Config) ValidateRecurring() error {
	errs := c.problems()
	if strings.TrimSpace(c.AppID) == "" {
		errs = multierr.Append(errs, errors.New("app id is required"))
	}
	if strings.TrimSpace(c.AppSecret) == "" {
		errs = multierr.Append(errs, errors.New("app secret is required"))
	}
	return configurationError(errs)
}

func (c Config) problems() error {
	var errs error
	if strings.TrimSpace(c.MerchantID) == "" {
		errs = multierr.Append(errs, errors.New("merchant id is required"))
	}
	if strings.TrimSpace(c.MerchantSecret) == "" {
		errs = multierr.Append(errs, errors.New("merchant secret is required"))
	}
	if !c.Mode.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("mode %q must be sandbox or live", c.Mode))
	}
	if strings.TrimSpace(c.Currency) == "" {
		errs = multierr.Append(errs, errors.New("currency is required"))
	}
	if c.CommissionPercentage.IsNegative() || c.CommissionPercentage.GreaterThan(hundred) {
		errs = multierr.Append(errs, fmt.Errorf("commission percentage %s must be between 0 and 100", c.CommissionPercentage))
	}
	return errs
}

func configurationError(errs error) error {
	if errs == nil {
		return nil
	}
	messages := make([]string, 0)
	for _, err := range multierr.Errors(errs) {
		messages = append(messages, err.Error())
	}
	return pkgerrors.Wrap(pkgerrors.CodeConfiguration, errs, "invalid payhere configuration").WithDetails(map[string]any{"problems": messages})
}

func (c Config) baseURL() string {
	if trimmed := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); trimmed != "" {
		return trimmed
	}
	if c.Mode == enums.GatewayModeLive {
		return LiveBaseURL
	}
	return SandboxBaseURL
}

func (c Config) CheckoutURL() string { return c.baseURL() + checkoutPath }

func (c Config) TokenURL() string { return c.baseURL() + tokenPath }

func (c Config) ChargeURL() string { return c.baseURL() + chargePath }
