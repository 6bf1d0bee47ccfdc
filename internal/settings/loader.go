package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/rentpay-backend/pkg/config"
	"github.com/angelmondragon/rentpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rentpay-backend/pkg/errors"
	"github.com/angelmondragon/rentpay-backend/pkg/payhere"
)

// Keys stored in the settings table.
const (
	KeyMerchantID           = "payhere_merchant_id"
	KeyMerchantSecret       = "payhere_merchant_secret"
	KeyMode                 = "payhere_mode"
	KeyAppID                = "payhere_app_id"
	KeyAppSecret            = "payhere_app_secret"
	KeyCurrency             = "payhere_currency"
	KeyCommissionPercentage = "commission_percentage"
)

// Loader produces one gateway snapshot per operation: environment defaults
// overlaid with whatever the settings table holds.
type Loader struct {
	repo       Repository
	defaults   config.PayHereConfig
	commission string
	fromDB     bool
}

type LoaderParams struct {
	Repository Repository
	PayHere    config.PayHereConfig
	Billing    config.BillingConfig
	FromDB     bool
}

func NewLoader(params LoaderParams) (*Loader, error) {
	if params.FromDB && params.Repository == nil {
		return nil, errors.New("settings repository required when reading settings from the database")
	}
	return &Loader{
		repo:       params.Repository,
		defaults:   params.PayHere,
		commission: params.Billing.CommissionPercentage,
		fromDB:     params.FromDB,
	}, nil
}

// Load returns a validated snapshot. Missing or invalid values surface as a
// CodeConfiguration error before any gateway call can be made.
func (l *Loader) Load(ctx context.Context) (payhere.Config, error) {
	values := map[string]string{
		KeyMerchantID:           l.defaults.MerchantID,
		KeyMerchantSecret:       l.defaults.MerchantSecret,
		KeyMode:                 l.defaults.NormalizedMode(),
		KeyAppID:                l.defaults.AppID,
		KeyAppSecret:            l.defaults.AppSecret,
		KeyCurrency:             l.defaults.Currency,
		KeyCommissionPercentage: l.commission,
	}

	if l.fromDB {
		rows, err := l.repo.List(ctx)
		if err != nil {
			return payhere.Config{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load settings")
		}
		for _, row := range rows {
			if _, known := values[row.Key]; !known {
				continue
			}
			if trimmed := strings.TrimSpace(row.Value); trimmed != "" {
				values[row.Key] = trimmed
			}
		}
	}

	commission, err := decimal.NewFromString(strings.TrimSpace(values[KeyCommissionPercentage]))
	if err != nil {
		return payhere.Config{}, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "commission percentage is not a number")
	}

	cfg := payhere.Config{
		MerchantID:           strings.TrimSpace(values[KeyMerchantID]),
		MerchantSecret:       values[KeyMerchantSecret],
		Mode:                 enums.GatewayMode(strings.ToLower(strings.TrimSpace(values[KeyMode]))),
		AppID:                strings.TrimSpace(values[KeyAppID]),
		AppSecret:            values[KeyAppSecret],
		Currency:             strings.ToUpper(strings.TrimSpace(values[KeyCurrency])),
		CommissionPercentage: commission,
		BaseURL:              l.defaults.BaseURL,
		DefaultAddress:       l.defaults.DefaultAddress,
		DefaultCity:          l.defaults.DefaultCity,
		DefaultCountry:       l.defaults.DefaultCountry,
	}
	if err := cfg.Validate(); err != nil {
		return payhere.Config{}, err
	}
	return cfg, nil
}
