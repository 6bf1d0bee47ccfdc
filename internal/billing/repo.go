package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentpay-backend/pkg/enums"
)

// DueAgreement is one tenancy that still owes rent for the current period.
type DueAgreement struct {
	AgreementID uuid.UUID       `gorm:"column:agreement_id"`
	CustomerID  uuid.UUID       `gorm:"column:customer_id"`
	PropertyID  uuid.UUID       `gorm:"column:property_id"`
	OwnerID     uuid.UUID       `gorm:"column:owner_id"`
	MonthlyRent decimal.Decimal `gorm:"column:monthly_rent"`
}

// Repository reads the agreements the sweep must charge.
type Repository interface {
	ListDueAgreements(ctx context.Context, today, periodStart, nextPeriodStart time.Time) ([]DueAgreement, error)
	HasSuccessfulPayment(ctx context.Context, customerID, propertyID uuid.UUID, periodStart, nextPeriodStart time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

const dueAgreementsQuery = `
SELECT ra.id AS agreement_id,
       ra.customer_id,
       ra.property_id,
       p.owner_id,
       ra.monthly_rent
FROM rental_agreements ra
JOIN properties p ON p.id = ra.property_id
WHERE ra.status = ?
  AND ra.lease_start_date <= ?
  AND ra.lease_end_date >= ?
  AND NOT EXISTS (
    SELECT 1
    FROM payments pay
    WHERE pay.customer_id = ra.customer_id
      AND pay.property_id = ra.property_id
      AND pay.status = ?
      AND pay.created_at >= ?
      AND pay.created_at < ?
  )
ORDER BY ra.created_at ASC, ra.id ASC`

// ListDueAgreements returns active agreements covering today that have no
// successful payment in [periodStart, nextPeriodStart). The check runs fresh
// on every call so only committed payments exclude a row.
func (r *repository) ListDueAgreements(ctx context.Context, today, periodStart, nextPeriodStart time.Time) ([]DueAgreement, error) {
	var rows []DueAgreement
	err := r.db.WithContext(ctx).Raw(dueAgreementsQuery,
		enums.AgreementStatusActive,
		today,
		today,
		enums.PaymentStatusSuccessful,
		periodStart,
		nextPeriodStart,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HasSuccessfulPayment re-checks a single (customer, property, period) key.
// The sweep calls it after taking the period lock because the due list may
// have been read before a concurrent sweep committed its charge.
func (r *repository) HasSuccessfulPayment(ctx context.Context, customerID, propertyID uuid.UUID, periodStart, nextPeriodStart time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("payments").
		Where("customer_id = ? AND property_id = ? AND status = ?", customerID, propertyID, enums.PaymentStatusSuccessful).
		Where("created_at >= ? AND created_at < ?", periodStart, nextPeriodStart).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PeriodBounds returns the UTC calendar day of now plus the first instant of
// its month and of the following month.
func PeriodBounds(now time.Time) (today, start, next time.Time) {
	utc := now.UTC()
	today = time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	start = time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	next = start.AddDate(0, 1, 0)
	return today, start, next
}

// PeriodLabel formats the billing period used in lock keys, e.g. 2026-03.
func PeriodLabel(periodStart time.Time) string {
	return periodStart.UTC().Format("2006-01")
}
