package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// SMSStatus tracks dispatch of a verification code.
type SMSStatus string

const (
	SMSPending SMSStatus = "pending"
	SMSSent    SMSStatus = "sent"
	SMSFailed  SMSStatus = "failed"
)

// VerificationCode proves delivery of an order to its recipient.
// Current is true for the single live code of an order and NULL once superseded,
// which lets a plain unique index on (order_id, is_current) allow one live code.
type VerificationCode struct {
	bun.BaseModel `bun:"table:verification_codes,alias:vc"`

	ID               int64      `bun:",pk,autoincrement" json:"id"`
	OrderID          int64      `bun:"order_id,notnull" json:"order_id"`
	Code             string     `bun:"code,notnull" json:"-"`
	CustomerPhone    string     `bun:"customer_phone,notnull" json:"customer_phone"`
	CustomerName     string     `bun:"customer_name" json:"customer_name,omitempty"`
	SMSStatus        SMSStatus  `bun:"sms_status,notnull" json:"sms_status"`
	SMSFailure       string     `bun:"sms_failure" json:"sms_failure,omitempty"`
	SMSAttempts      int        `bun:"sms_attempts,notnull,default:0" json:"sms_attempts"`
	IsVerified       bool       `bun:"is_verified,notnull,default:false" json:"is_verified"`
	VerifiedAt       *time.Time `bun:"verified_at" json:"verified_at,omitempty"`
	VerifiedBy       string     `bun:"verified_by" json:"verified_by,omitempty"`
	VerifiedLocation string     `bun:"verified_location" json:"verified_location,omitempty"`
	DeliveryAttempts int        `bun:"delivery_attempts,notnull,default:0" json:"delivery_attempts"`
	FailureReasons   []string   `bun:"failure_reasons,type:text" json:"failure_reasons,omitempty"`
	Current          *bool      `bun:"is_current" json:"-"`
	SupersededAt     *time.Time `bun:"superseded_at" json:"superseded_at,omitempty"`
	ExpiresAt        time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// ExpiredAt reports whether the code can no longer be verified at now.
func (v *VerificationCode) ExpiredAt(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// IsCurrent reports whether the code is the live code for its order.
func (v *VerificationCode) IsCurrent() bool {
	return v.Current != nil && *v.Current
}
