package models

import "time"

// PaymentEvent is one delivered IPN. The (order_id, payment_status) pair is
// unique so at-least-once delivery collapses to one row.
type PaymentEvent struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	OrderID       string     `gorm:"not null;uniqueIndex:ux_payment_events_order_status,priority:1" json:"order_id"`
	PaymentStatus string     `gorm:"not null;uniqueIndex:ux_payment_events_order_status,priority:2" json:"payment_status"`
	ApplyID       string     `gorm:"index;not null" json:"apply_id"`
	IsPaid        bool       `json:"is_paid"`
	InvoiceID     string     `json:"invoice_id"`
	ActuallyPaid  string     `json:"actually_paid"`
	Raw           string     `gorm:"type:text" json:"-"`
	ArchiveKey    string     `json:"archive_key,omitempty"`
	ForwardedAt   *time.Time `json:"forwarded_at,omitempty"`
	ForwardError  string     `gorm:"type:text" json:"forward_error,omitempty"`

	Timestamps
}
