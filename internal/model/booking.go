package model

import "time"

// BookingStatus is the lifecycle state of a booking. Cancelled bookings are
// kept forever; they stop counting against capacity but remain auditable.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// PaymentStatus is owned by the payment collaborator and only mirrored here.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking reserves PlacesBooked units of capacity on one concrete slot
// instance (configuration, date, duration option).
type Booking struct {
	ID             int64 `gorm:"primaryKey" json:"id"`
	CalendarID     int64 `gorm:"index;not null" json:"calendar_id"`
	OrganizationID int64 `gorm:"index;not null" json:"organization_id"`

	ConfigurationID  int64     `gorm:"not null" json:"configuration_id"`
	DurationOptionID int64     `gorm:"not null" json:"duration_option_id"`
	BookingDate      time.Time `gorm:"type:date;not null;index" json:"booking_date"`
	StartTime        string    `gorm:"size:8;not null" json:"start_time"`
	DurationMinutes  int       `gorm:"not null" json:"duration_minutes"`

	BookingReference string `gorm:"size:64;uniqueIndex;not null" json:"booking_reference"`
	UserID           int64  `gorm:"index;not null" json:"user_id"`
	PlacesBooked     int    `gorm:"not null" json:"places_booked"`

	PricePerPlace float64 `gorm:"not null" json:"price_per_place"`
	TotalPrice    float64 `gorm:"not null" json:"total_price"`

	BookingStatus BookingStatus `gorm:"size:16;not null" json:"booking_status"`
	PaymentStatus PaymentStatus `gorm:"size:16;not null" json:"payment_status"`
	PaymentMethod string        `gorm:"size:64" json:"payment_method"`

	// Client-supplied token making createBooking retries safe. Empty when
	// the client did not send one.
	IdempotencyKey string `gorm:"size:64;index" json:"-"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        int64      `json:"cancelled_by,omitempty"`
	CancellationReason string     `gorm:"size:512" json:"cancellation_reason,omitempty"`

	RefundProcessed bool       `gorm:"not null" json:"refund_processed"`
	RefundedAt      *time.Time `json:"refunded_at,omitempty"`

	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// History actions.
const (
	HistoryCreated         = "created"
	HistoryCancelled       = "cancelled"
	HistoryRefundRequested = "refund_requested"
	HistoryRefunded        = "refunded"
	HistoryPaymentUpdated  = "payment_updated"
)

// BookingHistory is one append-only row per state-changing action on a
// booking. Rows are never updated or deleted.
type BookingHistory struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	BookingID int64  `gorm:"index;not null" json:"booking_id"`
	Action    string `gorm:"size:32;not null" json:"action"`

	PreviousValue string `gorm:"size:256" json:"previous_value"`
	NewValue      string `gorm:"size:256" json:"new_value"`
	Notes         string `gorm:"size:1024" json:"notes"`
	ActorID       int64  `json:"actor_id"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
