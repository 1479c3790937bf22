package models

import "time"

// Payment is written exactly once per gateway transaction and never updated.
// The unique index on TransactionID is the authoritative idempotency guard:
// a duplicate confirmation loses the insert race and is reported as already
// processed.
type Payment struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Amount        float64   `json:"amount" gorm:"not null"`
	Currency      string    `json:"currency"`
	CustomerEmail string    `json:"customerEmail" gorm:"index"`
	ParcelID      uint      `json:"parcelId" gorm:"index"`
	ParcelName    string    `json:"parcelName"`
	TransactionID string    `json:"transactionId" gorm:"uniqueIndex;not null"`
	PaymentStatus string    `json:"paymentStatus"`
	PaidAt        time.Time `json:"paidAt"`
	TrackingID    string    `json:"trackingId"`
	CreatedAt     time.Time `json:"createdAt"`
}
