package models

import "time"

type PaymentState string

const (
	PaymentUnpaid PaymentState = "unpaid"
	PaymentPaid   PaymentState = "paid"
)

// DeliveryStatus represents all possible states of a parcel delivery
type DeliveryStatus string

const (
	StatusPending       DeliveryStatus = "pending"
	StatusPendingPickup DeliveryStatus = "pending-pickup"
	StatusRiderAssigned DeliveryStatus = "rider_assigned"
	StatusRiderArriving DeliveryStatus = "rider_arriving"
	StatusDelivered     DeliveryStatus = "parcel_delivered"
)

type Parcel struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Name            string         `json:"name" gorm:"not null"`
	Weight          float64        `json:"weight"`
	SenderName      string         `json:"senderName"`
	SenderEmail     string         `json:"senderEmail" gorm:"index;not null"`
	ReceiverName    string         `json:"receiverName"`
	ReceiverPhone   string         `json:"receiverPhone"`
	PickupAddress   string         `json:"pickupAddress"`
	DeliveryAddress string         `json:"deliveryAddress"`
	Cost            float64        `json:"cost" gorm:"not null"`
	PaymentStatus   PaymentState   `json:"paymentStatus" gorm:"not null;default:'unpaid'"`
	DeliveryStatus  DeliveryStatus `json:"deliveryStatus" gorm:"not null;default:'pending'"`

	// Rider identity fields are set together on assignment or not at all.
	RiderID    *uint  `json:"riderId"`
	RiderName  string `json:"riderName"`
	RiderEmail string `json:"riderEmail" gorm:"index"`

	// Issued exactly once, when the parcel transitions to paid.
	TrackingID *string `json:"trackingId" gorm:"uniqueIndex"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
