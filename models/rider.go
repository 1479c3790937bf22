package models

import "time"

// RiderStatus tracks the rider application through admin review
type RiderStatus string

const (
	RiderPending  RiderStatus = "pending"
	RiderApproved RiderStatus = "approved"
	RiderRejected RiderStatus = "rejected"
)

// WorkStatus is only meaningful once a rider is approved
type WorkStatus string

const (
	WorkAvailable  WorkStatus = "available"
	WorkInDelivery WorkStatus = "in_delivery"
)

type Rider struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	Name       string      `json:"name" gorm:"not null"`
	Email      string      `json:"email" gorm:"index;not null"`
	Phone      string      `json:"phone"`
	District   string      `json:"district" gorm:"index"`
	Region     string      `json:"region"`
	BikeBrand  string      `json:"bikeBrand"`
	BikeRegNo  string      `json:"bikeRegNo"`
	Status     RiderStatus `json:"status" gorm:"not null;default:'pending'"`
	WorkStatus WorkStatus  `json:"workStatus"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}
