package handlers

import (
	"errors"
	"net/http"

	"zap-shift-api/config"
	"zap-shift-api/lifecycle"
	"zap-shift-api/middleware"
	"zap-shift-api/models"
	"zap-shift-api/payments"

	"github.com/gin-gonic/gin"
)

type CreateCheckoutSessionRequest struct {
	ParcelID    uint    `json:"parcelId" binding:"required"`
	Cost        float64 `json:"cost" binding:"required"`
	ParcelName  string  `json:"parcelName" binding:"required"`
	SenderEmail string  `json:"senderEmail" binding:"required,email"`
}

// CreateCheckoutSession opens a hosted checkout flow and returns the gateway
// redirect URL
func CreateCheckoutSession(c *gin.Context) {
	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	url, err := engine.CreateCheckoutSession(c.Request.Context(), lifecycle.CheckoutParams{
		ParcelID:    req.ParcelID,
		Cost:        req.Cost,
		ParcelName:  req.ParcelName,
		SenderEmail: req.SenderEmail,
	})
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidCost) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cost must be a positive amount"})
			return
		}
		var gwErr *payments.GatewayError
		if errors.As(err, &gwErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable", "code": "gateway_error"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// PaymentSuccess is the idempotent reconciliation entry point hit when the
// client returns from the hosted checkout flow
func PaymentSuccess(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	result, err := engine.ConfirmPayment(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrParcelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Parcel referenced by the session was not found"})
			return
		}
		if errors.Is(err, lifecycle.ErrParcelAlreadyPaid) {
			c.JSON(http.StatusConflict, gin.H{"error": "Parcel is already paid"})
			return
		}
		var gwErr *payments.GatewayError
		if errors.As(err, &gwErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable", "code": "gateway_error"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm payment"})
		return
	}

	if result.AlreadyProcessed {
		c.JSON(http.StatusOK, gin.H{
			"message":     "payment already exist",
			"paymentInfo": result.Payment,
		})
		return
	}
	if !result.Success {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"modifiedParcel": result.Parcel,
		"paymentInfo":    result.Payment,
		"trackingId":     result.TrackingID,
		"transactionId":  result.TransactionID,
	})
}

// ListPayments returns the caller's own payment history, newest first. Asking
// for someone else's email is forbidden.
func ListPayments(c *gin.Context) {
	verifiedEmail := middleware.GetEmail(c)

	email := c.Query("email")
	if email == "" {
		email = verifiedEmail
	}
	if email != verifiedEmail {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden Access"})
		return
	}

	var paymentRecords []models.Payment
	if err := config.DB.Where("customer_email = ?", email).
		Order("paid_at desc").
		Find(&paymentRecords).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(paymentRecords), "payments": paymentRecords})
}

// TrackParcel is the public tracking lookup, served from the cache when warm
func TrackParcel(c *gin.Context) {
	trackingID := c.Param("trackingId")

	parcel, err := engine.ParcelByTrackingID(c.Request.Context(), trackingID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrParcelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No parcel with that tracking id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up tracking id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"parcel": parcel})
}
