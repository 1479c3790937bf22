package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"zap-shift-api/config"
	"zap-shift-api/lifecycle"
	"zap-shift-api/models"
	"zap-shift-api/statemachine"

	"github.com/gin-gonic/gin"
)

type CreateParcelRequest struct {
	Name            string  `json:"name" binding:"required"`
	Weight          float64 `json:"weight"`
	SenderName      string  `json:"senderName"`
	SenderEmail     string  `json:"senderEmail" binding:"required,email"`
	ReceiverName    string  `json:"receiverName"`
	ReceiverPhone   string  `json:"receiverPhone"`
	PickupAddress   string  `json:"pickupAddress"`
	DeliveryAddress string  `json:"deliveryAddress"`
	Cost            float64 `json:"cost" binding:"required"`
}

// CreateParcel stores a new unpaid parcel
func CreateParcel(c *gin.Context) {
	var req CreateParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parcel := models.Parcel{
		Name:            req.Name,
		Weight:          req.Weight,
		SenderName:      req.SenderName,
		SenderEmail:     req.SenderEmail,
		ReceiverName:    req.ReceiverName,
		ReceiverPhone:   req.ReceiverPhone,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
		Cost:            req.Cost,
	}
	if err := engine.CreateParcel(c.Request.Context(), &parcel); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidCost) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cost must be a positive amount"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create parcel"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"parcel": parcel})
}

// ListParcels filters parcels by sender email and delivery status, newest
// first
func ListParcels(c *gin.Context) {
	query := config.DB.Model(&models.Parcel{})
	if email := c.Query("email"); email != "" {
		query = query.Where("sender_email = ?", email)
	}
	if status := c.Query("deliveryStatus"); status != "" {
		query = query.Where("delivery_status = ?", status)
	}

	var parcels []models.Parcel
	if err := query.Order("created_at desc").Find(&parcels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list parcels"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(parcels), "parcels": parcels})
}

// ListRiderParcels returns a rider's active workload, or their completed
// deliveries when deliveryStatus=parcel_delivered is asked for explicitly
func ListRiderParcels(c *gin.Context) {
	query := config.DB.Model(&models.Parcel{})
	if riderEmail := c.Query("riderEmail"); riderEmail != "" {
		query = query.Where("rider_email = ?", riderEmail)
	}
	if c.Query("deliveryStatus") == string(models.StatusDelivered) {
		query = query.Where("delivery_status = ?", models.StatusDelivered)
	} else {
		query = query.Where("delivery_status <> ?", models.StatusDelivered)
	}

	var parcels []models.Parcel
	if err := query.Find(&parcels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list parcels"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(parcels), "parcels": parcels})
}

// GetParcel fetches a single parcel by id
func GetParcel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parcel id"})
		return
	}

	var parcel models.Parcel
	if err := config.DB.First(&parcel, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Parcel not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"parcel": parcel})
}

// DeleteParcel hard-deletes a parcel
func DeleteParcel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parcel id"})
		return
	}

	if err := engine.DeleteParcel(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, lifecycle.ErrParcelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Parcel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete parcel"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Parcel deleted"})
}

type AssignRiderRequest struct {
	RiderID    uint   `json:"riderId" binding:"required"`
	RiderName  string `json:"riderName"`
	RiderEmail string `json:"riderEmail"`
}

// AssignRider assigns a rider to a paid parcel (admin only). Rider name and
// email are taken from the rider record, so the parcel's rider identity
// fields can never be partially set.
func AssignRider(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parcel id"})
		return
	}

	var req AssignRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parcel, rider, err := engine.AssignRider(c.Request.Context(), uint(id), req.RiderID)
	if err != nil {
		var invalid *statemachine.InvalidTransitionError
		switch {
		case errors.Is(err, lifecycle.ErrParcelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Parcel not found"})
		case errors.Is(err, lifecycle.ErrRiderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Rider not found"})
		case errors.Is(err, lifecycle.ErrRiderUnavailable):
			c.JSON(http.StatusConflict, gin.H{"error": "Rider is not available"})
		case errors.As(err, &invalid):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":             "Invalid state transition",
				"reason":            err.Error(),
				"valid_next_states": statemachine.ValidTransitionsFrom(invalid.From),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign rider"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Rider assigned",
		"parcel":  parcel,
		"rider":   rider,
	})
}

type UpdateParcelStatusRequest struct {
	DeliveryStatus models.DeliveryStatus `json:"deliveryStatus" binding:"required"`
	RiderID        *uint                 `json:"riderId"`
}

// UpdateParcelStatus applies a delivery-status transition. The rider-workload
// side effect (freeing the rider on parcel_delivered) comes from the
// transition table, keyed by the rider already recorded on the parcel.
func UpdateParcelStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parcel id"})
		return
	}

	var req UpdateParcelStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parcel, err := engine.UpdateDeliveryStatus(c.Request.Context(), uint(id), req.DeliveryStatus, "rider")
	if err != nil {
		var invalid *statemachine.InvalidTransitionError
		switch {
		case errors.Is(err, lifecycle.ErrParcelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Parcel not found"})
		case errors.Is(err, lifecycle.ErrUnknownStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, lifecycle.ErrAssignmentRequired):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, lifecycle.ErrRiderNotFound):
			c.JSON(http.StatusConflict, gin.H{"error": "Parcel has no assigned rider to update"})
		case errors.As(err, &invalid):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":             "Invalid state transition",
				"current_status":    invalid.From,
				"reason":            err.Error(),
				"valid_next_states": statemachine.ValidTransitionsFrom(invalid.From),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update delivery status"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Delivery status updated",
		"parcel":  parcel,
	})
}
