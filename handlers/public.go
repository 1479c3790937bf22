package handlers

import (
	"net/http"

	"zap-shift-api/models"
	"zap-shift-api/statemachine"

	"github.com/gin-gonic/gin"
)

// Health is the liveness endpoint
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Zap Shift Parcel Delivery API",
		"version": "1.0.0",
	})
}

// Welcome greets the root path
func Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Zap shift server is running",
		"docs":    "/state-machine",
		"health":  "/health",
	})
}

// GetStateMachineInfo exposes the delivery-status transition table for docs
// and client tooling
func GetStateMachineInfo(c *gin.Context) {
	transitions := statemachine.GetAllTransitions()

	out := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, gin.H{
			"from":  t.From,
			"to":    t.To,
			"actor": t.Actor,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"states": []models.DeliveryStatus{
			models.StatusPending,
			models.StatusPendingPickup,
			models.StatusRiderAssigned,
			models.StatusRiderArriving,
			models.StatusDelivered,
		},
		"transitions": out,
	})
}
