package handlers

import (
	"net/http"
	"strconv"

	"zap-shift-api/config"
	"zap-shift-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateRiderRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`
	District  string `json:"district"`
	Region    string `json:"region"`
	BikeBrand string `json:"bikeBrand"`
	BikeRegNo string `json:"bikeRegNo"`
}

// CreateRider files a rider application in the pending state
func CreateRider(c *gin.Context) {
	var req CreateRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rider := models.Rider{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		District:  req.District,
		Region:    req.Region,
		BikeBrand: req.BikeBrand,
		BikeRegNo: req.BikeRegNo,
		Status:    models.RiderPending,
	}
	if err := config.DB.Create(&rider).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rider application"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rider": rider})
}

// ListRiders filters riders by status, workStatus, and district
func ListRiders(c *gin.Context) {
	query := config.DB.Model(&models.Rider{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if workStatus := c.Query("workStatus"); workStatus != "" {
		query = query.Where("work_status = ?", workStatus)
	}
	if district := c.Query("district"); district != "" {
		query = query.Where("district = ?", district)
	}

	var riders []models.Rider
	if err := query.Find(&riders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list riders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(riders), "riders": riders})
}

type UpdateRiderStatusRequest struct {
	Status models.RiderStatus `json:"status" binding:"required"`
	Email  string             `json:"email"`
}

// UpdateRiderStatus approves or rejects a rider application (admin only).
// Approval makes the rider available and promotes the linked user to the
// rider role in the same transaction; rejection leaves the user untouched.
func UpdateRiderStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rider id"})
		return
	}

	var req UpdateRiderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != models.RiderApproved && req.Status != models.RiderRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be: approved or rejected"})
		return
	}

	var rider models.Rider
	if err := config.DB.First(&rider, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rider not found"})
		return
	}

	email := req.Email
	if email == "" {
		email = rider.Email
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		rider.Status = req.Status
		if req.Status == models.RiderApproved {
			rider.WorkStatus = models.WorkAvailable
		}
		if err := tx.Save(&rider).Error; err != nil {
			return err
		}

		if req.Status == models.RiderApproved {
			return tx.Model(&models.User{}).
				Where("email = ?", email).
				Update("role", models.RoleRider).Error
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rider status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rider status updated", "rider": rider})
}

// DeleteRider hard-deletes a rider (admin only)
func DeleteRider(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rider id"})
		return
	}

	res := config.DB.Delete(&models.Rider{}, uint(id))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rider"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rider not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rider deleted"})
}
