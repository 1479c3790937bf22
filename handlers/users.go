package handlers

import (
	"net/http"
	"strconv"

	"zap-shift-api/config"
	"zap-shift-api/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
}

// CreateUser handles signup. Creating with an existing email is a no-op that
// returns the existing record.
func CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.User
	if err := config.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusOK, gin.H{"message": "User Already Exist", "user": existing})
		return
	}

	user := models.User{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Role:        models.RoleUser,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		user.PasswordHash = string(hash)
	}

	if err := config.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// ListUsers returns users, optionally filtered by a search on display name or
// email, newest first
func ListUsers(c *gin.Context) {
	query := config.DB.Model(&models.User{})
	if searchText := c.Query("searchText"); searchText != "" {
		like := "%" + searchText + "%"
		query = query.Where("display_name LIKE ? OR email LIKE ?", like, like)
	}

	var users []models.User
	if err := query.Order("created_at desc").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

type UpdateUserRoleRequest struct {
	Role models.UserRole `json:"role" binding:"required"`
}

// UpdateUserRole sets a user's role (admin only)
func UpdateUserRole(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var req UpdateUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Role {
	case models.RoleUser, models.RoleRider, models.RoleAdmin:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role. Must be: user, rider, or admin"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := config.DB.Model(&user).Update("role", req.Role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated", "user": user})
}

// GetUserRole resolves the stored role for an email, defaulting to "user".
// Used for client-side UI gating; security-sensitive checks go through
// middleware.AdminRequired instead.
func GetUserRole(c *gin.Context) {
	email := c.Param("email")

	var user models.User
	if err := config.DB.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"role": models.RoleUser})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": user.Role})
}
