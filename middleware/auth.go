package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"zap-shift-api/config"
	"zap-shift-api/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type Claims struct {
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a given user
func GenerateToken(user *models.User) (string, error) {
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(config.JWTSecret)
}

// AuthRequired validates the bearer token and injects the verified email
// into the request context
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized Access"})
			c.Abort()
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return config.JWTSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized Access"})
			c.Abort()
			return
		}
		c.Set("email", claims.Email)
		c.Next()
	}
}

// AdminRequired gates administrative routes. The role comes from the stored
// user record, not the token, so a stale token cannot outlive a demotion.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := GetEmail(c)

		var user models.User
		err := config.DB.Where("email = ?", email).First(&user).Error
		if err != nil || user.Role != models.RoleAdmin {
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify authorization"})
				c.Abort()
				return
			}
			c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden Access"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetEmail extracts the verified email from context
func GetEmail(c *gin.Context) string {
	val, _ := c.Get("email")
	email, _ := val.(string)
	return email
}
