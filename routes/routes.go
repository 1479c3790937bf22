package routes

import (
	"zap-shift-api/handlers"
	"zap-shift-api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine) {
	// ── Public routes ──────────────────────────────────────────────
	r.GET("/", handlers.Welcome)
	r.GET("/health", handlers.Health)
	r.GET("/state-machine", handlers.GetStateMachineInfo)

	r.POST("/auth/login", handlers.Login)

	r.POST("/users", handlers.CreateUser)
	r.GET("/users/:email/role", handlers.GetUserRole)

	r.POST("/riders", handlers.CreateRider)
	r.GET("/riders", handlers.ListRiders)

	r.POST("/parcels", handlers.CreateParcel)
	r.GET("/parcels", handlers.ListParcels)
	r.GET("/parcels/rider", handlers.ListRiderParcels)
	r.GET("/parcels/:id", handlers.GetParcel)
	r.DELETE("/parcels/:id", handlers.DeleteParcel)
	r.PATCH("/parcels/:id/status", handlers.UpdateParcelStatus)

	r.POST("/create-checkout-session", handlers.CreateCheckoutSession)
	r.PATCH("/payment-success", handlers.PaymentSuccess)

	r.GET("/tracking/:trackingId", handlers.TrackParcel)

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/")
	auth.Use(middleware.AuthRequired())
	{
		auth.GET("/users", handlers.ListUsers)
		auth.GET("/payments", handlers.ListPayments)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.PATCH("/users/:id/role", handlers.UpdateUserRole)
		admin.PATCH("/riders/:id", handlers.UpdateRiderStatus)
		admin.DELETE("/riders/:id", handlers.DeleteRider)
		admin.PATCH("/parcels/:id", handlers.AssignRider)
	}
}
