package controller

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultMaxEvidenceSize предел размера файла-доказательства
const DefaultMaxEvidenceSize = 10 << 20

type RouterConfig struct {
	Environment        string
	JWTSecret          string
	CORSAllowedOrigins []string
}

// NewRouter собирает gin engine со всеми маршрутами API
func NewRouter(cfg RouterConfig, h *Handler, logger *zap.Logger) (*gin.Engine, error) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	r.Use(RequestID())
	r.Use(AccessLog(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Подпись Stripe проверяет сервис, JWT здесь не нужен
	r.POST("/webhooks/stripe", h.StripeWebhook)

	r.GET("/availability/public/:teacher_id/agenda", h.PublicAgenda)
	r.GET("/availability/public/:teacher_id/agenda.png", h.PublicAgendaImage)

	api := r.Group("/")
	api.Use(Auth(cfg.JWTSecret))

	teacher := RequireRoles(model.RoleTeacher)
	student := RequireRoles(model.RoleStudent)

	availability := api.Group("/availability", teacher)
	{
		availability.GET("", h.ListAvailability)
		availability.POST("", h.CreateAvailability)
		availability.PUT("/:id", h.UpdateAvailability)
		availability.DELETE("/:id", h.DeleteAvailability)
		availability.GET("/agenda", h.TeacherAgenda)
	}

	bookings := api.Group("/bookings")
	{
		bookings.POST("", student, h.CreateBooking)
		bookings.GET("/verify/:session_id", student, h.VerifyBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/reschedule", student, h.StudentReschedule)
	}

	confirmations := api.Group("/confirmations")
	{
		confirmations.POST("/teacher", teacher, h.ConfirmTeacher)
		confirmations.POST("/student", student, h.ConfirmStudent)
		confirmations.GET("/:booking_id", h.GetConfirmation)
	}

	reschedules := api.Group("/reschedule-requests")
	{
		reschedules.POST("", teacher, h.ProposeReschedule)
		reschedules.GET("", h.ListReschedules)
		reschedules.POST("/:id/respond", student, h.RespondReschedule)
	}

	refunds := api.Group("/refunds", student)
	{
		refunds.POST("/student", h.RequestRefund)
		refunds.GET("", h.ListRefunds)
	}

	api.GET("/wallet/balance", teacher, h.WalletBalance)

	return r, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
