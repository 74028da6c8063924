package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"healthcare-appointment-server/internal/cache"
	"healthcare-appointment-server/internal/config"
	"healthcare-appointment-server/internal/handlers"
	"healthcare-appointment-server/internal/ledger"
	"healthcare-appointment-server/internal/logger"
	"healthcare-appointment-server/internal/metrics"
	"healthcare-appointment-server/internal/middleware"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/reporting"
	"healthcare-appointment-server/internal/utils"
)

// Dependencies are the shared services the router wires into handlers.
// Cache and Metrics may be nil.
type Dependencies struct {
	DB      *gorm.DB
	Config  *config.Config
	Log     *logger.Logger
	Cache   *cache.Cache
	Metrics *metrics.Metrics
	// Now overrides the ledger and reporting clock. Tests only.
	Now func() time.Time
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(deps.Log), middleware.RequestLogger(deps.Log))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{deps.Config.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Timeout(deps.Config.RequestTimeout()))

	SetupRoutes(router, deps)
	return router
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config

	appointmentLedger := ledger.New(deps.DB, deps.Log, deps.Cache, deps.Metrics, ledger.Options{
		CancellationLeadDays: cfg.CancellationLeadDays,
		Location:             cfg.Location(),
		Now:                  deps.Now,
	})
	reporter := reporting.New(deps.DB, deps.Cache, cfg.Location(), deps.Now)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.DB, cfg, deps.Log)
	adminHandler := handlers.NewAdminHandler(deps.DB, deps.Cache, deps.Log)
	patientHandler := handlers.NewPatientHandler(deps.DB, deps.Cache, deps.Log)
	doctorHandler := handlers.NewDoctorHandler(deps.DB, deps.Cache, deps.Log)
	appointmentHandler := handlers.NewAppointmentHandler(appointmentLedger)
	dashboardHandler := handlers.NewDashboardHandler(reporter)

	adminOnly := middleware.RoleAuthMiddleware(models.RoleAdmin)
	patientOnly := middleware.RoleAuthMiddleware(models.RolePatient)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		public.POST("/admin/login", authHandler.AdminLogin)
		public.POST("/patient/login", authHandler.PatientLogin)
		public.POST("/patient", patientHandler.CreatePatient)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		private.GET("/me", authHandler.Me)

		adminRoutes := private.Group("/admin")
		adminRoutes.Use(adminOnly)
		{
			adminRoutes.POST("", adminHandler.CreateAdmin)
			adminRoutes.GET("", adminHandler.GetAdmins)
			adminRoutes.GET("/:id", adminHandler.GetAdminByID)
			adminRoutes.PUT("/:id", adminHandler.UpdateAdmin)
			adminRoutes.PATCH("/update-password/:id", adminHandler.UpdatePassword)
			adminRoutes.DELETE("/:id", adminHandler.DeleteAdmin)
		}

		// Patients can read and update their own record; the handler checks ownership.
		patientRoutes := private.Group("/patient")
		{
			patientRoutes.GET("", adminOnly, patientHandler.GetPatients)
			patientRoutes.GET("/:id", patientHandler.GetPatientByID)
			patientRoutes.PUT("/:id", patientHandler.UpdatePatient)
			patientRoutes.PATCH("/update-password/:id", patientHandler.UpdatePassword)
			patientRoutes.PATCH("/account-status/:id", adminOnly, patientHandler.UpdateAccountStatus)
			patientRoutes.DELETE("/:id", adminOnly, patientHandler.DeletePatient)
		}

		doctorRoutes := private.Group("/doctor")
		{
			doctorRoutes.GET("", doctorHandler.GetDoctors)
			doctorRoutes.GET("/:id", doctorHandler.GetDoctorByID)
			doctorRoutes.POST("", adminOnly, doctorHandler.CreateDoctor)
			doctorRoutes.PUT("/:id", adminOnly, doctorHandler.UpdateDoctor)
			doctorRoutes.PATCH("/status/:id", adminOnly, doctorHandler.UpdateDoctorStatus)
			doctorRoutes.DELETE("/:id", adminOnly, doctorHandler.DeleteDoctor)
		}

		// Appointment routes. Ownership and role rules are enforced by the ledger.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.PUT("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.PATCH("/status/:id", appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.PATCH("/notes/:id", appointmentHandler.UpdateAppointmentNotes)
			appointmentRoutes.PATCH("/cancel-reason/:id", appointmentHandler.CancelAppointment)
			appointmentRoutes.PATCH("/reschedule/:id", appointmentHandler.RescheduleAppointment)
			appointmentRoutes.PATCH("/reschedule/:id/accept", appointmentHandler.AcceptReschedule)
			appointmentRoutes.PATCH("/reschedule/:id/decline", appointmentHandler.DeclineReschedule)
			appointmentRoutes.DELETE("/:id", appointmentHandler.DeleteAppointment)
		}

		dashboardRoutes := private.Group("/dashboard")
		{
			dashboardRoutes.GET("/stats", adminOnly, dashboardHandler.Stats)
			dashboardRoutes.GET("/appointments-by-month", adminOnly, dashboardHandler.AppointmentsByMonth)
			dashboardRoutes.GET("/registrations-by-month", adminOnly, dashboardHandler.RegistrationsByMonth)
			dashboardRoutes.GET("/recent-appointments", adminOnly, dashboardHandler.RecentAppointments)
			dashboardRoutes.GET("/new-patients", adminOnly, dashboardHandler.NewPatients)
			dashboardRoutes.GET("/me/upcoming", patientOnly, dashboardHandler.MyUpcoming)
			dashboardRoutes.GET("/me/appointments-by-month", patientOnly, dashboardHandler.MyAppointmentsByMonth)
		}
	}

	// Health check pings the database
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			deps.Log.WithComponent("health").WithError(err).Warn("database ping failed")
			utils.Error(c, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		utils.Success(c, "UP", gin.H{"database": "up"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
}
