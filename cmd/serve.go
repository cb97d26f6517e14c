package cmd

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/handler"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/jobs"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/middleware"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/idp"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/rentalapi"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/statestore"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd starts the portal API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portal API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting portal backend...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Initialize the Redis-backed state store for login state and the
	// token denylist
	if err := statestore.Init(cfg); err != nil {
		log.Fatal("Failed to initialize state store", zap.Error(err))
	}
	log.Info("State store connection established")

	// Upstream clients. A missing upstream keeps the server booting, the
	// affected routes answer with a configuration error instead.
	idpClient, err := idp.NewClient(&cfg.IDP, log)
	if err != nil {
		log.Warn("Identity provider disabled", zap.Error(err))
		idpClient = nil
	}
	rentalClient, err := rentalapi.NewClient(&cfg.RentalAPI, log)
	if err != nil {
		log.Warn("Rental API disabled", zap.Error(err))
		rentalClient = nil
	}

	handler.Init(cfg, idpClient, rentalClient)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/", handler.Hello)
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Login routes - rate limited, these issue the sessions the API requires
	auth := e.Group("/auth")
	auth.Use(middleware.RateLimitMiddleware(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst))
	auth.GET("/signin", handler.SignIn)
	auth.GET("/callback", handler.Callback)
	auth.POST("/dev-bypass", handler.DevBypass)

	// API routes - all require a valid session
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// Session and onboarding stay reachable while terms acceptance is
	// pending, everything else sits behind the onboarding gate
	api.GET("/session", handler.GetSession)
	api.POST("/session/refresh", handler.RefreshSession)
	api.POST("/session/signout", handler.SignOut)
	api.GET("/onboarding", handler.GetOnboarding)
	api.POST("/onboarding/accept", handler.AcceptTerms)

	portal := api.Group("", middleware.RequireOnboarding(cfg.Portal.TermsVersion))

	// Customer portal
	portal.GET("/customers", handler.ListCustomers)
	portal.GET("/customers/:id", handler.GetCustomer)
	portal.GET("/customers/:id/machines", handler.GetCustomerMachines)
	portal.GET("/customers/:id/rentals", handler.GetCustomerRentals)

	// Company user management - company admin only, enforced per handler
	portal.GET("/customers/:id/users", handler.ListCustomerGrants)
	portal.PUT("/customers/:id/users", handler.ReplaceCustomerGrants)
	portal.DELETE("/customers/:id/users/:userId", handler.RemoveCustomerUser)

	// Admin screens - super admin only
	admin := portal.Group("/admin")
	admin.Use(middleware.RequireSuperAdmin)
	admin.GET("/users", handler.ListUsers)
	admin.POST("/users", handler.CreateUser)
	admin.GET("/users/:id", handler.GetUser)
	admin.PATCH("/users/:id", handler.UpdateUser)
	admin.DELETE("/users/:id", handler.DeleteUser)
	admin.PUT("/users/:id/grants", handler.ReplaceUserGrants)
	admin.GET("/users/:id/logins", handler.ListUserLogins)
	admin.GET("/customers", handler.ListAllCustomers)
	admin.POST("/customers", handler.CreateCustomer)
	admin.PATCH("/customers/:id", handler.UpdateCustomer)
	admin.DELETE("/customers/:id", handler.DeleteCustomer)
	admin.POST("/customers/import", handler.ImportCustomers)
	admin.GET("/logins", handler.ListRecentLogins)

	// Background jobs
	scheduler, err := jobs.Start(cfg, database.GetDB(), rentalClient, log)
	if err != nil {
		log.Fatal("Failed to schedule background jobs", zap.Error(err))
	}
	defer scheduler.Stop()

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
	return nil
}
