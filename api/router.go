// api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Annany2002/cadastro-backend/api/handlers"
	"github.com/Annany2002/cadastro-backend/api/middleware"
	"github.com/Annany2002/cadastro-backend/config"
	"github.com/Annany2002/cadastro-backend/internal/service"
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(engine *service.Engine, cfg *config.Config) *gin.Engine {
	router := gin.Default() // Includes Logger and Recovery

	router.Use(cors.New(corsConfig(cfg)))
	router.Use(middleware.RequestID())

	ratelimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	router.Use(middleware.RateLimitMiddleware(ratelimiter))
	// Runs after the handlers so it can render whatever they attached.
	router.Use(middleware.ErrorHandler())

	authHandler := handlers.NewAuthHandler(engine, cfg)
	tableHandler := handlers.NewTableHandler(engine)
	recordHandler := handlers.NewRecordHandler(engine)
	permissionHandler := handlers.NewPermissionHandler(engine)
	accountHandler := handlers.NewAccountHandler(engine)

	// --- Public Routes ---
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	// --- Protected Routes ---
	apiRoutes := router.Group("/api/v1")
	apiRoutes.Use(middleware.AuthMiddleware(cfg, engine))
	{
		apiRoutes.GET("/me", authHandler.Me)

		apiRoutes.GET("/tables", tableHandler.ListTables)
		apiRoutes.POST("/tables", tableHandler.CreateTable)
		apiRoutes.GET("/tables/:table_name", tableHandler.DescribeTable)
		apiRoutes.PATCH("/tables/:table_name", tableHandler.UpdateTable)
		apiRoutes.POST("/tables/:table_name/fields", tableHandler.AddField)
		apiRoutes.PUT("/tables/:table_name/status", tableHandler.SetStatus)

		apiRoutes.POST("/tables/:table_name/records", recordHandler.CreateRecord)
		apiRoutes.POST("/tables/:table_name/import", recordHandler.ImportRecords)
		apiRoutes.GET("/tables/:table_name/records", recordHandler.ListRecords)
		apiRoutes.GET("/tables/:table_name/records/:record_id", recordHandler.GetRecord)
		apiRoutes.PUT("/tables/:table_name/records/:record_id", recordHandler.UpdateRecord)
		apiRoutes.DELETE("/tables/:table_name/records/:record_id", recordHandler.DeleteRecord)

		apiRoutes.GET("/accounts", accountHandler.ListAccounts)
		apiRoutes.POST("/accounts", accountHandler.CreateAccount)
		apiRoutes.PUT("/accounts/:username/status", accountHandler.SetStatus)
		apiRoutes.GET("/accounts/:username/permissions", permissionHandler.GetPermissions)
		apiRoutes.PUT("/accounts/:username/permissions/general", permissionHandler.SetGeneralPermission)
		apiRoutes.PUT("/accounts/:username/permissions/tables/:table_name", permissionHandler.SetTablePermissions)
	}

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	c.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSAllowedOrigins
	}
	return c
}
