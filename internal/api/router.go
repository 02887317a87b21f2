// Package api builds the HTTP surface over the job, printer and
// wallet services.
package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printsmart/printd/internal/api/handlers"
	"github.com/printsmart/printd/internal/api/middleware"
	"github.com/printsmart/printd/internal/archive"
	"github.com/printsmart/printd/internal/core"
)

type Services struct {
	DB       *sql.DB
	Ledger   *core.Ledger
	Registry *core.Registry
	Jobs     *core.JobManager
	Monitor  *core.HealthMonitor
	Sweeper  *core.Sweeper
	Archiver *archive.Archiver
}

// NewRouter wires every handler under /api. Mutating admin routes sit
// behind the auth middleware; job submission and queries only need a
// valid user id.
func NewRouter(svc Services, auth *middleware.AuthMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	jobHandler := handlers.NewJobHandler(svc.DB, svc.Jobs)
	printerHandler := handlers.NewPrinterHandler(svc.DB, svc.Registry, svc.Monitor)
	walletHandler := handlers.NewWalletHandler(svc.DB, svc.Ledger)
	fileHandler := handlers.NewFileHandler(svc.DB)
	notificationHandler := handlers.NewNotificationHandler(svc.DB)
	webhookHandler := handlers.NewWebhookHandler(svc.DB)
	adminHandler := handlers.NewAdminHandler(svc.Sweeper, svc.Monitor, svc.Archiver)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/setup", auth.SetupHandler)
		authGroup.POST("/login", auth.LoginHandler)
		authGroup.POST("/logout", auth.LogoutHandler)
		authGroup.GET("/status", auth.StatusHandler)
		authGroup.POST("/change-password", auth.RequireAuth(), auth.ChangePasswordHandler)
	}

	jobs := api.Group("/jobs")
	{
		jobs.POST("", jobHandler.SubmitJob)
		jobs.GET("", jobHandler.ListJobs)
		jobs.GET("/queue", jobHandler.GetQueue)
		jobs.GET("/:id", jobHandler.GetJob)
		jobs.POST("/:id/cancel", jobHandler.CancelJob)
		jobs.POST("/:id/retry", jobHandler.RetryJob)
		jobs.POST("/:id/start", jobHandler.StartJob)
		jobs.POST("/:id/fail", jobHandler.FailJob)
		jobs.PATCH("/:id/progress", jobHandler.UpdateProgress)
	}

	printers := api.Group("/printers")
	{
		printers.GET("", printerHandler.ListPrinters)
		printers.GET("/:id", printerHandler.GetPrinter)
		printers.POST("/:id/check", printerHandler.CheckPrinter)
		printers.POST("", auth.RequireAuth(), printerHandler.CreatePrinter)
		printers.PUT("/:id", auth.RequireAuth(), printerHandler.UpdatePrinter)
		printers.PUT("/:id/status", auth.RequireAuth(), printerHandler.SetPrinterStatus)
		printers.DELETE("/:id", auth.RequireAuth(), printerHandler.DeactivatePrinter)
	}

	users := api.Group("/users")
	{
		users.POST("", auth.RequireAuth(), walletHandler.CreateUser)
		users.GET("/:id", walletHandler.GetUser)
		users.GET("/:id/balance", walletHandler.GetBalance)
		users.POST("/:id/topup", auth.RequireAuth(), walletHandler.TopUp)
		users.GET("/:id/ledger", walletHandler.ListLedgerEntries)
		users.GET("/:id/notifications", notificationHandler.ListNotifications)
		users.POST("/:id/notifications/:nid/read", notificationHandler.MarkRead)
	}

	files := api.Group("/files")
	{
		files.POST("", fileHandler.RegisterFile)
		files.GET("/:id", fileHandler.GetFile)
	}

	admin := api.Group("/admin", auth.RequireAuth())
	{
		admin.POST("/sweep", adminHandler.RunSweep)
		admin.POST("/health-check", adminHandler.RunHealthCheck)
		admin.POST("/archive", adminHandler.RunArchive)
		admin.GET("/archives", adminHandler.ListArchives)
		admin.POST("/webhooks", webhookHandler.CreateWebhook)
		admin.GET("/webhooks", webhookHandler.ListWebhooks)
		admin.DELETE("/webhooks/:id", webhookHandler.DeleteWebhook)
	}

	return r
}
