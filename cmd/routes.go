package cmd

import (
	"checkin-system/internal/handlers"
	"checkin-system/security"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
)

type routes struct {
	checkin *handlers.CheckinHandler
	queue   *handlers.QueueHandler
	users   *handlers.UserHandler
	imports *handlers.ImportHandler
	uploads *handlers.UploadHandler
	auth    *handlers.AuthHandler
	admin   *handlers.AdminHandler

	limiter      *security.RateLimiter
	requireAdmin *hook.Handler[*core.RequestEvent]
	checkinLimit int
	aiLimit      int
}

func (r routes) register(se *core.ServeEvent) {
	api := se.Router.Group("/api")

	// Check-in endpoints
	checkin := api.Group("/checkin")
	checkin.POST("/qr", r.checkin.QR).Bind(r.limiter.Limit("checkin", r.checkinLimit))
	checkin.POST("/manual", r.checkin.Manual).Bind(r.limiter.Limit("checkin", r.checkinLimit), r.requireAdmin)
	checkin.POST("/ai", r.checkin.AI).Bind(r.limiter.Limit("ai", r.aiLimit))
	checkin.GET("/history", r.checkin.History)

	// Queue endpoints
	queue := api.Group("/queue")
	queue.GET("", r.queue.List)
	queue.GET("/next", r.queue.Next)
	queue.GET("/stats", r.queue.Stats)
	queue.POST("/{queueId}/playing", r.queue.MarkPlaying).Bind(r.requireAdmin)
	queue.POST("/{queueId}/done", r.queue.MarkDone).Bind(r.requireAdmin)
	queue.POST("/{queueId}/error", r.queue.MarkError).Bind(r.requireAdmin)

	// User endpoints
	users := api.Group("/users")
	users.GET("", r.users.List)
	users.GET("/vips", r.users.VIPs)
	users.GET("/list", r.users.Summaries)
	users.GET("/stats", r.users.Stats)
	users.GET("/{userId}", r.users.Get)
	users.GET("/{userId}/qrcode", r.users.QRCode)
	users.POST("", r.users.Create).Bind(r.requireAdmin)

	// Import and upload endpoints
	imports := api.Group("/import").Bind(r.requireAdmin)
	imports.POST("/csv", r.imports.CSV)
	imports.POST("/json", r.imports.JSON)

	uploads := api.Group("/upload").Bind(r.requireAdmin)
	uploads.POST("/video", r.uploads.Video)
	uploads.POST("/image", r.uploads.Image)

	// Auth endpoints
	api.POST("/auth/login", r.auth.Login)
	api.GET("/auth/verify", r.auth.Verify).Bind(r.requireAdmin)

	// Admin endpoints
	admin := api.Group("/admin").Bind(r.requireAdmin)
	admin.POST("/queue/clear", r.admin.ClearQueue)
	admin.POST("/reset-checkins", r.admin.ResetCheckins)
	admin.POST("/reset-data", r.admin.ResetData)
	admin.GET("/stats", r.admin.Stats)
	admin.GET("/logs", r.admin.Logs)
	admin.GET("/health", r.admin.Health)

	// Health check
	se.Router.GET("/health", r.admin.Liveness)
}
