package router

import (
	"net/http"

	"book-review-hub/internal/config"
	"book-review-hub/internal/handler"
	"book-review-hub/internal/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter configures Gin engine and API routes.
func SetupRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ====== API ======
	api := r.Group("/api")

	jwtSecret := cfg.JWT.Secret
	devMode := cfg.Server.Mode != "release"

	authHandler := handler.NewAuthHandler(
		db,
		jwtSecret,
		cfg.JWT.ExpireHours,
		cfg.Security.TransportKey,
		cfg.Security.BcryptCost,
		cfg.Security.ResetTokenExpireMinutes,
		devMode,
	)
	bookHandler := handler.NewBookHandler(db, cfg.App.PageSize, cfg.App.MaxPageSize)
	reviewHandler := handler.NewReviewHandler(db)

	// 公开接口（不需要鉴权）
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.PUT("/auth/reset-password/:token", authHandler.ResetPassword)

	api.GET("/books", bookHandler.ListBooks)
	api.GET("/books/:id", bookHandler.GetBook)
	api.GET("/reviews/book/:bookId", reviewHandler.ListByBook)

	// 需要登录才能访问的接口
	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(jwtSecret, db),
		middleware.AuditMiddleware(db),
	)

	protected.PUT("/auth/change-password", authHandler.ChangePassword)

	protected.GET("/me", handler.GetMe)
	protected.POST("/profile", handler.UpdateProfile(db))

	protected.POST("/books", bookHandler.CreateBook)
	protected.PUT("/books/:id", bookHandler.UpdateBook)
	protected.DELETE("/books/:id", bookHandler.DeleteBook)

	protected.POST("/reviews", reviewHandler.CreateReview)
	protected.PUT("/reviews/:id", reviewHandler.UpdateReview)
	protected.DELETE("/reviews/:id", reviewHandler.DeleteReview)

	exportHandler := handler.NewExportHandler(db)
	protected.GET("/export/csv", exportHandler.ExportCSV)
	protected.GET("/export/xlsx", exportHandler.ExportXLSX)

	backupHandler := handler.NewBackupHandler(db, cfg.Security.EncryptionKey, cfg.Backup.Dir)
	protected.POST("/backups", backupHandler.CreateBackup)
	protected.GET("/backups", backupHandler.ListBackups)
	protected.GET("/backups/:id/download", backupHandler.DownloadBackup)
	protected.POST("/backups/:id/restore", backupHandler.RestoreBackup)
	protected.DELETE("/backups/:id", backupHandler.DeleteBackup)

	logHandler := handler.NewLogHandler(db)
	protected.GET("/logs", logHandler.ListLogs)

	return r
}
