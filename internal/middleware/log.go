package middleware

import (
	"book-review-hub/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditMiddleware 记录登录用户的操作到审计日志。
func AuditMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 执行请求
		c.Next()

		// 只记录登录用户的操作
		user := CurrentUser(c)
		if user == nil {
			return
		}

		log := models.AuditLog{
			UserID:    &user.ID,
			Path:      c.Request.URL.Path,
			Method:    c.Request.Method,
			Status:    c.Writer.Status(),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}

		_ = db.Create(&log).Error
	}
}
