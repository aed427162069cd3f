package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"book-review-hub/internal/database"
	"book-review-hub/internal/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret    = "test-jwt-secret"
	testTransportKey = "test-transport-key"
)

// newTestDB 为每个测试创建独立的内存 SQLite。
// 用共享缓存 + 单连接，避免连接池里出现多个互不相通的内存库。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	return db
}

// newTestRouter 按 router.SetupRouter 的接线方式搭一个测试用引擎
func newTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")

	authHandler := NewAuthHandler(db, testJWTSecret, 1, testTransportKey, bcrypt.MinCost, 10, true)
	bookHandler := NewBookHandler(db, 12, 50)
	reviewHandler := NewReviewHandler(db)

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.PUT("/auth/reset-password/:token", authHandler.ResetPassword)

	api.GET("/books", bookHandler.ListBooks)
	api.GET("/books/:id", bookHandler.GetBook)
	api.GET("/reviews/book/:bookId", reviewHandler.ListByBook)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(testJWTSecret, db))

	protected.PUT("/auth/change-password", authHandler.ChangePassword)
	protected.GET("/me", GetMe)
	protected.POST("/profile", UpdateProfile(db))

	protected.POST("/books", bookHandler.CreateBook)
	protected.PUT("/books/:id", bookHandler.UpdateBook)
	protected.DELETE("/books/:id", bookHandler.DeleteBook)

	protected.POST("/reviews", reviewHandler.CreateReview)
	protected.PUT("/reviews/:id", reviewHandler.UpdateReview)
	protected.DELETE("/reviews/:id", reviewHandler.DeleteReview)

	return r
}

// envelope 统一响应结构
type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

// doJSON 发送一个 JSON 请求，token 非空时加 Bearer 头
func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("编码请求体失败: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("解析响应失败: %v\n%s", err, w.Body.String())
		}
	}
	return w, env
}

// registerUser 注册一个用户并返回 token 和用户 ID
func registerUser(t *testing.T, r *gin.Engine, name, email, password string) (string, uint) {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":             name,
		"email":            email,
		"password":         password,
		"confirm_password": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("注册失败: status=%d body=%s", w.Code, w.Body.String())
	}

	token, _ := env.Data["token"].(string)
	if token == "" {
		t.Fatal("注册响应缺少 token")
	}
	user, _ := env.Data["user"].(map[string]interface{})
	id, _ := user["id"].(float64)
	return token, uint(id)
}

// createBook 创建一本书并返回其 ID
func createBook(t *testing.T, r *gin.Engine, token, title string) uint {
	t.Helper()

	w, env := doJSON(t, r, http.MethodPost, "/api/books", token, gin.H{
		"title":  title,
		"author": "测试作者",
		"genre":  "小说",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("创建书目失败: status=%d body=%s", w.Code, w.Body.String())
	}
	book, _ := env.Data["book"].(map[string]interface{})
	id, _ := book["id"].(float64)
	return uint(id)
}
