package handler

import (
	"net/http"
	"strings"
	"time"

	"book-review-hub/internal/middleware"
	"book-review-hub/internal/models"
	"book-review-hub/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler 负责注册/登录/密码找回相关接口
type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     string
	TokenTTL      time.Duration
	TransportKey  string
	BcryptCost    int
	ResetTokenTTL time.Duration
	// DevMode 为 true 时 forgot-password 会在响应里带上明文 token，
	// 方便没接邮件服务的环境调试。线上必须关掉。
	DevMode bool
}

// NewAuthHandler 构造函数
func NewAuthHandler(db *gorm.DB, jwtSecret string, ttlHours int, transportKey string, bcryptCost int, resetMinutes int, devMode bool) *AuthHandler {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	if resetMinutes <= 0 {
		resetMinutes = 10
	}
	return &AuthHandler{
		DB:            db,
		JWTSecret:     jwtSecret,
		TokenTTL:      time.Duration(ttlHours) * time.Hour,
		TransportKey:  transportKey,
		BcryptCost:    bcryptCost,
		ResetTokenTTL: time.Duration(resetMinutes) * time.Minute,
		DevMode:       devMode,
	}
}

func (h *AuthHandler) userPayload(u *models.User) gin.H {
	return gin.H{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
	}
}

// ---------- 注册 ----------

type registerReq struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = util.NormalizeEmail(req.Email)

	if err := util.ValidateName(req.Name); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "昵称不能为空且不超过 50 字符")
		return
	}
	if err := util.ValidateEmail(req.Email); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "邮箱格式不正确")
		return
	}

	// 前端对密码做了对称加密，这里先还原
	password := util.DecodePassword(h.TransportKey, req.Password)
	confirm := util.DecodePassword(h.TransportKey, req.ConfirmPassword)

	if err := util.ValidatePassword(password); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "密码需 6-64 位")
		return
	}
	if password != confirm {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "两次输入的密码不一致")
		return
	}

	// 邮箱唯一（已统一小写，唯一索引兜底并发场景）
	var count int64
	if err := h.DB.Model(&models.User{}).
		Where("email = ?", req.Email).
		Count(&count).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		return
	}
	if count > 0 {
		util.Error(c, http.StatusBadRequest, util.CodeConflict, "该邮箱已注册")
		return
	}

	hash, err := util.HashPassword(password, h.BcryptCost)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		// 并发注册同一邮箱时会撞唯一索引
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "该邮箱已注册")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建用户失败")
		return
	}

	token, err := util.GenerateToken(h.JWTSecret, user.ID, h.TokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成 token 失败")
		return
	}

	util.Success(c, util.Response{
		"token": token,
		"user":  h.userPayload(&user),
	})
}

// ---------- 登录 ----------

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Email = util.NormalizeEmail(req.Email)
	password := util.DecodePassword(h.TransportKey, req.Password)

	// 用户不存在和密码错误必须返回同一个提示，避免撞库探测邮箱
	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "邮箱或密码错误")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		}
		return
	}

	if !util.CheckPassword(password, user.PasswordHash) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "邮箱或密码错误")
		return
	}

	// 登录成功：记录登录 IP 和时间
	now := time.Now()
	user.LastLoginAt = &now
	user.LastLoginIP = c.ClientIP()
	_ = h.DB.Save(&user).Error

	token, err := util.GenerateToken(h.JWTSecret, user.ID, h.TokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成 token 失败")
		return
	}

	util.Success(c, util.Response{
		"token": token,
		"user":  h.userPayload(&user),
	})
}

// ---------- 修改密码（需登录） ----------

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	current := util.DecodePassword(h.TransportKey, req.CurrentPassword)
	newPwd := util.DecodePassword(h.TransportKey, req.NewPassword)

	if !util.CheckPassword(current, user.PasswordHash) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "当前密码错误")
		return
	}
	if err := util.ValidatePassword(newPwd); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "新密码需 6-64 位")
		return
	}
	if newPwd == current {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "新密码不能与当前密码相同")
		return
	}

	hash, err := util.HashPassword(newPwd, h.BcryptCost)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	if err := h.DB.Model(user).Update("password_hash", hash).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "更新密码失败")
		return
	}

	// 已签发的 token 会继续有效到自然过期，这是当前已知的取舍
	util.Success(c, util.Response{
		"message": "密码修改成功",
	})
}

// ---------- 忘记密码 ----------

type forgotPasswordReq struct {
	Email string `json:"email" binding:"required"`
}

// ForgotPassword 无论邮箱是否存在都返回同样的提示，防止探测。
// 重复请求会覆盖旧 token（last-write-wins），旧 token 随之作废。
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Email = util.NormalizeEmail(req.Email)
	genericMsg := "如果该邮箱已注册，我们会发送重置链接"

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		// 邮箱不存在也返回成功提示
		util.Success(c, util.Response{"message": genericMsg})
		return
	}

	plain, hash, expiry, err := util.GenerateResetToken(h.ResetTokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成重置 token 失败")
		return
	}

	if err := h.DB.Model(&user).Updates(map[string]interface{}{
		"reset_token_hash":   hash,
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存重置 token 失败")
		return
	}

	// TODO: 接入邮件服务后把 plain 发到用户邮箱
	data := util.Response{"message": genericMsg}
	if h.DevMode {
		data["reset_token"] = plain
	}
	util.Success(c, data)
}

// ---------- 重置密码 ----------

type resetPasswordReq struct {
	NewPassword string `json:"new_password" binding:"required"`
}

// ResetPassword 通过 URL 里的一次性 token 重置密码。
// token 不存在和已过期返回同一个错误，成功后立即清掉 token 字段（单次使用）。
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	tokenPlain := c.Param("token")
	if tokenPlain == "" {
		util.Error(c, http.StatusBadRequest, util.CodeConflict, "重置链接无效或已过期")
		return
	}

	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	newPwd := util.DecodePassword(h.TransportKey, req.NewPassword)
	if err := util.ValidatePassword(newPwd); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "密码需 6-64 位")
		return
	}

	hash := util.HashResetToken(tokenPlain)

	var user models.User
	if err := h.DB.Where("reset_token_hash = ?", hash).First(&user).Error; err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeConflict, "重置链接无效或已过期")
		return
	}
	if user.ResetTokenExpiry == nil || time.Now().After(*user.ResetTokenExpiry) {
		util.Error(c, http.StatusBadRequest, util.CodeConflict, "重置链接无效或已过期")
		return
	}

	newHash, err := util.HashPassword(newPwd, h.BcryptCost)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	// 更新密码并清空 token 字段，保证 token 只能用一次
	if err := h.DB.Model(&user).Updates(map[string]interface{}{
		"password_hash":      newHash,
		"reset_token_hash":   "",
		"reset_token_expiry": nil,
	}).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "重置密码失败")
		return
	}

	token, err := util.GenerateToken(h.JWTSecret, user.ID, h.TokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成 token 失败")
		return
	}

	util.Success(c, util.Response{
		"message": "密码重置成功",
		"token":   token,
		"user":    h.userPayload(&user),
	})
}
