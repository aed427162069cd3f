package handler

import (
	"net/http"
	"strings"

	"book-review-hub/internal/middleware"
	"book-review-hub/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UpdateProfileReq 更新基本资料请求
type UpdateProfileReq struct {
	Name string `json:"name" binding:"required"`
}

// UpdateProfile 更新当前用户的昵称
func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
			return
		}

		var req UpdateProfileReq
		if err := c.ShouldBindJSON(&req); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if err := util.ValidateName(req.Name); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "昵称不能为空且不超过 50 字符")
			return
		}

		if err := db.Model(user).Update("name", req.Name).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "更新失败")
			return
		}

		user.Name = req.Name

		util.Success(c, util.Response{
			"user": gin.H{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
			},
		})
	}
}
