package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"book-review-hub/internal/middleware"
	"book-review-hub/internal/models"
	"book-review-hub/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ReviewHandler 负责书评相关接口
type ReviewHandler struct {
	DB *gorm.DB
}

func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{DB: db}
}

// ---------- 请求/响应结构 ----------

type createReviewReq struct {
	BookID  uint   `json:"book_id" binding:"required"`
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment" binding:"max=2000"`
}

type updateReviewReq struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment" binding:"max=2000"`
}

type reviewResp struct {
	ID        uint      `json:"id"`
	BookID    uint      `json:"book_id"`
	UserID    uint      `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func toReviewResp(r *models.Review, userName string) reviewResp {
	return reviewResp{
		ID:        r.ID,
		BookID:    r.BookID,
		UserID:    r.UserID,
		UserName:  userName,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

// ---------- 发表书评 ----------

// CreateReview 创建书评。"一人一书一评"靠 (book_id, user_id) 唯一索引保证，
// 并发下第二条插入会被数据库拒绝，这里把该错误映射为冲突。
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var req createReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	if err := util.ValidateRating(req.Rating); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "评分必须为 1-5 星")
		return
	}

	// 书目必须存在
	var book models.Book
	if err := h.DB.First(&book, req.BookID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "书目不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		}
		return
	}

	review := models.Review{
		BookID:  req.BookID,
		UserID:  user.ID,
		Rating:  req.Rating,
		Comment: strings.TrimSpace(req.Comment),
	}
	if err := h.DB.Create(&review).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "你已经评论过这本书了")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败，请重试")
		return
	}

	util.Success(c, util.Response{
		"review": toReviewResp(&review, user.Name),
	})
}

// ---------- 某本书的书评列表（公开） ----------

func (h *ReviewHandler) ListByBook(c *gin.Context) {
	bookID, err := strconv.Atoi(c.Param("bookId"))
	if err != nil || bookID <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var reviews []models.Review
	if err := h.DB.Where("book_id = ?", bookID).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	// 批量取出评论者昵称
	userIDs := make([]uint, 0, len(reviews))
	for i := range reviews {
		userIDs = append(userIDs, reviews[i].UserID)
	}
	names := make(map[uint]string, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := h.DB.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
			return
		}
		for i := range users {
			names[users[i].ID] = users[i].Name
		}
	}

	items := make([]reviewResp, 0, len(reviews))
	for i := range reviews {
		items = append(items, toReviewResp(&reviews[i], names[reviews[i].UserID]))
	}

	util.Success(c, util.Response{
		"items": items,
		"total": len(items),
	})
}

// findOwnedReview 查出目标书评并校验归属：
// 不存在返回 404，不是自己的返回 403。
func (h *ReviewHandler) findOwnedReview(c *gin.Context, userID uint) (*models.Review, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return nil, false
	}

	var review models.Review
	if err := h.DB.First(&review, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "书评不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		}
		return nil, false
	}

	if review.UserID != userID {
		util.Error(c, http.StatusForbidden, util.CodeForbidden, "无权操作他人的书评")
		return nil, false
	}
	return &review, true
}

// ---------- 修改书评（仅作者） ----------

func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var req updateReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}
	if err := util.ValidateRating(req.Rating); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "评分必须为 1-5 星")
		return
	}

	review, ok := h.findOwnedReview(c, user.ID)
	if !ok {
		return
	}

	review.Rating = req.Rating
	review.Comment = strings.TrimSpace(req.Comment)

	if err := h.DB.Save(review).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败，请重试")
		return
	}

	util.Success(c, util.Response{
		"review": toReviewResp(review, user.Name),
	})
}

// ---------- 删除书评（仅作者） ----------

func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	review, ok := h.findOwnedReview(c, user.ID)
	if !ok {
		return
	}

	if err := h.DB.Delete(review).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "删除失败")
		return
	}

	util.Success(c, util.Response{
		"message": "删除成功",
	})
}
