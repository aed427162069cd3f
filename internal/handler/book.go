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

// BookHandler 负责书目相关接口
type BookHandler struct {
	DB          *gorm.DB
	PageSize    int
	MaxPageSize int
}

func NewBookHandler(db *gorm.DB, pageSize, maxPageSize int) *BookHandler {
	if pageSize <= 0 {
		pageSize = 12
	}
	if maxPageSize <= 0 {
		maxPageSize = 50
	}
	return &BookHandler{
		DB:          db,
		PageSize:    pageSize,
		MaxPageSize: maxPageSize,
	}
}

// ---------- 请求/响应结构 ----------

type bookReq struct {
	Title       string `json:"title" binding:"required,max=255"`
	Author      string `json:"author" binding:"required,max=128"`
	Genre       string `json:"genre" binding:"max=64"`
	Description string `json:"description" binding:"max=5000"`
	CoverURL    string `json:"cover_url" binding:"max=512"`
}

type bookResp struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre"`
	Description string    `json:"description"`
	CoverURL    string    `json:"cover_url"`
	AvgRating   float64   `json:"avg_rating"`
	ReviewCount int64     `json:"review_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ratingAgg 单本书的评分聚合
type ratingAgg struct {
	BookID uint
	Avg    float64
	Count  int64
}

// loadRatings 批量查出若干本书的平均分和评论数
func (h *BookHandler) loadRatings(bookIDs []uint) (map[uint]ratingAgg, error) {
	result := make(map[uint]ratingAgg, len(bookIDs))
	if len(bookIDs) == 0 {
		return result, nil
	}

	var rows []ratingAgg
	if err := h.DB.Model(&models.Review{}).
		Select("book_id, AVG(rating) AS avg, COUNT(*) AS count").
		Where("book_id IN ?", bookIDs).
		Group("book_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.BookID] = r
	}
	return result, nil
}

func toBookResp(b *models.Book, agg ratingAgg) bookResp {
	return bookResp{
		ID:          b.ID,
		UserID:      b.UserID,
		Title:       b.Title,
		Author:      b.Author,
		Genre:       b.Genre,
		Description: b.Description,
		CoverURL:    b.CoverURL,
		AvgRating:   agg.Avg,
		ReviewCount: agg.Count,
		CreatedAt:   b.CreatedAt,
	}
}

// ---------- 创建 ----------

func (h *BookHandler) CreateBook(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var req bookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if req.Title == "" || req.Author == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "书名和作者不能为空")
		return
	}

	book := models.Book{
		UserID:      user.ID,
		Title:       req.Title,
		Author:      req.Author,
		Genre:       strings.TrimSpace(req.Genre),
		Description: req.Description,
		CoverURL:    strings.TrimSpace(req.CoverURL),
	}
	if err := h.DB.Create(&book).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败，请重试")
		return
	}

	util.Success(c, util.Response{
		"book": toBookResp(&book, ratingAgg{}),
	})
}

// ---------- 列表（公开，分页 + 搜索 + 分类筛选） ----------

func (h *BookHandler) ListBooks(c *gin.Context) {
	// 分页参数
	pageStr := c.DefaultQuery("page", "1")
	limitStr := c.DefaultQuery("limit", strconv.Itoa(h.PageSize))
	page, _ := strconv.Atoi(pageStr)
	if page <= 0 {
		page = 1
	}
	limit, _ := strconv.Atoi(limitStr)
	if limit <= 0 || limit > h.MaxPageSize {
		limit = h.PageSize
	}
	offset := (page - 1) * limit

	// 搜索：书名或作者模糊匹配
	search := strings.TrimSpace(c.Query("search"))
	// 分类筛选
	genre := strings.TrimSpace(c.Query("genre"))

	base := h.DB.Model(&models.Book{})
	if search != "" {
		like := "%" + search + "%"
		base = base.Where("title LIKE ? OR author LIKE ?", like, like)
	}
	if genre != "" {
		base = base.Where("genre = ?", genre)
	}

	// 总数
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	// 分页列表
	var books []models.Book
	if err := base.Session(&gorm.Session{}).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&books).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	ids := make([]uint, 0, len(books))
	for i := range books {
		ids = append(ids, books[i].ID)
	}
	aggs, err := h.loadRatings(ids)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	items := make([]bookResp, 0, len(books))
	for i := range books {
		items = append(items, toBookResp(&books[i], aggs[books[i].ID]))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	hasMore := int64(page*limit) < total

	util.Success(c, util.Response{
		"items":        items,
		"total_books":  total,
		"current_page": page,
		"total_pages":  totalPages,
		"limit":        limit,
		"has_more":     hasMore,
	})
}

// ---------- 详情（公开） ----------

func (h *BookHandler) GetBook(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var book models.Book
	if err := h.DB.First(&book, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "书目不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		}
		return
	}

	aggs, err := h.loadRatings([]uint{book.ID})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	util.Success(c, util.Response{
		"book": toBookResp(&book, aggs[book.ID]),
	})
}

// findOwnedBook 查出目标书目并校验归属：
// 记录不存在返回 404，存在但不是自己的返回 403。
func (h *BookHandler) findOwnedBook(c *gin.Context, userID uint) (*models.Book, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return nil, false
	}

	var book models.Book
	if err := h.DB.First(&book, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "书目不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		}
		return nil, false
	}

	if book.UserID != userID {
		util.Error(c, http.StatusForbidden, util.CodeForbidden, "无权操作他人创建的书目")
		return nil, false
	}
	return &book, true
}

// ---------- 修改（仅所有者） ----------

func (h *BookHandler) UpdateBook(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var req bookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if req.Title == "" || req.Author == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "书名和作者不能为空")
		return
	}

	book, ok := h.findOwnedBook(c, user.ID)
	if !ok {
		return
	}

	book.Title = req.Title
	book.Author = req.Author
	book.Genre = strings.TrimSpace(req.Genre)
	book.Description = req.Description
	book.CoverURL = strings.TrimSpace(req.CoverURL)

	if err := h.DB.Save(book).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败，请重试")
		return
	}

	aggs, err := h.loadRatings([]uint{book.ID})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	util.Success(c, util.Response{
		"book": toBookResp(book, aggs[book.ID]),
	})
}

// ---------- 删除（仅所有者，级联删除书评） ----------

func (h *BookHandler) DeleteBook(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	book, ok := h.findOwnedBook(c, user.ID)
	if !ok {
		return
	}

	// 同一个事务里先删书评再删书，保证不留孤儿记录
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", book.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		return tx.Delete(book).Error
	})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "删除失败")
		return
	}

	util.Success(c, util.Response{
		"message": "删除成功",
	})
}
