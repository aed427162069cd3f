package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"book-review-hub/internal/middleware"
	"book-review-hub/internal/models"
	"book-review-hub/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportHandler 负责把当前用户创建的书目导出为 CSV/XLSX
type ExportHandler struct {
	DB *gorm.DB
}

func NewExportHandler(db *gorm.DB) *ExportHandler {
	return &ExportHandler{DB: db}
}

// exportRow 导出用的一行数据
type exportRow struct {
	Title       string
	Author      string
	Genre       string
	AvgRating   string
	ReviewCount int64
	CreatedAt   string
}

func (h *ExportHandler) loadRows(userID uint) ([]exportRow, error) {
	var books []models.Book
	if err := h.DB.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&books).Error; err != nil {
		return nil, err
	}

	// 逐本书的评分聚合
	type agg struct {
		BookID uint
		Avg    float64
		Count  int64
	}
	ids := make([]uint, 0, len(books))
	for i := range books {
		ids = append(ids, books[i].ID)
	}
	aggMap := make(map[uint]agg, len(ids))
	if len(ids) > 0 {
		var rows []agg
		if err := h.DB.Model(&models.Review{}).
			Select("book_id, AVG(rating) AS avg, COUNT(*) AS count").
			Where("book_id IN ?", ids).
			Group("book_id").
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			aggMap[r.BookID] = r
		}
	}

	out := make([]exportRow, 0, len(books))
	for i := range books {
		b := &books[i]
		a := aggMap[b.ID]
		out = append(out, exportRow{
			Title:       b.Title,
			Author:      b.Author,
			Genre:       b.Genre,
			AvgRating:   strconv.FormatFloat(a.Avg, 'f', 1, 64),
			ReviewCount: a.Count,
			CreatedAt:   b.CreatedAt.Format("2006-01-02"),
		})
	}
	return out, nil
}

var exportHeaders = []string{"书名", "作者", "分类", "平均评分", "评论数", "创建日期"}

// ExportCSV 导出书目为 CSV
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	rows, err := h.loadRows(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	// 设置响应头
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"books_%s.csv\"",
		time.Now().Format("20060102")))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// UTF-8 BOM（让 Excel 正确识别中文）
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer.Write(exportHeaders)
	for _, r := range rows {
		writer.Write([]string{
			r.Title,
			r.Author,
			r.Genre,
			r.AvgRating,
			strconv.FormatInt(r.ReviewCount, 10),
			r.CreatedAt,
		})
	}
}

// ExportXLSX 导出书目为 XLSX
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	rows, err := h.loadRows(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	f := excelize.NewFile()
	sheetName := "我的书目"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建工作表失败")
		return
	}
	f.SetActiveSheet(index)

	for i, head := range exportHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, head)
	}

	for idx, r := range rows {
		row := idx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.Title)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.Author)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.Genre)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.AvgRating)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), r.ReviewCount)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), r.CreatedAt)
	}

	// 设置列宽
	f.SetColWidth(sheetName, "A", "A", 30)
	f.SetColWidth(sheetName, "B", "B", 18)
	f.SetColWidth(sheetName, "C", "C", 12)
	f.SetColWidth(sheetName, "D", "E", 10)
	f.SetColWidth(sheetName, "F", "F", 12)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"books_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "导出失败")
	}
}
