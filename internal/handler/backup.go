package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"book-review-hub/internal/middleware"
	"book-review-hub/internal/models"
	"book-review-hub/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BackupHandler 负责备份相关接口
type BackupHandler struct {
	DB         *gorm.DB
	EncryptKey string
	BackupDir  string
}

// NewBackupHandler 构造函数
func NewBackupHandler(db *gorm.DB, encryptKey, backupDir string) *BackupHandler {
	return &BackupHandler{
		DB:         db,
		EncryptKey: encryptKey,
		BackupDir:  backupDir,
	}
}

// backupData 是写入备份文件的内容结构：当前用户创建的书目和发表的书评
type backupData struct {
	UserID  uint            `json:"user_id"`
	Created time.Time       `json:"created"`
	Books   []models.Book   `json:"books"`
	Reviews []models.Review `json:"reviews"`
}

// CreateBackup 生成当前用户的加密备份文件
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var books []models.Book
	if err := h.DB.Where("user_id = ?", user.ID).
		Order("id ASC").
		Find(&books).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询数据失败")
		return
	}

	var reviews []models.Review
	if err := h.DB.Where("user_id = ?", user.ID).
		Order("id ASC").
		Find(&reviews).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询数据失败")
		return
	}

	data := backupData{
		UserID:  user.ID,
		Created: time.Now(),
		Books:   books,
		Reviews: reviews,
	}
	raw, err := json.MarshalIndent(&data, "", "  ")
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "序列化失败")
		return
	}

	enc, err := util.EncryptAES(h.EncryptKey, raw)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "加密失败")
		return
	}

	if err := os.MkdirAll(h.BackupDir, 0o755); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建备份目录失败")
		return
	}

	// 使用 uuid + 用户 ID 作为文件名
	idStr := uuid.New().String()
	fileName := fmt.Sprintf("backup-%d-%s.bin", user.ID, idStr)
	filePath := filepath.Join(h.BackupDir, fileName)

	if err := os.WriteFile(filePath, enc, 0o600); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "写入备份文件失败")
		return
	}

	info, _ := os.Stat(filePath)

	backup := models.Backup{
		UserID:   user.ID,
		FileName: fileName,
		FilePath: filePath,
		Size:     info.Size(),
	}
	if err := h.DB.Create(&backup).Error; err != nil {
		_ = os.Remove(filePath)
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存备份记录失败")
		return
	}

	util.Success(c, util.Response{
		"backup": gin.H{
			"id":         backup.ID,
			"file_name":  backup.FileName,
			"size":       backup.Size,
			"created_at": backup.CreatedAt,
		},
	})
}

// ListBackups 列出当前用户已有的备份
func (h *BackupHandler) ListBackups(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var list []models.Backup
	if err := h.DB.
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询备份失败")
		return
	}

	items := make([]gin.H, 0, len(list))
	for i := range list {
		b := &list[i]
		items = append(items, gin.H{
			"id":         b.ID,
			"file_name":  b.FileName,
			"size":       b.Size,
			"created_at": b.CreatedAt,
		})
	}

	util.Success(c, util.Response{
		"items": items,
	})
}

// findOwnedBackup 查出属于当前用户的备份记录
func (h *BackupHandler) findOwnedBackup(c *gin.Context, userID uint) (*models.Backup, bool) {
	id := c.Param("id")

	var backup models.Backup
	if err := h.DB.
		Where("id = ? AND user_id = ?", id, userID).
		First(&backup).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "备份不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询备份失败")
		}
		return nil, false
	}
	return &backup, true
}

// DownloadBackup 下载指定备份文件
func (h *BackupHandler) DownloadBackup(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	backup, ok := h.findOwnedBackup(c, user.ID)
	if !ok {
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", backup.FileName))
	c.File(backup.FilePath)
}

// DeleteBackup 删除备份记录及对应文件
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	backup, ok := h.findOwnedBackup(c, user.ID)
	if !ok {
		return
	}

	// 先删文件，再删记录
	_ = os.Remove(backup.FilePath)
	if err := h.DB.Delete(backup).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "删除备份记录失败")
		return
	}

	util.Success(c, util.Response{
		"message": "删除成功",
	})
}

// RestoreBackup 从指定备份文件恢复当前用户的书目和书评
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	backup, ok := h.findOwnedBackup(c, user.ID)
	if !ok {
		return
	}

	// 读文件并解密
	encData, err := os.ReadFile(backup.FilePath)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "读取备份文件失败")
		return
	}

	raw, err := util.DecryptAES(h.EncryptKey, encData)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "解密备份文件失败")
		return
	}

	var data backupData
	if err := json.Unmarshal(raw, &data); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "解析备份数据失败")
		return
	}

	// 简单校验：备份中记录的 user_id 必须等于当前用户
	if data.UserID != 0 && data.UserID != user.ID {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "备份文件不属于当前用户")
		return
	}

	// 用事务：先删当前用户的书目（及其书评）和自己发的书评，再导入备份内容
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var ownBookIDs []uint
		if err := tx.Model(&models.Book{}).
			Where("user_id = ?", user.ID).
			Pluck("id", &ownBookIDs).Error; err != nil {
			return err
		}
		if len(ownBookIDs) > 0 {
			if err := tx.Where("book_id IN ?", ownBookIDs).Delete(&models.Review{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Book{}).Error; err != nil {
			return err
		}

		// 恢复书目，记录新旧 ID 映射，书评按映射挂回去
		idMap := make(map[uint]uint, len(data.Books))
		for i := range data.Books {
			b := data.Books[i]
			oldID := b.ID
			b.ID = 0           // 让数据库重新分配主键
			b.UserID = user.ID // 强制归属当前用户
			if err := tx.Create(&b).Error; err != nil {
				return err
			}
			idMap[oldID] = b.ID
		}

		for i := range data.Reviews {
			r := data.Reviews[i]
			if newID, ok := idMap[r.BookID]; ok {
				r.BookID = newID
			} else {
				// 书评对应的书不在备份里（别人的书），确认这本书还存在才恢复
				var count int64
				if err := tx.Model(&models.Book{}).
					Where("id = ?", r.BookID).
					Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					continue
				}
			}
			r.ID = 0
			r.UserID = user.ID
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "恢复失败")
		return
	}

	util.Success(c, util.Response{
		"message":       "恢复成功",
		"books_count":   len(data.Books),
		"reviews_count": len(data.Reviews),
	})
}
