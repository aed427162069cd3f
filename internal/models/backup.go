package models

import "time"

// Backup 记录用户生成的加密备份文件
type Backup struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	FileName  string `gorm:"size:255;not null"`
	FilePath  string `gorm:"size:512;not null"`
	Size      int64
	CreatedAt time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
