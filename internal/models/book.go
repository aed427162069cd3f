package models

import "time"

// Book 表示一本由用户创建的书目
type Book struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"index;not null"` // 创建者，即记录所有者
	Title       string `gorm:"size:255;not null"`
	Author      string `gorm:"size:128;not null"`
	Genre       string `gorm:"size:64;index"`
	Description string `gorm:"type:text"`
	CoverURL    string `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
