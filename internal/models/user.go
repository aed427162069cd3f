package models

import "time"

// User represents application user.
// Email 全部转小写后存储，唯一索引因此等价于大小写不敏感唯一。
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:50;not null"`
	Email        string `gorm:"size:128;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// 密码找回：只保存 token 的 SHA-256 哈希和过期时间，明文不落库。
	// 两个字段要么同时存在，要么同时为空。
	ResetTokenHash   string     `gorm:"size:64;index"`
	ResetTokenExpiry *time.Time

	LastLoginAt *time.Time            // 最近登录时间
	LastLoginIP string     `gorm:"size:64"` // 最近登录 IP
}
