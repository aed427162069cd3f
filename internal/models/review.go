package models

import "time"

// Review 表示一条书评。
// (book_id, user_id) 上的唯一索引保证"一人一书一评"，
// 并发重复插入由数据库原子地拒绝，应用层不做 check-then-act。
type Review struct {
	ID        uint   `gorm:"primaryKey"`
	BookID    uint   `gorm:"not null;uniqueIndex:idx_review_book_user"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_review_book_user"`
	Rating    int    `gorm:"not null"` // 1-5 星
	Comment   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Book Book `gorm:"constraint:OnDelete:CASCADE"`
	User User `gorm:"constraint:OnDelete:CASCADE"`
}
