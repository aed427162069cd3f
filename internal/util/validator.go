package util

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// NormalizeEmail 去空格并转小写，统一存储和比较口径。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	if len(email) > 128 {
		return fmt.Errorf("email too long, max 128 characters")
	}
	if !emailRe.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateName 验证显示名（不能为空且不超过 50 字符）
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is empty")
	}
	if len([]rune(name)) > 50 {
		return fmt.Errorf("name too long, max 50 characters")
	}
	return nil
}

// ValidatePassword 验证密码策略（6-64 位）
func ValidatePassword(pwd string) error {
	if len(pwd) < 6 {
		return fmt.Errorf("password too short, min 6 characters")
	}
	if len(pwd) > 64 {
		return fmt.Errorf("password too long, max 64 characters")
	}
	return nil
}

// ValidateRating 验证评分（1-5 星）
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}
	return nil
}
