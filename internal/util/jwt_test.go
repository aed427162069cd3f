package util

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateToken(secret, 42, time.Hour)
	if err != nil {
		t.Fatalf("生成 token 失败: %v", err)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("解析 token 失败: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID 错误: 期望 42，实际 %d", claims.UserID)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Error("过期时间应在未来")
	}
}

func TestParseToken_Expired(t *testing.T) {
	secret := "test-secret"

	// ttl <= 0 会退回默认 24h，构造过期 token 要用正的一小段然后等它过期
	token, err := GenerateToken(secret, 1, time.Nanosecond)
	if err != nil {
		t.Fatalf("生成 token 失败: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := ParseToken(secret, token); err == nil {
		t.Error("过期 token 应解析失败")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := GenerateToken("right-secret", 1, time.Hour)

	if _, err := ParseToken("wrong-secret", token); err == nil {
		t.Error("错误密钥应解析失败")
	}
}

func TestParseToken_Malformed(t *testing.T) {
	if _, err := ParseToken("secret", "not-a-jwt"); err == nil {
		t.Error("格式错误的 token 应解析失败")
	}
	if _, err := ParseToken("secret", ""); err == nil {
		t.Error("空 token 应解析失败")
	}
}
