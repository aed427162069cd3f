package util

import (
	"strings"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"  Alice@Example.COM ": "alice@example.com",
		"bob@x.com":            "bob@x.com",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, 期望 %q", in, got, want)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"alice@example.com",
		"a.b+c@sub.domain.org",
		"user_1@x.co",
	}
	for _, e := range valid {
		if err := ValidateEmail(e); err != nil {
			t.Errorf("合法邮箱 %q 不应报错: %v", e, err)
		}
	}

	invalid := []string{
		"",
		"no-at-sign",
		"@no-local.com",
		"user@",
		"user@nodot",
		strings.Repeat("a", 120) + "@example.com",
	}
	for _, e := range invalid {
		if err := ValidateEmail(e); err == nil {
			t.Errorf("非法邮箱 %q 应报错", e)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("张三"); err != nil {
		t.Errorf("合法昵称不应报错: %v", err)
	}
	if err := ValidateName(strings.Repeat("字", 50)); err != nil {
		t.Errorf("50 字符昵称应合法: %v", err)
	}

	if err := ValidateName(""); err == nil {
		t.Error("空昵称应报错")
	}
	if err := ValidateName("   "); err == nil {
		t.Error("纯空格昵称应报错")
	}
	if err := ValidateName(strings.Repeat("字", 51)); err == nil {
		t.Error("超过 50 字符的昵称应报错")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("123456"); err != nil {
		t.Errorf("6 位密码应合法: %v", err)
	}
	if err := ValidatePassword(strings.Repeat("x", 64)); err != nil {
		t.Errorf("64 位密码应合法: %v", err)
	}

	if err := ValidatePassword("12345"); err == nil {
		t.Error("过短密码应报错")
	}
	if err := ValidatePassword(strings.Repeat("x", 65)); err == nil {
		t.Error("过长密码应报错")
	}
}

func TestValidateRating(t *testing.T) {
	for r := 1; r <= 5; r++ {
		if err := ValidateRating(r); err != nil {
			t.Errorf("评分 %d 应合法: %v", r, err)
		}
	}
	for _, r := range []int{0, -1, 6, 100} {
		if err := ValidateRating(r); err == nil {
			t.Errorf("评分 %d 应报错", r)
		}
	}
}
