package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword 使用 bcrypt 生成密码哈希，cost 不合法时退回默认值。
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword 验证明文密码与存储的哈希是否匹配。
// 任何错误（格式损坏、哈希不匹配）都按不匹配处理。
func CheckPassword(password, stored string) bool {
	if password == "" || stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// RandomString 生成指定长度的随机字符串（URL 安全，用于密钥、token 等）。
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}

// ----------------- 密码找回 token -----------------

// HashResetToken 对找回 token 做 SHA-256。
// token 只是查找键，不需要像密码那样用慢哈希。
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateResetToken 生成一次性的密码找回 token。
// 返回明文（只在这里出现一次）、存库用的哈希和过期时间。
func GenerateResetToken(ttl time.Duration) (plain, hash string, expiry time.Time, err error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	// 24 字节随机数 ≈ 192 bit 熵
	plain, err = RandomString(32)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	return plain, HashResetToken(plain), time.Now().Add(ttl), nil
}

// ----------------- AES-256-GCM 加密/解密 -----------------

// deriveKey 始终生成 32 字节 key，避免对配置长度过于敏感。
func deriveKey(keyStr string) []byte {
	sum := sha256.Sum256([]byte(keyStr))
	return sum[:]
}

// EncryptAES 使用 AES-256-GCM 加密数据，返回 nonce+ciphertext。
func EncryptAES(keyStr string, plaintext []byte) ([]byte, error) {
	key := deriveKey(keyStr)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)
	// 前面拼上 nonce，解密时可以拆回来
	return append(nonce, ciphertext...), nil
}

// DecryptAES 使用 AES-256-GCM 解密数据（输入必须是 nonce+ciphertext）。
func DecryptAES(keyStr string, data []byte) ([]byte, error) {
	key := deriveKey(keyStr)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	ns := aesgcm.NonceSize()
	if len(data) < ns {
		return nil, fmt.Errorf("cipher too short")
	}
	nonce, ciphertext := data[:ns], data[ns:]

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// ----------------- 密码字段传输混淆 -----------------

// EncodePassword 用共享 key 把密码字段加密成 base64，与前端约定一致。
// 注意：key 打包在前端里，这只是避免明文进传输日志，不是安全边界。
func EncodePassword(transportKey, plain string) (string, error) {
	if transportKey == "" {
		return plain, nil
	}
	b, err := EncryptAES(transportKey, []byte(plain))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodePassword 还原前端加密过的密码字段。
// 解不开时按明文处理，兼容未启用混淆的客户端。
func DecodePassword(transportKey, value string) string {
	if value == "" || transportKey == "" {
		return value
	}
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return value
	}
	plain, err := DecryptAES(transportKey, b)
	if err != nil {
		return value
	}
	return string(plain)
}
