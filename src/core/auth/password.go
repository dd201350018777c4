package auth

import (
	"crypto/subtle"
	"errors"
)

// ErrInvalidPassword 口令不匹配
var ErrInvalidPassword = errors.New("invalid password")

// PasswordGate 共享口令校验，口令只保存在进程内存中
type PasswordGate struct {
	secret []byte
}

// NewPasswordGate 创建口令校验器，空口令表示不启用
func NewPasswordGate(secret string) *PasswordGate {
	return &PasswordGate{secret: []byte(secret)}
}

// Enabled 是否需要口令
func (g *PasswordGate) Enabled() bool {
	return len(g.secret) > 0
}

// Check 比较口令
func (g *PasswordGate) Check(password string) error {
	if !g.Enabled() {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(password), g.secret) != 1 {
		return ErrInvalidPassword
	}
	return nil
}
