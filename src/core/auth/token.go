package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthToken 会话token签发与校验
type AuthToken struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthToken 创建token工具，ttl<=0 时使用1小时
func NewAuthToken(secretKey string, ttl time.Duration) (*AuthToken, error) {
	if secretKey == "" {
		return nil, errors.New("secret key cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthToken{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// GenerateToken 为会话签发token
func (at *AuthToken) GenerateToken(sessionID string) (string, error) {
	now := at.now()

	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        now.Add(at.ttl).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(at.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken 校验token并返回会话ID
func (at *AuthToken) VerifyToken(tokenString string) (bool, string, error) {
	if at == nil {
		return false, "", errors.New("AuthToken instance is nil")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return at.secretKey, nil
	}, jwt.WithTimeFunc(at.now))
	if err != nil {
		return false, "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return false, "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false, "", errors.New("invalid claims")
	}

	sessionID, ok := claims["session_id"].(string)
	if !ok || sessionID == "" {
		return false, "", errors.New("invalid session_id in claims")
	}

	return true, sessionID, nil
}
