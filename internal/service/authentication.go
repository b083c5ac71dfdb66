// File: internal/service/authentication.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"erp-skeleton/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// CustomClaims 定義 JWT 負載內容
type CustomClaims struct {
	UserID   int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

var (
	// ErrTokenExpired 令牌已過期
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid 簽章無效或格式錯誤
	ErrTokenInvalid = errors.New("invalid token")
	// ErrInvalidPassword 密碼比對不符
	ErrInvalidPassword = errors.New("invalid password")
)

var (
	timeNow         = time.Now
	parseWithClaims = jwt.ParseWithClaims
)

// AuthenticateUser 比對使用者明文密碼
// 比對不符回傳 ErrInvalidPassword；雜湊毀損等其餘失敗原樣回傳，交由呼叫端視為內部錯誤
func AuthenticateUser(ctx context.Context, user model.User, password string) error {
	if err := ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return err
	}
	return nil
}

// IssueAccessToken 依據使用者資訊、簽章密鑰與 TTL 產生 JWT
func IssueAccessToken(user model.User, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret not set")
	}

	now := timeNow()
	claims := CustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyAccessToken 驗證並解析 JWT 令牌
// 過期回傳 ErrTokenExpired，簽章錯誤等其餘失敗回傳 ErrTokenInvalid
func VerifyAccessToken(tokenString, secret string) (*CustomClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret not set")
	}

	token, err := parseWithClaims(tokenString, &CustomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
