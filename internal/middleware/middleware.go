package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"erp-skeleton/internal/database"
	"erp-skeleton/internal/model"
	"erp-skeleton/internal/service"
	"erp-skeleton/internal/store"

	"github.com/labstack/echo/v4"
)

const ContextUserKey = "user"

var (
	verifyAccessToken = service.VerifyAccessToken
	getUserByID       = store.GetUserByID
)

// extractToken 取出 Authorization header 中的 bearer token
// 缺少或格式不符 (非 "Bearer <token>") 視為 MissingToken → 401
func extractToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
	}
	return parts[1], nil
}

// CurrentUser 取出 RequireAuth 放入 context 的使用者
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(ContextUserKey).(*model.User)
	return u, ok
}

// RequireAuth 驗證 bearer token 並向資料庫確認使用者仍存在
// 令牌所指使用者已刪除時拒絕 (token 不會主動撤銷，這裡是唯一防線)
// 狀態碼對應：缺少/格式錯誤與查無使用者 → 401，簽章無效或過期 → 403
func RequireAuth(db database.DB, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := extractToken(c)
			if err != nil {
				return err
			}

			claims, err := verifyAccessToken(tokenString, secret)
			if err != nil {
				if errors.Is(err, service.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusForbidden, "token expired")
				}
				return echo.NewHTTPError(http.StatusForbidden, "invalid token")
			}

			user, err := getUserByID(c.Request().Context(), db, claims.UserID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "unknown subject")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve user")
			}

			// 只保留非機密欄位
			user.PasswordHash = ""
			c.Set(ContextUserKey, user)
			return next(c)
		}
	}
}

// RequireAdmin 在 RequireAuth 之後限定管理員
func RequireAdmin(db database.DB, secret string) echo.MiddlewareFunc {
	auth := RequireAuth(db, secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return auth(func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !user.IsAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "admin privileges required")
			}
			return next(c)
		})
	}
}

// RequireAdminOrOwner 在 RequireAuth 之後限定管理員或路徑 :id 本人
func RequireAdminOrOwner(db database.DB, secret string) echo.MiddlewareFunc {
	auth := RequireAuth(db, secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return auth(func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if user.IsAdmin {
				return next(c)
			}
			targetID, err := strconv.Atoi(c.Param("id"))
			if err != nil || targetID != user.ID {
				return echo.NewHTTPError(http.StatusForbidden, "access denied")
			}
			return next(c)
		})
	}
}
