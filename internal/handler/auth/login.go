// File: internal/handler/auth/login.go
package auth

import (
	"errors"
	"net/http"
	"strings"

	"erp-skeleton/internal/api"
	"erp-skeleton/internal/config"
	"erp-skeleton/internal/database"
	"erp-skeleton/internal/service"
	"erp-skeleton/internal/store"

	"github.com/labstack/echo/v4"
)

var (
	getUserByEmail   = store.GetUserByEmail
	authenticateUser = service.AuthenticateUser
	issueAccessToken = service.IssueAccessToken
	hashPasswordOn   = service.HashPasswordOn
	createUser       = store.CreateUser
)

// LoginHandler 使用 Email/Password 驗證並回傳 JWT
// @Summary     登入使用者
// @Description 使用 Email 與 Password 進行驗證，回傳存取令牌與使用者資料
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       body body api.LoginRequest true "登入資訊"
// @Success     200 {object} api.AuthResponse
// @Failure     400 {object} api.ErrorResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     500 {object} api.ErrorResponse
// @Router      /auth/login [post]
func LoginHandler(db database.DB, cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.LoginRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		}
		if err := c.Validate(&req); err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		}

		// 查無 email 與密碼錯誤回傳同一訊息，不洩漏帳號是否存在
		user, err := getUserByEmail(c.Request().Context(), db, strings.ToLower(req.Email))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid credentials"})
			}
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to get user"})
		}
		if err := authenticateUser(c.Request().Context(), *user, req.Password); err != nil {
			if errors.Is(err, service.ErrInvalidPassword) {
				return c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid credentials"})
			}
			// 儲存的雜湊毀損等非比對性錯誤
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to verify credentials"})
		}

		token, err := issueAccessToken(*user, cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to issue token"})
		}

		return c.JSON(http.StatusOK, api.AuthResponse{
			Token: token,
			User:  api.NewUserResponse(user),
		})
	}
}
