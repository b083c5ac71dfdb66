// File: internal/handler/auth/register.go
package auth

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"erp-skeleton/internal/api"
	"erp-skeleton/internal/config"
	"erp-skeleton/internal/database"
	"erp-skeleton/internal/model"
	"erp-skeleton/internal/store"
	"erp-skeleton/internal/worker"

	"github.com/labstack/echo/v4"
)

// RegisterHandler 自助註冊，建立的帳號一律為一般使用者
// @Summary     註冊使用者
// @Description 建立新帳號並回傳存取令牌 (Email 會自動轉小寫)
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       body body api.RegisterRequest true "註冊資訊"
// @Success     201 {object} api.AuthResponse
// @Failure     400 {object} api.ErrorResponse
// @Failure     500 {object} api.ErrorResponse
// @Router      /auth/register [post]
func RegisterHandler(db database.DB, wp worker.Pool, cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.RegisterRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		}
		if err := c.Validate(&req); err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		}

		req.Email = strings.ToLower(req.Email)
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid email format"})
		}

		hash, err := hashPasswordOn(wp, req.Password)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to hash password"})
		}

		user, err := createUser(c.Request().Context(), db, &model.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			IsAdmin:      false,
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicateEmail) {
				return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email already in use"})
			}
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create user"})
		}

		token, err := issueAccessToken(*user, cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to issue token"})
		}

		return c.JSON(http.StatusCreated, api.AuthResponse{
			Token: token,
			User:  api.NewUserResponse(user),
		})
	}
}
