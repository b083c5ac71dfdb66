package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"erp-skeleton/internal/api"
	"erp-skeleton/internal/cache"
	"erp-skeleton/internal/database"
	"erp-skeleton/internal/model"
	"erp-skeleton/internal/service"
	"erp-skeleton/internal/store"
	"erp-skeleton/internal/worker"

	"github.com/labstack/echo/v4"
)

var (
	hashPasswordOn = service.HashPasswordOn
	createUser     = store.CreateUser
	getUserByID    = store.GetUserByID
	listUsers      = store.ListUsers
	updateUser     = store.UpdateUser
	deleteUser     = store.DeleteUser
)

// 公開投影快取的 TTL，變動時會主動清除
const userCacheTTL = 5 * time.Minute

func userCacheKey(id int) string {
	return fmt.Sprintf("user:%d", id)
}

// ListUsersHandler 列出所有使用者
// @Summary     List users
// @Description 回傳所有使用者 (不含 password_hash)，依建立順序排列
// @Tags        users
// @Produce     json
// @Success     200 {array}  api.UserResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     403 {object} api.ErrorResponse
// @Failure     500 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users [get]
func ListUsersHandler(db database.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := listUsers(c.Request().Context(), db)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list users"})
		}
		resp := make([]api.UserResponse, 0, len(users))
		for i := range users {
			resp = append(resp, api.NewUserResponse(&users[i]))
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// GetUserHandler 查詢單一使用者，投影先走快取再回源
// @Summary     Get a user by ID
// @Description 透過 ID 查詢並回傳使用者資料 (不含 password_hash)
// @Tags        users
// @Produce     json
// @Param       id path int true "使用者 ID"
// @Success     200 {object} api.UserResponse
// @Failure     400 {object} api.ErrorResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     403 {object} api.ErrorResponse
// @Failure     404 {object} api.ErrorResponse
// @Failure     500 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/{id} [get]
func GetUserHandler(db database.DB, rdb cache.Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid user ID"})
		}

		ctx := c.Request().Context()
		if raw, err := rdb.Get(ctx, userCacheKey(id)).Result(); err == nil {
			var resp api.UserResponse
			if json.Unmarshal([]byte(raw), &resp) == nil {
				return c.JSON(http.StatusOK, resp)
			}
		}

		user, err := getUserByID(ctx, db, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not found"})
			}
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to get user"})
		}

		resp := api.NewUserResponse(user)
		if b, err := json.Marshal(resp); err == nil {
			// 寫入失敗不影響回應
			rdb.Set(ctx, userCacheKey(id), b, userCacheTTL)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// CreateUserHandler 管理員建立新使用者，結果一律為一般使用者
// @Summary     Create a new user
// @Description 接收使用者資料並建立新帳號 (Email 會自動轉小寫)
// @Tags        users
// @Accept      json
// @Produce     json
// @Param       body body api.CreateUserRequest true "使用者資料"
// @Success     201 {object} api.UserResponse
// @Failure     400 {object} api.ErrorResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     403 {object} api.ErrorResponse
// @Failure     500 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users [post]
func CreateUserHandler(db database.DB, wp worker.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.CreateUserRequest
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

		return c.JSON(http.StatusCreated, api.NewUserResponse(user))
	}
}

// UpdateUserHandler 部分更新使用者，空的更新內容視為錯誤
// @Summary     Update a user by ID
// @Description 接受 username/email/password 任意子集，套用為單一更新
// @Tags        users
// @Accept      json
// @Produce     json
// @Param       id   path int                   true "使用者 ID"
// @Param       body body api.UpdateUserRequest true "更新欄位"
// @Success     200 {object} api.UserResponse
// @Failure     400 {object} api.ErrorResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     403 {object} api.ErrorResponse
// @Failure     404 {object} api.ErrorResponse
// @Failure     500 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/{id} [put]
func UpdateUserHandler(db database.DB, rdb cache.Cache, wp worker.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid user ID"})
		}

		var req api.UpdateUserRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		}
		if err := c.Validate(&req); err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		}
		if req.IsEmpty() {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "no fields to update"})
		}

		ctx := c.Request().Context()
		if _, err := getUserByID(ctx, db, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not found"})
			}
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to get user"})
		}

		patch := store.UserPatch{Username: req.Username}
		if req.Email != nil {
			email := strings.ToLower(*req.Email)
			if _, err := mail.ParseAddress(email); err != nil {
				return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid email format"})
			}
			patch.Email = &email
		}
		if req.Password != nil {
			hash, err := hashPasswordOn(wp, *req.Password)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to hash password"})
			}
			patch.PasswordHash = &hash
		}

		user, err := updateUser(ctx, db, id, patch)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not found"})
			}
			if errors.Is(err, store.ErrDuplicateEmail) {
				return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email already in use"})
			}
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to update user"})
		}

		rdb.Del(ctx, userCacheKey(id))
		return c.JSON(http.StatusOK, api.NewUserResponse(user))
	}
}

// DeleteUserHandler 刪除使用者 (物理刪除)
// @Summary     Delete a user by ID
// @Description 根據使用者 ID 刪除帳號
// @Tags        users
// @Param       id path int true "使用者 ID"
// @Success     204 "No Content"
// @Failure     400 {object} api.ErrorResponse
// @Failure     401 {object} api.ErrorResponse
// @Failure     403 {object} api.ErrorResponse
// @Failure     404 {object} api.ErrorResponse
// @Failure     500 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /users/{id} [delete]
func DeleteUserHandler(db database.DB, rdb cache.Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid user ID"})
		}

		ctx := c.Request().Context()
		if err := deleteUser(ctx, db, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not found"})
			}
			return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to delete user"})
		}

		rdb.Del(ctx, userCacheKey(id))
		return c.NoContent(http.StatusNoContent)
	}
}
