// File: internal/router/router.go
package router

import (
	"github.com/labstack/echo/v4"

	"erp-skeleton/internal/cache"
	"erp-skeleton/internal/config"
	"erp-skeleton/internal/database"
	"erp-skeleton/internal/handler"
	"erp-skeleton/internal/handler/auth"
	"erp-skeleton/internal/handler/users"
	"erp-skeleton/internal/middleware"
	"erp-skeleton/internal/worker"
)

// Setup 註冊所有路由與中介層
func Setup(e *echo.Echo, db database.DB, rdb cache.Cache, wp worker.Pool, cfg *config.Config) {
	// 公開端點
	e.GET("/testApi", handler.TestAPIHandler())
	e.GET("/health", handler.HealthHandler())
	e.POST("/auth/register", auth.RegisterHandler(db, wp, cfg))
	e.POST("/auth/login", auth.LoginHandler(db, cfg))

	// Users CRUD
	requireAdmin := middleware.RequireAdmin(db, cfg.JWTSecret)
	requireAdminOrOwner := middleware.RequireAdminOrOwner(db, cfg.JWTSecret)

	apiUsers := e.Group("/users")
	apiUsers.GET("", users.ListUsersHandler(db), requireAdmin)
	apiUsers.POST("", users.CreateUserHandler(db, wp), requireAdmin)
	apiUsers.GET("/:id", users.GetUserHandler(db, rdb), requireAdminOrOwner)
	apiUsers.PUT("/:id", users.UpdateUserHandler(db, rdb, wp), requireAdminOrOwner)
	apiUsers.DELETE("/:id", users.DeleteUserHandler(db, rdb), requireAdmin)
}
