// File: internal/handler/health.go
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthResponse 健康檢查回應模型
// swagger:model HealthResponse
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// HealthHandler 健康檢查
// @Summary     Health Check
// @Tags        health
// @Produce     json
// @Success     200 {object} HealthResponse
// @Router      /health [get]
func HealthHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
	}
}

// TestAPIHandler 連線測試
// @Summary     API smoke test
// @Tags        health
// @Produce     plain
// @Success     200 {string} string "OK!"
// @Router      /testApi [get]
func TestAPIHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, "OK!")
	}
}
