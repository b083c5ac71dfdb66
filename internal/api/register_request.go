package api

// swagger:model api.RegisterRequest
type RegisterRequest struct {
	Username string `json:"username" validate:"required" example:"alice"`
	Email    string `json:"email" validate:"required,email" example:"alice@example.com"`
	Password string `json:"password" validate:"required,min=8" example:"Secret123!"`
}
