package api

// CreateUserRequest 管理員建立帳號用，沒有 is_admin 欄位，建立結果一律為一般使用者
// swagger:model api.CreateUserRequest
type CreateUserRequest struct {
	Username string `json:"username" validate:"required" example:"bob"`
	Email    string `json:"email" validate:"required,email" example:"bob@example.com"`
	Password string `json:"password" validate:"required,min=8" example:"Secret123!"`
}
