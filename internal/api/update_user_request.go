package api

// UpdateUserRequest 部分更新，nil 欄位表示不變動
// swagger:model api.UpdateUserRequest
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1" example:"alice"`
	Email    *string `json:"email" validate:"omitempty,email" example:"alice@example.com"`
	Password *string `json:"password" validate:"omitempty,min=8" example:"Secret123!"`
}

// IsEmpty 回報是否沒有任何欄位要更新
func (r UpdateUserRequest) IsEmpty() bool {
	return r.Username == nil && r.Email == nil && r.Password == nil
}
