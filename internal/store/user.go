package store

import (
	"context"
	"errors"
	"fmt"

	"erp-skeleton/internal/database"
	"erp-skeleton/internal/model"

	"github.com/jackc/pgx/v5"
)

func CreateUser(ctx context.Context, db database.DB, u *model.User) (*model.User, error) {
	row := db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, is_admin)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.IsAdmin,
	)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("CreateUser: %w", err)
	}
	return u, nil
}

func GetUserByID(ctx context.Context, db database.DB, userID int) (*model.User, error) {
	row := db.QueryRow(ctx,
		`SELECT id, username, email, password_hash, is_admin, created_at
		 FROM users WHERE id = $1`,
		userID,
	)
	u := &model.User{}
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetUserByID: %w", err)
	}
	return u, nil
}

func GetUserByEmail(ctx context.Context, db database.DB, email string) (*model.User, error) {
	row := db.QueryRow(ctx,
		`SELECT id, username, email, password_hash, is_admin, created_at
		 FROM users WHERE email = $1`,
		email,
	)
	u := &model.User{}
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetUserByEmail: %w", err)
	}
	return u, nil
}

// ListUsers 依建立順序 (id) 回傳所有使用者
func ListUsers(ctx context.Context, db database.DB) ([]model.User, error) {
	rows, err := db.Query(ctx,
		`SELECT id, username, email, password_hash, is_admin, created_at
		 FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID,
			&u.Username,
			&u.Email,
			&u.PasswordHash,
			&u.IsAdmin,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListUsers: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	return users, nil
}

// UserPatch 部分更新欄位，nil 表示保持原值
type UserPatch struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

// IsZero 回報 patch 是否未帶任何欄位
func (p UserPatch) IsZero() bool {
	return p.Username == nil && p.Email == nil && p.PasswordHash == nil
}

// UpdateUser 以單一 UPDATE 套用 patch，nil 欄位由 COALESCE 保留原值
func UpdateUser(ctx context.Context, db database.DB, userID int, p UserPatch) (*model.User, error) {
	row := db.QueryRow(ctx,
		`UPDATE users
		 SET username      = COALESCE($1, username),
		     email         = COALESCE($2, email),
		     password_hash = COALESCE($3, password_hash)
		 WHERE id = $4
		 RETURNING id, username, email, password_hash, is_admin, created_at`,
		p.Username,
		p.Email,
		p.PasswordHash,
		userID,
	)
	u := &model.User{}
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("UpdateUser: %w", err)
	}
	return u, nil
}

func DeleteUser(ctx context.Context, db database.DB, userID int) error {
	tag, err := db.Exec(ctx,
		`DELETE FROM users WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
