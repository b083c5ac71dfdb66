package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound 查無符合的資料列
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail email 唯一約束衝突
	ErrDuplicateEmail = errors.New("email already in use")
)

// unique_violation
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
