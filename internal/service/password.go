// File: internal/service/password.go
package service

import (
	"erp-skeleton/internal/worker"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 成本因子，全站固定
const passwordCost = bcrypt.DefaultCost

var (
	bcryptGenerateFromPassword   = bcrypt.GenerateFromPassword
	bcryptCompareHashAndPassword = bcrypt.CompareHashAndPassword
)

// HashPassword 接收明文密碼，回傳 bcrypt 哈希字串
func HashPassword(password string) (string, error) {
	hashBytes, err := bcryptGenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// ComparePassword 比對明文密碼與 bcrypt 哈希，成功回傳 nil，失敗則回傳錯誤
func ComparePassword(hash, password string) error {
	return bcryptCompareHashAndPassword([]byte(hash), []byte(password))
}

// HashPasswordOn 將哈希計算提交到共用 worker pool，限制同時進行的 bcrypt 數量
func HashPasswordOn(wp worker.Pool, password string) (string, error) {
	type result struct {
		hash string
		err  error
	}
	ch := make(chan result, 1)
	wp.Submit(func() {
		hash, err := HashPassword(password)
		ch <- result{hash: hash, err: err}
	})
	r := <-ch
	return r.hash, r.err
}
