package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"erp-skeleton/internal/api"
	"erp-skeleton/internal/cache"
	"erp-skeleton/internal/database"
	"erp-skeleton/internal/model"
	"erp-skeleton/internal/service"
	"erp-skeleton/internal/store"
	"erp-skeleton/internal/worker"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubValidator struct{ err error }

func (s *stubValidator) Validate(i interface{}) error { return s.err }

func restore() {
	hashPasswordOn = service.HashPasswordOn
	createUser = store.CreateUser
	getUserByID = store.GetUserByID
	listUsers = store.ListUsers
	updateUser = store.UpdateUser
	deleteUser = store.DeleteUser
}

// missCache 回應 cache miss，寫入與刪除都接受
func missCache() *cache.FakeCache {
	return &cache.FakeCache{
		GetFn: func(ctx context.Context, key string) *redis.StringCmd {
			return redis.NewStringResult("", redis.Nil)
		},
		SetFn: func(ctx context.Context, key string, val any, exp time.Duration) *redis.StatusCmd {
			return redis.NewStatusResult("OK", nil)
		},
		DelFn: func(ctx context.Context, keys ...string) *redis.IntCmd {
			return redis.NewIntResult(int64(len(keys)), nil)
		},
	}
}

func newListCtx(e *echo.Echo) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newParamCtx(e *echo.Echo, method, val, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/users/"+val, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/users/:id")
	c.SetParamNames("id")
	c.SetParamValues(val)
	return c, rec
}

func newBodyCtx(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestListUsersHandler(t *testing.T) {
	e := echo.New()

	t.Run("success strips password hash", func(t *testing.T) {
		t.Cleanup(restore)
		now := time.Now().UTC()
		listUsers = func(context.Context, database.DB) ([]model.User, error) {
			return []model.User{
				{ID: 1, Username: "a", Email: "a@x.com", PasswordHash: "supersecret", CreatedAt: now},
				{ID: 2, Username: "b", Email: "b@x.com", PasswordHash: "supersecret", IsAdmin: true, CreatedAt: now},
			}, nil
		}
		ctx, rec := newListCtx(e)
		require.NoError(t, ListUsersHandler(nil)(ctx))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"a@x.com"`)
		require.Contains(t, rec.Body.String(), `"b@x.com"`)
		require.NotContains(t, rec.Body.String(), "supersecret")
		require.NotContains(t, rec.Body.String(), "password_hash")
	})

	t.Run("store error", func(t *testing.T) {
		t.Cleanup(restore)
		listUsers = func(context.Context, database.DB) ([]model.User, error) {
			return nil, errors.New("list")
		}
		ctx, rec := newListCtx(e)
		require.NoError(t, ListUsersHandler(nil)(ctx))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetUserHandler(t *testing.T) {
	e := echo.New()
	now := time.Now().UTC()
	sample := &model.User{ID: 7, Username: "alice", Email: "a@x.com", PasswordHash: "h", CreatedAt: now}

	t.Run("invalid id", func(t *testing.T) {
		t.Cleanup(restore)
		ctx, rec := newParamCtx(e, http.MethodGet, "abc", "")
		require.NoError(t, GetUserHandler(nil, missCache())(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cache hit skips store", func(t *testing.T) {
		t.Cleanup(restore)
		cached, _ := json.Marshal(api.NewUserResponse(sample))
		rdb := &cache.FakeCache{
			GetFn: func(ctx context.Context, key string) *redis.StringCmd {
				require.Equal(t, "user:7", key)
				return redis.NewStringResult(string(cached), nil)
			},
		}
		getUserByID = func(context.Context, database.DB, int) (*model.User, error) {
			t.Fatal("store should not be hit on cache hit")
			return nil, nil
		}
		ctx, rec := newParamCtx(e, http.MethodGet, "7", "")
		require.NoError(t, GetUserHandler(nil, rdb)(ctx))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"a@x.com"`)
	})

	t.Run("cache miss fills cache", func(t *testing.T) {
		t.Cleanup(restore)
		setKey := ""
		rdb := missCache()
		rdb.SetFn = func(ctx context.Context, key string, val any, exp time.Duration) *redis.StatusCmd {
			setKey = key
			require.Equal(t, userCacheTTL, exp)
			return redis.NewStatusResult("OK", nil)
		}
		getUserByID = func(_ context.Context, _ database.DB, id int) (*model.User, error) {
			require.Equal(t, 7, id)
			u := *sample
			return &u, nil
		}
		ctx, rec := newParamCtx(e, http.MethodGet, "7", "")
		require.NoError(t, GetUserHandler(nil, rdb)(ctx))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user:7", setKey)
		require.NotContains(t, rec.Body.String(), "password_hash")
	})

	t.Run("not found", func(t *testing.T) {
		t.Cleanup(restore)
		getUserByID = func(context.Context, database.DB, int) (*model.User, error) {
			return nil, store.ErrNotFound
		}
		ctx, rec := newParamCtx(e, http.MethodGet, "99", "")
		require.NoError(t, GetUserHandler(nil, missCache())(ctx))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateUserHandler(t *testing.T) {
	e := echo.New()

	t.Run("validate error", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{err: errors.New("v")}
		ctx, rec := newBodyCtx(e, `{"username":"a","email":"a@x.com","password":"password1"}`)
		require.NoError(t, CreateUserHandler(nil, nil)(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{}
		hashPasswordOn = func(worker.Pool, string) (string, error) { return "h", nil }
		createUser = func(context.Context, database.DB, *model.User) (*model.User, error) {
			return nil, store.ErrDuplicateEmail
		}
		ctx, rec := newBodyCtx(e, `{"username":"a","email":"a@x.com","password":"password1"}`)
		require.NoError(t, CreateUserHandler(nil, nil)(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "email already in use")
	})

	t.Run("success forces non-admin", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{}
		hashPasswordOn = func(worker.Pool, string) (string, error) { return "h", nil }
		var created *model.User
		createUser = func(_ context.Context, _ database.DB, u *model.User) (*model.User, error) {
			created = u
			u.ID = 3
			return u, nil
		}
		ctx, rec := newBodyCtx(e, `{"username":"Bob","email":"Bob@X.com","password":"password1"}`)
		require.NoError(t, CreateUserHandler(nil, nil)(ctx))
		require.Equal(t, http.StatusCreated, rec.Code)
		require.False(t, created.IsAdmin)
		require.Equal(t, "bob@x.com", created.Email)
		require.NotContains(t, rec.Body.String(), "password_hash")
	})
}

func TestUpdateUserHandler(t *testing.T) {
	e := echo.New()
	now := time.Now().UTC()
	sample := &model.User{ID: 7, Username: "alice", Email: "a@x.com", PasswordHash: "h", CreatedAt: now}

	t.Run("invalid id", func(t *testing.T) {
		t.Cleanup(restore)
		ctx, rec := newParamCtx(e, http.MethodPut, "abc", `{"username":"x"}`)
		require.NoError(t, UpdateUserHandler(nil, missCache(), nil)(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty patch is rejected without store calls", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{}
		updateUser = func(context.Context, database.DB, int, store.UserPatch) (*model.User, error) {
			t.Fatal("updateUser should not be called")
			return nil, nil
		}
		ctx, rec := newParamCtx(e, http.MethodPut, "7", `{}`)
		require.NoError(t, UpdateUserHandler(nil, missCache(), nil)(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "no fields to update")
	})

	t.Run("target missing is 404 before staging", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{}
		getUserByID = func(context.Context, database.DB, int) (*model.User, error) {
			return nil, store.ErrNotFound
		}
		ctx, rec := newParamCtx(e, http.MethodPut, "99", `{"username":"x"}`)
		require.NoError(t, UpdateUserHandler(nil, missCache(), nil)(ctx))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("username-only patch leaves other fields nil", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{}
		getUserByID = func(context.Context, database.DB, int) (*model.User, error) {
			u := *sample
			return &u, nil
		}
		var gotPatch store.UserPatch
		updateUser = func(_ context.Context, _ database.DB, id int, p store.UserPatch) (*model.User, error) {
			require.Equal(t, 7, id)
			gotPatch = p
			u := *sample
			u.Username = *p.Username
			return &u, nil
		}
		deleted := false
		rdb := missCache()
		rdb.DelFn = func(ctx context.Context, keys ...string) *redis.IntCmd {
			deleted = true
			require.Equal(t, []string{"user:7"}, keys)
			return redis.NewIntResult(1, nil)
		}
		ctx, rec := newParamCtx(e, http.MethodPut, "7", `{"username":"renamed"}`)
		require.NoError(t, UpdateUserHandler(nil, rdb, nil)(ctx))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotPatch.Username)
		require.Equal(t, "renamed", *gotPatch.Username)
		require.Nil(t, gotPatch.Email)
		require.Nil(t, gotPatch.PasswordHash)
		require.True(t, deleted)
		require.Contains(t, rec.Body.String(), `"renamed"`)
		require.NotContains(t, rec.Body.String(), "password_hash")
	})

	t.Run("email is lowercased and validated", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{}
		getUserByID = func(context.Context, database.DB, int) (*model.User, error) {
			u := *sample
			return &u, nil
		}
		var gotPatch store.UserPatch
		updateUser = func(_ context.Context, _ database.DB, _ int, p store.UserPatch) (*model.User, error) {
			gotPatch = p
			u := *sample
			return &u, nil
		}
		ctx, rec := newParamCtx(e, http.MethodPut, "7", `{"email":"New@Example.COM"}`)
		require.NoError(t, UpdateUserHandler(nil, missCache(), nil)(ctx))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotPatch.Email)
		require.Equal(t, "new@example.com", *gotPatch.Email)

		ctx, rec = newParamCtx(e, http.MethodPut, "7", `{"email":"not-an-email"}`)
		require.NoError(t, UpdateUserHandler(nil, missCache(), nil)(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("password is hashed before staging", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{}
		getUserByID = func(context.Context, database.DB, int) (*model.User, error) {
			u := *sample
			return &u, nil
		}
		hashPasswordOn = func(_ worker.Pool, pw string) (string, error) {
			require.Equal(t, "newpassword", pw)
			return "newhash", nil
		}
		var gotPatch store.UserPatch
		updateUser = func(_ context.Context, _ database.DB, _ int, p store.UserPatch) (*model.User, error) {
			gotPatch = p
			u := *sample
			return &u, nil
		}
		ctx, rec := newParamCtx(e, http.MethodPut, "7", `{"password":"newpassword"}`)
		require.NoError(t, UpdateUserHandler(nil, missCache(), nil)(ctx))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotPatch.PasswordHash)
		require.Equal(t, "newhash", *gotPatch.PasswordHash)
	})

	t.Run("duplicate email on update", func(t *testing.T) {
		t.Cleanup(restore)
		e.Validator = &stubValidator{}
		getUserByID = func(context.Context, database.DB, int) (*model.User, error) {
			u := *sample
			return &u, nil
		}
		updateUser = func(context.Context, database.DB, int, store.UserPatch) (*model.User, error) {
			return nil, store.ErrDuplicateEmail
		}
		ctx, rec := newParamCtx(e, http.MethodPut, "7", `{"email":"taken@x.com"}`)
		require.NoError(t, UpdateUserHandler(nil, missCache(), nil)(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "email already in use")
	})
}

func TestDeleteUserHandler(t *testing.T) {
	e := echo.New()

	t.Run("invalid id", func(t *testing.T) {
		t.Cleanup(restore)
		ctx, rec := newParamCtx(e, http.MethodDelete, "abc", "")
		require.NoError(t, DeleteUserHandler(nil, missCache())(ctx))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		t.Cleanup(restore)
		deleteUser = func(context.Context, database.DB, int) error { return store.ErrNotFound }
		ctx, rec := newParamCtx(e, http.MethodDelete, "99", "")
		require.NoError(t, DeleteUserHandler(nil, missCache())(ctx))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("success invalidates cache", func(t *testing.T) {
		t.Cleanup(restore)
		deleteUser = func(_ context.Context, _ database.DB, id int) error {
			require.Equal(t, 7, id)
			return nil
		}
		deleted := false
		rdb := missCache()
		rdb.DelFn = func(ctx context.Context, keys ...string) *redis.IntCmd {
			deleted = true
			require.Equal(t, []string{"user:7"}, keys)
			return redis.NewIntResult(1, nil)
		}
		ctx, rec := newParamCtx(e, http.MethodDelete, "7", "")
		require.NoError(t, DeleteUserHandler(nil, rdb)(ctx))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, rec.Body.String())
		require.True(t, deleted)
	})
}
