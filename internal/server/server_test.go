package server_test

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/model"
	"taskboard/internal/server"
	"taskboard/internal/server/servertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestHealthz(t *testing.T) {
	gw := servertest.Start(t)

	resp, err := http.Get(gw.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	gw := servertest.Start(t)

	for _, path := range []string{"/projects", "/profiles", "/auth/session", "/realtime?table=projects"} {
		resp, err := http.Get(gw.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestSignUpThenLogin(t *testing.T) {
	gw := servertest.Start(t)

	body := `{"email":"ann@example.com","password":"secret1"}`
	resp, err := http.Post(gw.URL+"/auth/signup", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(gw.URL+"/auth/signup", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Post(gw.URL+"/auth/login", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSwaggerServed(t *testing.T) {
	gw := servertest.Start(t)

	resp, err := http.Get(gw.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpenDatabase_TranslatesDuplicateKeys(t *testing.T) {
	cfg := &config.Config{DBDriver: config.DriverSQLite, SQLitePath: ":memory:"}
	db, err := server.OpenDatabase(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, db.Create(&model.User{Email: "ann@example.com", HashedPassword: "x"}).Error)
	err = db.Create(&model.User{Email: "ann@example.com", HashedPassword: "y"}).Error

	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
