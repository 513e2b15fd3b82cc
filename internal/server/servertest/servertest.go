// Package servertest runs a complete gateway on in-memory SQLite for tests.
package servertest

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/realtime"
	"taskboard/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type Gateway struct {
	*httptest.Server
	Hub *realtime.Hub
}

// Start serves a fresh gateway until the test ends.
func Start(t testing.TB) *Gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		DBDriver:            config.DriverSQLite,
		SQLitePath:          ":memory:",
		JWTSecret:           "test-secret",
		JWTExpiryHours:      1,
		LogLevel:            "ERROR",
		RealtimeBackend:     config.RealtimeLocal,
		RealtimePingSeconds: 25,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := server.OpenDatabase(cfg, log)
	require.NoError(t, err)

	hub := realtime.NewHub(log)
	s := server.New(db, hub, cfg, log)

	srv := httptest.NewServer(s.Engine)
	t.Cleanup(func() {
		// change streams stay open until their connection drops
		srv.CloseClientConnections()
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &Gateway{Server: srv, Hub: hub}
}
