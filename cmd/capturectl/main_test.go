package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/internal/settings"
	"github.com/aura-capture/backend/internal/share"
	"github.com/aura-capture/backend/internal/transfer"
	"github.com/aura-capture/backend/pkg/database"
	"github.com/aura-capture/backend/pkg/storage"
)

type cliTestEnv struct {
	srv   *httptest.Server
	final *storage.Memory
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "cli.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))

	st := settings.NewSQLiteStore(db)
	ledger := recordings.NewLedger(recordings.NewSQLiteStore(db), st, nil)
	final := storage.NewMemory("final")
	engine := transfer.NewEngine(ledger, st, storage.NewMemory("holding"), final, transfer.Config{}, nil)
	th := transfer.NewHandler(engine, 0, nil)
	sh := share.NewHandler(ledger, final, share.PollPolicy{Interval: time.Millisecond, MaxAttempts: 3}, nil)
	seth := settings.NewHandler(st, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/settings", seth.Get)
	r.PUT("/api/settings", seth.Update)
	r.POST("/api/recordings", th.Create)
	r.POST("/api/recordings/:id/upload", th.Upload)
	r.GET("/api/recordings/:id/status", sh.Status)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &cliTestEnv{srv: srv, final: final}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommandWith(env.srv.Client())
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--server", env.srv.URL}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCLI_SettingsAndDirectUpload(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Destination folder: (not set)")

	file := filepath.Join(t.TempDir(), "standup.webm")
	require.NoError(t, os.WriteFile(file, []byte("webm-bytes"), 0o644))

	_, err = runCLI(t, env, "upload", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	out, err = runCLI(t, env, "settings", "set-folder", "F1")
	require.NoError(t, err)
	assert.Contains(t, out, "Destination folder: F1")

	out, err = runCLI(t, env, "upload", "--title", "Daily Standup", "--content-type", "video/webm", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Share link: "+env.srv.URL+"/share/")
	assert.Contains(t, out, "Transferred 10 bytes to F1/Daily_Standup-")
	assert.Contains(t, out, "Status: ready")
	assert.Equal(t, 1, env.final.Len())

	id := between(out, "Recording ", " created")
	require.NotEmpty(t, id)
	out, err = runCLI(t, env, "status", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: ready")
	assert.Contains(t, out, "File: F1/Daily_Standup-"+id+".webm")
}

func TestCLI_UploadRejectsUnknownPath(t *testing.T) {
	env := setupCLITestEnv(t)
	file := filepath.Join(t.TempDir(), "a.webm")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := runCLI(t, env, "upload", "--path", "ftp", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--path")
}

func TestCLI_StatusUnknownRecording(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := runCLI(t, env, "status", "missing1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return ""
	}
	return s[:j]
}
