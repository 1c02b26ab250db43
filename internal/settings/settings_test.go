package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/pkg/database"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "settings.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))
	return NewSQLiteStore(db)
}

func newTestRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(store, nil)
	r.GET("/api/settings", h.Get)
	r.PUT("/api/settings", h.Update)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    models.Settings `json:"data"`
	Error   string          `json:"error"`
}

func TestSQLiteStore_DefaultsWhenUnset(t *testing.T) {
	store := newTestStore(t)
	s, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), s)
}

func TestSQLiteStore_PutReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := models.DefaultSettings()
	s.DestinationFolderRef = "F1"
	require.NoError(t, store.Put(ctx, s))
	s.DestinationFolderRef = "F2"
	s.DefaultWebcamEnabled = true
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "F2", got.DestinationFolderRef)
	assert.True(t, got.DefaultWebcamEnabled)
	assert.True(t, got.DefaultMicEnabled)
}

func TestHandler_PartialUpdate(t *testing.T) {
	store := newTestStore(t)
	r := newTestRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"destination_folder_ref":" F1 "}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"default_quality":"720p","default_mic_enabled":false}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "F1", body.Data.DestinationFolderRef)
	assert.Equal(t, models.QualityLow, body.Data.DefaultQuality)
	assert.False(t, body.Data.DefaultMicEnabled)
}

func TestHandler_RejectsUnknownQuality(t *testing.T) {
	r := newTestRouter(newTestStore(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"default_quality":"4k"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
