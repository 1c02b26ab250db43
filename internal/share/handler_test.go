package share

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/pkg/database"
	"github.com/aura-capture/backend/pkg/storage"
)

type folderSettings struct{}

func (folderSettings) Get(context.Context) (models.Settings, error) {
	s := models.DefaultSettings()
	s.DestinationFolderRef = "F1"
	return s, nil
}

type testEnv struct {
	ledger *recordings.Ledger
	final  *storage.Memory
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "share.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))

	env := &testEnv{
		ledger: recordings.NewLedger(recordings.NewSQLiteStore(db), folderSettings{}, nil),
		final:  storage.NewMemory("final"),
	}
	h := NewHandler(env.ledger, env.final, PollPolicy{Interval: 2 * time.Second, MaxAttempts: 90}, nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/share/:id", h.Share)
	r.GET("/api/recordings/:id/status", h.Status)
	r.GET("/api/recordings/:id/stream", h.Stream)
	r.HEAD("/api/recordings/:id/stream", h.Stream)
	env.router = r
	return env
}

func (e *testEnv) create(t *testing.T) *models.Recording {
	t.Helper()
	rec, err := e.ledger.Create(context.Background(), recordings.CreateInput{Title: "Demo", Duration: 12})
	require.NoError(t, err)
	return rec
}

func (e *testEnv) ready(t *testing.T, payload []byte) *models.Recording {
	t.Helper()
	rec := e.create(t)
	ref := storage.FolderKey("F1", "Demo-"+rec.ID+".webm")
	e.final.PutObject(ref, "video/webm", payload)
	require.NoError(t, e.ledger.Update(context.Background(), rec.ID, recordings.Patch{
		Status:       recordings.Ptr(models.RecordingStatusReady),
		FinalFileRef: &ref,
		FileSize:     recordings.Ptr(int64(len(payload))),
	}))
	return rec
}

func (e *testEnv) do(method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestStatus_ReportsPollPolicy(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t)

	w := env.do(http.MethodGet, "/api/recordings/"+rec.ID+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.RecordingStatusProcessing, body.Data.Status)
	assert.Empty(t, body.Data.FinalFileRef)
	assert.Equal(t, int64(2000), body.Data.Poll.IntervalMS)
	assert.Equal(t, 90, body.Data.Poll.MaxAttempts)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestStatus_UnknownRecording(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/recordings/missing1/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShare_JSONCountsOneView(t *testing.T) {
	env := newTestEnv(t)
	rec := env.ready(t, []byte("video"))

	w := env.do(http.MethodGet, "/share/"+rec.ID, map[string]string{"Accept": "application/json"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data ShareResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Data.Recording.ViewCount)
	assert.Equal(t, "/api/recordings/"+rec.ID+"/stream", body.Data.StreamURL)

	got, err := env.ledger.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)
}

func TestShare_ConcurrentViews(t *testing.T) {
	env := newTestEnv(t)
	rec := env.ready(t, []byte("video"))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.do(http.MethodGet, "/share/"+rec.ID, map[string]string{"Accept": "application/json"})
		}()
	}
	wg.Wait()

	got, err := env.ledger.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ViewCount)
}

func TestShare_HTMLStates(t *testing.T) {
	env := newTestEnv(t)
	pending := env.create(t)
	ready := env.ready(t, []byte("video"))
	failed := env.create(t)
	require.NoError(t, env.ledger.Update(context.Background(), failed.ID, recordings.StatusPatch(models.RecordingStatusError)))

	w := env.do(http.MethodGet, "/share/"+pending.ID, map[string]string{"Accept": "text/html"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "still being prepared")
	assert.Contains(t, w.Body.String(), "/api/recordings/"+pending.ID+"/status")

	w = env.do(http.MethodGet, "/share/"+ready.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<video controls`)
	assert.Contains(t, w.Body.String(), "/api/recordings/"+ready.ID+"/stream")

	w = env.do(http.MethodGet, "/share/"+failed.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "failed to upload")
}

func TestShare_UnknownRecording(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/share/missing1", map[string]string{"Accept": "application/json"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStream_Full(t *testing.T) {
	env := newTestEnv(t)
	rec := env.ready(t, []byte("0123456789"))

	w := env.do(http.MethodGet, "/api/recordings/"+rec.ID+"/stream", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0123456789", w.Body.String())
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Equal(t, "10", w.Header().Get("Content-Length"))
	assert.Equal(t, "video/webm", w.Header().Get("Content-Type"))
}

func TestStream_Ranges(t *testing.T) {
	env := newTestEnv(t)
	rec := env.ready(t, []byte("0123456789"))
	path := "/api/recordings/" + rec.ID + "/stream"

	tests := []struct {
		name         string
		rangeHeader  string
		wantStatus   int
		wantBody     string
		contentRange string
	}{
		{"closed", "bytes=2-5", http.StatusPartialContent, "2345", "bytes 2-5/10"},
		{"open", "bytes=7-", http.StatusPartialContent, "789", "bytes 7-9/10"},
		{"suffix", "bytes=-3", http.StatusPartialContent, "789", "bytes 7-9/10"},
		{"end clamped", "bytes=8-100", http.StatusPartialContent, "89", "bytes 8-9/10"},
		{"multi served whole", "bytes=0-1,4-5", http.StatusOK, "0123456789", ""},
		{"past end", "bytes=10-", http.StatusRequestedRangeNotSatisfiable, "", "bytes */10"},
		{"garbage", "items=0-1", http.StatusRequestedRangeNotSatisfiable, "", "bytes */10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, path, map[string]string{"Range": tt.rangeHeader})
			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			assert.Equal(t, tt.contentRange, w.Header().Get("Content-Range"))
		})
	}
}

func TestStream_Head(t *testing.T) {
	env := newTestEnv(t)
	rec := env.ready(t, []byte("0123456789"))

	w := env.do(http.MethodHead, "/api/recordings/"+rec.ID+"/stream", map[string]string{"Range": "bytes=0-3"})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "4", w.Header().Get("Content-Length"))
	assert.Empty(t, w.Body.String())
}

func TestStream_NotYetUploaded(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t)

	w := env.do(http.MethodGet, "/api/recordings/"+rec.ID+"/stream", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/recordings/missing1/stream", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
