// Package client talks to the recording share API: create a recording, upload it on either path,
// and poll its status with the server's poll ceiling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aura-capture/backend/internal/models"
)

var (
	// ErrPollTimeout is returned when a recording is still not terminal after the poll ceiling.
	ErrPollTimeout = errors.New("recording did not finish within the poll ceiling")
	// ErrRecordingFailed is returned when the recording ends in the error status.
	ErrRecordingFailed = errors.New("recording upload failed")
)

// Defaults applied when the server sends no poll policy.
const (
	DefaultPollInterval    = 3 * time.Second
	DefaultPollMaxAttempts = 200
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx reply from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// StatusCodeOf returns the HTTP status of an *APIError in err's chain, or 0.
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Created is the reply to CreateRecording.
type Created struct {
	Recording *models.Recording `json:"recording"`
	SharePath string            `json:"share_path"`
	ShareURL  string            `json:"share_url,omitempty"`
}

// Transferred is the reply to a direct upload or a transfer trigger.
type Transferred struct {
	RecordingID  string                 `json:"recording_id"`
	Status       models.RecordingStatus `json:"status"`
	FinalFileRef string                 `json:"final_file_ref"`
	FileSize     int64                  `json:"file_size"`
}

// UploadURL is a signed write URL into the holding area.
type UploadURL struct {
	URL         string    `json:"upload_url"`
	HoldingPath string    `json:"holding_path"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Poll is the interval and ceiling the server asks clients to apply.
type Poll struct {
	IntervalMS  int64 `json:"interval_ms"`
	MaxAttempts int   `json:"max_attempts"`
}

// Status is the reply to a status check.
type Status struct {
	models.StatusView
	Poll Poll `json:"poll"`
}

// SettingsUpdate is a partial settings change; nil fields are left alone.
type SettingsUpdate struct {
	DestinationFolderRef *string `json:"destination_folder_ref,omitempty"`
	DefaultQuality       *string `json:"default_quality,omitempty"`
	DefaultMicEnabled    *bool   `json:"default_mic_enabled,omitempty"`
	DefaultWebcamEnabled *bool   `json:"default_webcam_enabled,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client is an API client bound to one server.
type Client struct {
	baseURL string
	http    HTTPDoer
	sleep   func(ctx context.Context, d time.Duration) error
}

// New returns a client for baseURL. A nil doer uses http.DefaultClient.
func New(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    doer,
		sleep:   sleepContext,
	}
}

// ShareURL returns the absolute share link of a created recording. The server's public origin wins
// over the client's base URL when it is configured.
func (c *Client) ShareURL(created *Created) string {
	if created.ShareURL != "" {
		return created.ShareURL
	}
	return c.baseURL + created.SharePath
}

// CreateRecording registers a new recording and returns its share path.
func (c *Client) CreateRecording(ctx context.Context, title string, duration float64) (*Created, error) {
	body, err := json.Marshal(map[string]any{"title": title, "duration": duration})
	if err != nil {
		return nil, err
	}
	var out Created
	if err := c.call(ctx, http.MethodPost, "/api/recordings", bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return &out, nil
}

// UploadDirect streams the payload through the server to the final store.
func (c *Client) UploadDirect(ctx context.Context, id string, body io.Reader, contentType string) (*Transferred, error) {
	var out Transferred
	if err := c.call(ctx, http.MethodPost, "/api/recordings/"+id+"/upload", body, contentType, &out); err != nil {
		return nil, fmt.Errorf("upload recording %s: %w", id, err)
	}
	return &out, nil
}

// RequestUploadURL asks for a signed holding-area URL.
func (c *Client) RequestUploadURL(ctx context.Context, id, contentType string) (*UploadURL, error) {
	body, err := json.Marshal(map[string]string{"content_type": contentType})
	if err != nil {
		return nil, err
	}
	var out UploadURL
	if err := c.call(ctx, http.MethodPost, "/api/recordings/"+id+"/upload-url", bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, fmt.Errorf("request upload url for %s: %w", id, err)
	}
	return &out, nil
}

// PutHolding uploads the payload to a signed URL. size < 0 sends a chunked body.
func (c *Client) PutHolding(ctx context.Context, u *UploadURL, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.URL, body)
	if err != nil {
		return fmt.Errorf("build holding upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", u.ContentType)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload to holding area: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return nil
}

// Trigger asks the server to forward the holding object to the final store.
func (c *Client) Trigger(ctx context.Context, id string) (*Transferred, error) {
	var out Transferred
	if err := c.call(ctx, http.MethodPost, "/api/recordings/"+id+"/transfer", nil, "", &out); err != nil {
		return nil, fmt.Errorf("trigger transfer for %s: %w", id, err)
	}
	return &out, nil
}

// Status checks a recording once.
func (c *Client) Status(ctx context.Context, id string) (*Status, error) {
	var out Status
	if err := c.call(ctx, http.MethodGet, "/api/recordings/"+id+"/status", nil, "", &out); err != nil {
		return nil, fmt.Errorf("status of %s: %w", id, err)
	}
	return &out, nil
}

// WaitForTerminal polls until the recording is ready or error, using the poll policy the server
// returns. A recording still pending after the ceiling yields ErrPollTimeout; an error status
// yields ErrRecordingFailed with the last status.
func (c *Client) WaitForTerminal(ctx context.Context, id string) (*Status, error) {
	for attempt := 1; ; attempt++ {
		st, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		switch st.Status {
		case models.RecordingStatusReady:
			return st, nil
		case models.RecordingStatusError:
			return st, ErrRecordingFailed
		}

		interval, maxAttempts := st.Poll.policy()
		if attempt >= maxAttempts {
			return st, ErrPollTimeout
		}
		if err := c.sleep(ctx, interval); err != nil {
			return st, err
		}
	}
}

// Settings returns the global settings.
func (c *Client) Settings(ctx context.Context) (*models.Settings, error) {
	var out models.Settings
	if err := c.call(ctx, http.MethodGet, "/api/settings", nil, "", &out); err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &out, nil
}

// UpdateSettings applies a partial settings change.
func (c *Client) UpdateSettings(ctx context.Context, in SettingsUpdate) (*models.Settings, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out models.Settings
	if err := c.call(ctx, http.MethodPut, "/api/settings", bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return &out, nil
}

func (p Poll) policy() (time.Duration, int) {
	interval := time.Duration(p.IntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	return interval, maxAttempts
}

func (c *Client) call(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
