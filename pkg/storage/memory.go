package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Memory is an in-process bucket for local development and tests. It can play either role.
type Memory struct {
	name    string
	mu      sync.RWMutex
	objects map[string]memoryObject
	public  map[string]bool
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemory creates an empty in-memory bucket.
func NewMemory(name string) *Memory {
	return &Memory{name: name, objects: make(map[string]memoryObject), public: make(map[string]bool)}
}

// SignedWriteURL returns a pseudo URL; uploads go through PutObject.
func (m *Memory) SignedWriteURL(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	q := url.Values{}
	q.Set("content_type", contentType)
	q.Set("expires", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	return fmt.Sprintf("memory://%s/%s?%s", m.name, key, q.Encode()), nil
}

// PutObject stores data at key, as a client upload through a signed URL would.
func (m *Memory) PutObject(key, contentType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
}

// Open returns the whole object.
func (m *Memory) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return m.OpenRange(ctx, key, Full)
}

// Put reads body fully and stores it at folder/name.
func (m *Memory) Put(ctx context.Context, body io.Reader, name, contentType, folder string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := FolderKey(folder, name)
	m.PutObject(key, contentType, data)
	return key, nil
}

// SetPubliclyReadable marks key as public.
func (m *Memory) SetPubliclyReadable(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	m.public[key] = true
	return nil
}

// IsPublic reports whether SetPubliclyReadable was called for key.
func (m *Memory) IsPublic(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.public[key]
}

// Stat returns object metadata.
func (m *Memory) Stat(_ context.Context, key string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, ErrNotFound
	}
	return ObjectInfo{Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

// OpenRange returns the bytes in r.
func (m *Memory) OpenRange(_ context.Context, key string, r ByteRange) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	size := int64(len(obj.data))
	start, end := r.Start, r.End
	if end < 0 || end >= size {
		end = size - 1
	}
	if start > end {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return io.NopCloser(bytes.NewReader(obj.data[start : end+1])), nil
}

// Delete removes key. Deleting a missing key succeeds.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.public, key)
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
