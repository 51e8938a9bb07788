package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/docmesh/core"
)

var _ core.ObjectStore = (*Memory)(nil)

type object struct {
	data []byte
	info core.ObjectInfo
}

// Memory is an in-process ObjectStore. Buckets must be created with
// EnsureBucket before use, mirroring a real object store. Data is copied on
// Put and Get.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object // bucket -> key -> object
	now     func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[string]map[string]object),
		now:     time.Now,
	}
}

// EnsureBucket creates bucket if it does not exist.
func (m *Memory) EnsureBucket(_ context.Context, bucket string) error {
	if bucket == "" {
		return fmt.Errorf("bucket name is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]object)
	}

	return nil
}

// Put stores (or overwrites) key in bucket.
func (m *Memory) Put(_ context.Context, bucket, key string, data []byte, contentType string) (core.ObjectInfo, error) {
	if key == "" {
		return core.ObjectInfo{}, fmt.Errorf("object name is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		return core.ObjectInfo{}, fmt.Errorf("bucket %s: %w", bucket, core.ErrNotFound)
	}

	sum := md5.Sum(data)
	cp := make([]byte, len(data))
	copy(cp, data)

	info := core.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  contentType,
		LastModified: m.now().UTC(),
	}
	objects[key] = object{data: cp, info: info}

	return info, nil
}

// Get returns a copy of the object bytes.
func (m *Memory) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", bucket, core.ErrNotFound)
	}

	obj, ok := objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
	}

	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)

	return cp, nil
}

// List returns the objects of bucket sorted by key.
func (m *Memory) List(_ context.Context, bucket string) ([]core.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", bucket, core.ErrNotFound)
	}

	infos := make([]core.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		infos = append(infos, obj.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	return infos, nil
}

// Remove deletes key from bucket.
func (m *Memory) Remove(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s: %w", bucket, core.ErrNotFound)
	}
	if _, ok := objects[key]; !ok {
		return fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
	}

	delete(objects, key)

	return nil
}
