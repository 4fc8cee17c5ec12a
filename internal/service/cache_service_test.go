package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-core/internal/models"
	appErrors "github.com/noah-isme/academic-core/pkg/errors"
)

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memoryCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)

	summary := models.AcademicSummary{StudentID: "stu-1", CGPA: 3.25}
	require.NoError(t, cache.Set(context.Background(), CGPACacheKey("stu-1"), summary, 0))

	var got models.AcademicSummary
	hit, err := cache.Get(context.Background(), CGPACacheKey("stu-1"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3.25, got.CGPA)
}

func TestCacheServiceDisabledNeverHits(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, false)
	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	assert.False(t, repo.has("k"))

	var dest int
	hit, err := cache.Get(context.Background(), "k", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceGetErrorIsReported(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	var dest int
	hit, err := cache.Get(context.Background(), "k", &dest)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceInvalidateStudent(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, CGPACacheKey("stu-1"), 1, 0))
	require.NoError(t, cache.Set(ctx, ScheduleCacheKey("stu-1", models.SemesterFall, 2024), 1, 0))
	require.NoError(t, cache.Set(ctx, ScheduleCacheKey("stu-2", models.SemesterFall, 2024), 1, 0))

	cache.InvalidateStudent(ctx, "stu-1")

	assert.False(t, repo.has(CGPACacheKey("stu-1")))
	assert.False(t, repo.has(ScheduleCacheKey("stu-1", models.SemesterFall, 2024)))
	assert.True(t, repo.has(ScheduleCacheKey("stu-2", models.SemesterFall, 2024)))
}
