package coverage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"mobooking/internal/logger"
	"mobooking/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAreaLookup struct {
	mock.Mock
}

func (m *MockAreaLookup) GetServiceArea(ctx context.Context, ownerID, zip string) (*models.ServiceArea, error) {
	args := m.Called(ctx, ownerID, zip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceArea), args.Error(1)
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func newTestIndex(t *testing.T, store AreaLookup, cache Cache) *Index {
	idx, err := NewIndex(store, cache, "", logger.NewWriterLogger(io.Discard))
	require.NoError(t, err)
	return idx
}

func TestNormalize(t *testing.T) {
	idx := newTestIndex(t, new(MockAreaLookup), nil)

	zip, err := idx.Normalize(" 90210 ")
	require.NoError(t, err)
	assert.Equal(t, "90210", zip)

	zip, err = idx.Normalize("90210-1234")
	require.NoError(t, err)
	assert.Equal(t, "90210", zip)

	for _, bad := range []string{"", "9021", "902101", "ABCDE", "90210-12"} {
		_, err := idx.Normalize(bad)
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr, bad)
	}
}

func TestIsCoveredRejectsMalformedZipBeforeLookup(t *testing.T) {
	store := new(MockAreaLookup)
	idx := newTestIndex(t, store, nil)

	_, err := idx.IsCovered(context.Background(), "owner-x", "not-a-zip")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	store.AssertNotCalled(t, "GetServiceArea", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsCoveredInactiveAreaIsNotCovered(t *testing.T) {
	store := new(MockAreaLookup)
	store.On("GetServiceArea", mock.Anything, "owner-x", "90210").
		Return(&models.ServiceArea{OwnerID: "owner-x", ZipCode: "90210", Active: false}, nil)
	idx := newTestIndex(t, store, nil)

	covered, err := idx.IsCovered(context.Background(), "owner-x", "90210")
	require.NoError(t, err)
	assert.False(t, covered)
}

func TestIsCoveredMissingRowIsNotCovered(t *testing.T) {
	store := new(MockAreaLookup)
	store.On("GetServiceArea", mock.Anything, "owner-x", "10001").Return(nil, nil)
	idx := newTestIndex(t, store, nil)

	covered, err := idx.IsCovered(context.Background(), "owner-x", "10001")
	require.NoError(t, err)
	assert.False(t, covered)

	_, err = idx.Require(context.Background(), "owner-x", "10001")
	var nerr *models.NotCoveredError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "10001", nerr.ZIP)
}

func TestIsCoveredIdempotent(t *testing.T) {
	store := new(MockAreaLookup)
	store.On("GetServiceArea", mock.Anything, "owner-x", "30301").
		Return(&models.ServiceArea{OwnerID: "owner-x", ZipCode: "30301", Active: true}, nil)
	idx := newTestIndex(t, store, nil)

	first, err := idx.IsCovered(context.Background(), "owner-x", "30301")
	require.NoError(t, err)
	second, err := idx.IsCovered(context.Background(), "owner-x", "30301")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, first, second)
}

func TestIsCoveredPropagatesStorageError(t *testing.T) {
	store := new(MockAreaLookup)
	storageErr := &models.StorageError{Op: "get service area", Err: errors.New("connection refused")}
	store.On("GetServiceArea", mock.Anything, "owner-x", "30301").Return(nil, storageErr)
	idx := newTestIndex(t, store, nil)

	_, err := idx.IsCovered(context.Background(), "owner-x", "30301")
	assert.Same(t, storageErr, err)
}

func TestIsCoveredUsesCache(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisCache(client, time.Minute)

	store := new(MockAreaLookup)
	store.On("GetServiceArea", mock.Anything, "owner-x", "73301").
		Return(&models.ServiceArea{OwnerID: "owner-x", ZipCode: "73301", Active: true}, nil).Once()
	idx := newTestIndex(t, store, cache)
	ctx := context.Background()

	covered, err := idx.IsCovered(ctx, "owner-x", "73301")
	require.NoError(t, err)
	assert.True(t, covered)

	// Served from Redis; the mock allows a single store call.
	covered, err = idx.IsCovered(ctx, "owner-x", "73301-0001")
	require.NoError(t, err)
	assert.True(t, covered)
	store.AssertNumberOfCalls(t, "GetServiceArea", 1)

	// After invalidation the store is consulted again.
	idx.Invalidate(ctx, "owner-x")
	store.On("GetServiceArea", mock.Anything, "owner-x", "73301").
		Return(&models.ServiceArea{OwnerID: "owner-x", ZipCode: "73301", Active: false}, nil).Once()
	covered, err = idx.IsCovered(ctx, "owner-x", "73301")
	require.NoError(t, err)
	assert.False(t, covered)
	store.AssertNumberOfCalls(t, "GetServiceArea", 2)
}

func TestIsCoveredFallsBackWhenCacheDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client, time.Minute)
	mr.Close()

	store := new(MockAreaLookup)
	store.On("GetServiceArea", mock.Anything, "owner-x", "60601").
		Return(&models.ServiceArea{OwnerID: "owner-x", ZipCode: "60601", Active: true}, nil)
	idx := newTestIndex(t, store, cache)

	covered, err := idx.IsCovered(context.Background(), "owner-x", "60601")
	require.NoError(t, err)
	assert.True(t, covered)
}

func TestRedisCacheExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "owner-y", 0, "94105", false))
	covered, found, err := cache.Get(ctx, "owner-y", 0, "94105")
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, covered)

	mr.FastForward(2 * time.Minute)
	_, found, err = cache.Get(ctx, "owner-y", 0, "94105")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheEntriesExpireIndependently(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "owner-y", 0, "94105", true))
	mr.FastForward(45 * time.Second)
	// Writing another ZIP must not extend the first entry's lifetime.
	require.NoError(t, cache.Set(ctx, "owner-y", 0, "94110", true))
	mr.FastForward(30 * time.Second)

	_, found, err := cache.Get(ctx, "owner-y", 0, "94105")
	require.NoError(t, err)
	assert.False(t, found)
	covered, found, err := cache.Get(ctx, "owner-y", 0, "94110")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, covered)
}

func TestRedisCacheSetIgnoresStaleGeneration(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	gen, err := cache.Generation(ctx, "owner-y")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	require.NoError(t, cache.Invalidate(ctx, "owner-y"))
	require.NoError(t, cache.Set(ctx, "owner-y", gen, "94105", false))
	_, found, err := cache.Get(ctx, "owner-y", gen, "94105")
	require.NoError(t, err)
	assert.False(t, found)

	current, err := cache.Generation(ctx, "owner-y")
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
	_, found, err = cache.Get(ctx, "owner-y", current, "94105")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsCoveredDoesNotCacheVerdictRacingInvalidate(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	store := new(MockAreaLookup)
	idx := newTestIndex(t, store, cache)

	// The area is activated while the first lookup is still reading the old row.
	store.On("GetServiceArea", mock.Anything, "owner-x", "30301").
		Return(&models.ServiceArea{OwnerID: "owner-x", ZipCode: "30301", Active: false}, nil).
		Run(func(mock.Arguments) { idx.Invalidate(ctx, "owner-x") }).
		Once()
	covered, err := idx.IsCovered(ctx, "owner-x", "30301")
	require.NoError(t, err)
	assert.False(t, covered)

	store.On("GetServiceArea", mock.Anything, "owner-x", "30301").
		Return(&models.ServiceArea{OwnerID: "owner-x", ZipCode: "30301", Active: true}, nil).Once()
	covered, err = idx.IsCovered(ctx, "owner-x", "30301")
	require.NoError(t, err)
	assert.True(t, covered)
	store.AssertNumberOfCalls(t, "GetServiceArea", 2)

	// The fresh verdict is cached under the new generation.
	covered, err = idx.IsCovered(ctx, "owner-x", "30301")
	require.NoError(t, err)
	assert.True(t, covered)
	store.AssertNumberOfCalls(t, "GetServiceArea", 2)
}

func TestNewIndexRejectsBadPattern(t *testing.T) {
	_, err := NewIndex(new(MockAreaLookup), nil, "([", nil)
	assert.Error(t, err)
}
