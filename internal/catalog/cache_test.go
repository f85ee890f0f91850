package catalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightlab/exchange/internal/logging"
)

func setupCache(t *testing.T) (*CachedRepository, *MemoryRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	mem := NewMemoryRepository()
	mem.PutCountry(Country{ID: 1, Name: "Ukraine", IsActive: true})
	mem.PutBank(Bank{ID: 10, CountryID: 1, DisplayName: "Mono", RequisitesText: "4441 1111 2222 3333", IsActive: true})

	return NewCachedRepository(mem, client, time.Minute, logging.Discard()), mem, mr
}

func TestCachedRepositoryServesFromCache(t *testing.T) {
	repo, mem, mr := setupCache(t)
	ctx := context.Background()

	bank, err := repo.GetBank(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Mono", bank.DisplayName)
	assert.True(t, mr.Exists(cachePrefix+"bank:10"))

	mem.PutBank(Bank{ID: 10, CountryID: 1, DisplayName: "Changed", IsActive: true})
	cached, err := repo.GetBank(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Mono", cached.DisplayName, "second read is served from redis")

	require.NoError(t, repo.Invalidate(ctx, 10, 1))
	fresh, err := repo.GetBank(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Changed", fresh.DisplayName)
}

func TestCachedRepositoryExpiresEntries(t *testing.T) {
	repo, _, mr := setupCache(t)

	_, err := repo.GetCountry(context.Background(), 1)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(cachePrefix+"country:1"))
}

func TestCachedRepositoryMissesAreNotCached(t *testing.T) {
	repo, _, mr := setupCache(t)

	_, err := repo.GetBank(context.Background(), 99)
	assert.ErrorIs(t, err, ErrBankNotFound)
	assert.False(t, mr.Exists(cachePrefix+"bank:99"))
}

func TestCachedRepositoryIgnoresCorruptEntries(t *testing.T) {
	repo, _, mr := setupCache(t)
	require.NoError(t, mr.Set(cachePrefix+"bank:10", "{not json"))

	bank, err := repo.GetBank(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Mono", bank.DisplayName)
}
