package storage_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
	"github.com/wurt83ow/poskeeper-client/pkg/storage"
)

func TestPutAndGet(t *testing.T) {
	cache := storage.NewCache[models.Product]()

	_, ok := cache.Get("p1")
	assert.False(t, ok)

	cache.Put(models.Product{ID: "p1", TenantID: "tenant-1", Name: "latte"})
	got, ok := cache.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "latte", got.Name)
}

func TestSubscribeSeesInsertUpdateDelete(t *testing.T) {
	cache := storage.NewCache[models.Product]()

	var events []storage.Event[models.Product]
	cache.Subscribe(func(e storage.Event[models.Product]) {
		events = append(events, e)
	})

	cache.Put(models.Product{ID: "p1", TenantID: "tenant-1", Name: "latte"})
	cache.Put(models.Product{ID: "p1", TenantID: "tenant-1", Name: "flat white"})
	cache.Remove("p1")

	require.Len(t, events, 3)
	assert.Equal(t, models.OpInsert, events[0].Op)
	assert.Equal(t, models.OpUpdate, events[1].Op)
	assert.Equal(t, "flat white", events[1].Entity.Name)
	assert.Equal(t, models.OpDelete, events[2].Op)
	assert.Equal(t, "p1", events[2].ID)
}

func TestRemoveMissingIsSilent(t *testing.T) {
	cache := storage.NewCache[models.Product]()

	fired := false
	cache.Subscribe(func(storage.Event[models.Product]) { fired = true })

	cache.Remove("ghost")
	assert.False(t, fired)
}

func TestConcurrentPuts(t *testing.T) {
	cache := storage.NewCache[models.Product]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Put(models.Product{ID: "p1", TenantID: "tenant-1"})
				cache.Get("p1")
			}
		}()
	}
	wg.Wait()

	_, ok := cache.Get("p1")
	assert.True(t, ok)
}
