package templates_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/promptplane/internal/objectstore"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/internal/templates"
)

func newStore(t *testing.T) (*templates.Store, *objectstore.FS) {
	t.Helper()
	objects := objectstore.NewMemFS()
	s, err := templates.NewStore(objects, 8)
	require.NoError(t, err)
	return s, objects
}

func touch(t *testing.T, objects *objectstore.FS, key string, at time.Time) {
	t.Helper()
	require.NoError(t, objects.Filesystem().Chtimes("/"+key, at, at))
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the saved body for a pinned version", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "Hello {user_name}"))
		got, err := s.Get(ctx, "coaching", "v1")
		require.NoError(t, err)
		assert.Equal(t, "Hello {user_name}", got.Body)
		assert.Equal(t, "v1", got.Version)
	})

	t.Run("Should never overwrite an existing version", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "one"))
		err := s.Save(ctx, "coaching", "v1", "two")
		assert.ErrorIs(t, err, templates.ErrVersionExists)
		var exists *store.ErrAlreadyExists
		assert.True(t, errors.As(err, &exists))

		got, err := s.Get(ctx, "coaching", "v1")
		require.NoError(t, err)
		assert.Equal(t, "one", got.Body)
	})

	t.Run("Should reject reserved and malformed names", func(t *testing.T) {
		s, _ := newStore(t)
		for _, v := range []string{"", "latest", "_latest", "a/b", ".hidden"} {
			assert.ErrorIs(t, s.Save(ctx, "coaching", v, "x"), templates.ErrInvalidName, v)
		}
		assert.ErrorIs(t, s.Save(ctx, "a/b", "v1", "x"), templates.ErrInvalidName)
	})

	t.Run("Should report missing versions as not found", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Get(ctx, "coaching", "v9")
		assert.ErrorIs(t, err, templates.ErrVersionNotFound)
		var nf *store.ErrNotFound
		assert.True(t, errors.As(err, &nf))

		_, err = s.Get(ctx, "empty-topic", "latest")
		assert.ErrorIs(t, err, templates.ErrVersionNotFound)
	})
}

func TestStore_ConcurrentSaveAndGet(t *testing.T) {
	ctx := context.Background()
	objects, err := objectstore.NewOSFS(t.TempDir())
	require.NoError(t, err)
	s, err := templates.NewStore(objects, 8)
	require.NoError(t, err)

	body := strings.Repeat("{user_name} reflects on the week. ", 1<<19)

	var (
		wg       sync.WaitGroup
		observed = make(chan int, 2)
		done     = make(chan struct{})
	)
	for _, version := range []string{"v1", "latest"} {
		wg.Add(1)
		go func(version string) {
			defer wg.Done()
			for {
				got, err := s.Get(ctx, "weekly", version)
				if err == nil {
					observed <- len(got.Body)
					return
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}(version)
	}

	require.NoError(t, s.Save(ctx, "weekly", "v1", body))
	close(done)
	wg.Wait()
	close(observed)

	for n := range observed {
		assert.Equal(t, len(body), n, "readers must never see a partial version")
	}
	got, err := s.Get(ctx, "weekly", "v1")
	require.NoError(t, err)
	assert.Equal(t, len(body), len(got.Body))
}

func TestStore_Latest(t *testing.T) {
	ctx := context.Background()

	t.Run("Should keep a pinned latest after newer versions are saved", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "one"))
		require.NoError(t, s.Save(ctx, "coaching", "v2", "two"))
		require.NoError(t, s.SetLatest(ctx, "coaching", "v2"))
		require.NoError(t, s.Save(ctx, "coaching", "v3", "three"))

		latest, err := s.Get(ctx, "coaching", "latest")
		require.NoError(t, err)
		pinned, err := s.Get(ctx, "coaching", "v2")
		require.NoError(t, err)
		assert.Equal(t, pinned.Body, latest.Body)
		assert.Equal(t, "v2", latest.Version)
	})

	t.Run("Should fall back to the most recently modified version", func(t *testing.T) {
		s, objects := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "one"))
		require.NoError(t, s.Save(ctx, "coaching", "v2", "two"))
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		touch(t, objects, "coaching/v1", base.Add(time.Hour))
		touch(t, objects, "coaching/v2", base)

		got, err := s.Get(ctx, "coaching", "")
		require.NoError(t, err)
		assert.Equal(t, "v1", got.Version)
	})

	t.Run("Should refuse to pin a missing version", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "one"))
		assert.ErrorIs(t, s.SetLatest(ctx, "coaching", "v2"), templates.ErrVersionNotFound)
		v, err := s.Latest(ctx, "coaching")
		require.NoError(t, err)
		assert.Equal(t, "v1", v)
	})

	t.Run("Should list versions newest first and flag latest", func(t *testing.T) {
		s, objects := newStore(t)
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, v := range []string{"v1", "v2", "v3"} {
			require.NoError(t, s.Save(ctx, "coaching", v, v))
			touch(t, objects, "coaching/"+v, base.Add(time.Duration(i)*time.Minute))
		}
		require.NoError(t, s.SetLatest(ctx, "coaching", "v2"))

		versions, err := s.ListVersions(ctx, "coaching")
		require.NoError(t, err)
		require.Len(t, versions, 3)
		assert.Equal(t, "v3", versions[0].Version)
		assert.Equal(t, "v1", versions[2].Version)
		assert.False(t, versions[0].IsLatest)
		assert.True(t, versions[1].IsLatest)
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Should refuse to delete the pinned latest without mutating storage", func(t *testing.T) {
		s, objects := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "one"))
		require.NoError(t, s.Save(ctx, "coaching", "v2", "two"))
		require.NoError(t, s.SetLatest(ctx, "coaching", "v1"))

		before, err := objects.List(ctx, "coaching/")
		require.NoError(t, err)
		assert.ErrorIs(t, s.Delete(ctx, "coaching", "v1"), templates.ErrLatestDeletion)
		after, err := objects.List(ctx, "coaching/")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("Should refuse to delete the fallback latest", func(t *testing.T) {
		s, objects := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "one"))
		require.NoError(t, s.Save(ctx, "coaching", "v2", "two"))
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		touch(t, objects, "coaching/v1", base)
		touch(t, objects, "coaching/v2", base.Add(time.Hour))
		assert.ErrorIs(t, s.Delete(ctx, "coaching", "v2"), templates.ErrLatestDeletion)
	})

	t.Run("Should delete other versions and evict cached bodies", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "one"))
		require.NoError(t, s.Save(ctx, "coaching", "v2", "two"))
		require.NoError(t, s.SetLatest(ctx, "coaching", "v2"))

		_, err := s.Get(ctx, "coaching", "v1") // warm the cache
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "coaching", "v1"))
		_, err = s.Get(ctx, "coaching", "v1")
		assert.ErrorIs(t, err, templates.ErrVersionNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "coaching", "v1"), templates.ErrVersionNotFound)
	})
}

func TestStore_CreateVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("Should copy the source body under a new version", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "body"))
		created, err := s.CreateVersion(ctx, "coaching", "latest", "v2")
		require.NoError(t, err)
		assert.Equal(t, "body", created.Body)

		got, err := s.Get(ctx, "coaching", "v2")
		require.NoError(t, err)
		assert.Equal(t, "body", got.Body)
	})

	t.Run("Should fail when the target exists", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Save(ctx, "coaching", "v1", "body"))
		_, err := s.CreateVersion(ctx, "coaching", "v1", "v1")
		assert.ErrorIs(t, err, templates.ErrVersionExists)
	})
}
