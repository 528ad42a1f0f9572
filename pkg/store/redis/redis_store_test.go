package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/causalmr/pkg/store"
	"github.com/rmax-ai/causalmr/pkg/store/storetest"
)

func newMiniredisStore(t *testing.T) (*ResultStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewResultStore(client)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisResultStore(t *testing.T) {
	storetest.RunResultStoreTests(t, func(t *testing.T) store.ResultStore {
		s, _ := newMiniredisStore(t)
		return s
	})
}

func TestRedisResultStore_Keys(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)

	require.NoError(t, s.SaveJob(ctx, storetest.Baseline("c1")))
	assert.True(t, mr.Exists("causalmr:job:c1:baseline"))

	members, err := mr.SMembers("causalmr:campaigns")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, members)

	require.NoError(t, s.Clear(ctx))
	assert.False(t, mr.Exists("causalmr:job:c1:baseline"))
	assert.False(t, mr.Exists("causalmr:campaigns"))
}

func TestRedisResultStore_CampaignNamesWithSeparator(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)

	// Unescaped, "a:job" + "x" and "a" + "job:x" would share a key.
	first := storetest.Baseline("a:job")
	first.JobID = "x"
	second := storetest.Baseline("a")
	second.JobID = "job:x"
	require.NoError(t, s.SaveJob(ctx, first))
	require.NoError(t, s.SaveJob(ctx, second))
	assert.True(t, mr.Exists("causalmr:job:a%3Ajob:x"))

	got, err := s.GetJob(ctx, "a:job", "x")
	require.NoError(t, err)
	assert.Equal(t, "a:job", got.Campaign)
	got, err = s.GetJob(ctx, "a", "job:x")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Campaign)

	require.NoError(t, s.DeleteCampaign(ctx, "a:job"))
	_, err = s.GetJob(ctx, "a", "job:x")
	assert.NoError(t, err)
	members, err := mr.SMembers("causalmr:campaigns")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)
}
