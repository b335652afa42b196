package repository

import (
	"context"
	"testing"
	"time"

	"crowdvote/internal/domain/campaign/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLeaderboard(t *testing.T, ttl time.Duration) (Leaderboard, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLeaderboard(rdb, ttl), mr
}

func ranking(rows ...model.Support) []model.Support {
	for i := range rows {
		rows[i].Position = i + 1
	}
	return rows
}

func TestRedisLeaderboard(t *testing.T) {
	ctx := context.Background()
	const campaignID = "c1"

	t.Run("publish then page", func(t *testing.T) {
		board, mr := setupLeaderboard(t, time.Hour)
		applied, err := board.Publish(ctx, campaignID, 110, ranking(
			model.Support{UserID: "d", CoinsSpent: 60},
			model.Support{UserID: "a", CoinsSpent: 50},
		))
		require.NoError(t, err)
		assert.True(t, applied)

		list, total, ok, err := board.Page(ctx, campaignID, 0, 10)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(2), total)
		require.Len(t, list, 2)
		assert.Equal(t, "d", list[0].UserID)
		assert.Equal(t, int64(60), list[0].CoinsSpent)
		assert.Equal(t, 1, list[0].Position)
		assert.Equal(t, "a", list[1].UserID)
		assert.Equal(t, 2, list[1].Position)

		assert.Equal(t, time.Hour, mr.TTL(rankingKey(campaignID)))
		assert.Equal(t, time.Hour, mr.TTL(coinsKey(campaignID)))
		assert.Equal(t, time.Hour, mr.TTL(versionKey(campaignID)))
	})

	t.Run("republish replaces every row", func(t *testing.T) {
		board, mr := setupLeaderboard(t, time.Hour)
		_, err := board.Publish(ctx, campaignID, 30, ranking(
			model.Support{UserID: "a", CoinsSpent: 20},
			model.Support{UserID: "b", CoinsSpent: 10},
		))
		require.NoError(t, err)

		_, err = board.Publish(ctx, campaignID, 45, ranking(
			model.Support{UserID: "b", CoinsSpent: 25},
			model.Support{UserID: "a", CoinsSpent: 20},
		))
		require.NoError(t, err)

		score, err := mr.ZScore(rankingKey(campaignID), "b")
		require.NoError(t, err)
		assert.Equal(t, float64(1), score)
		assert.Equal(t, "25", mr.HGet(coinsKey(campaignID), "b"))
	})

	t.Run("older snapshot never overwrites a newer one", func(t *testing.T) {
		board, _ := setupLeaderboard(t, time.Hour)
		applied, err := board.Publish(ctx, campaignID, 110, ranking(
			model.Support{UserID: "d", CoinsSpent: 60},
			model.Support{UserID: "a", CoinsSpent: 50},
		))
		require.NoError(t, err)
		require.True(t, applied)

		applied, err = board.Publish(ctx, campaignID, 50, ranking(model.Support{UserID: "a", CoinsSpent: 50}))
		require.NoError(t, err)
		assert.False(t, applied)

		list, total, ok, err := board.Page(ctx, campaignID, 0, 10)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, "d", list[0].UserID)
	})

	t.Run("empty cache is a miss", func(t *testing.T) {
		board, _ := setupLeaderboard(t, time.Hour)
		list, total, ok, err := board.Page(ctx, campaignID, 0, 10)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, total)
		assert.Empty(t, list)
	})

	t.Run("expired entries are a miss", func(t *testing.T) {
		board, mr := setupLeaderboard(t, time.Minute)
		_, err := board.Publish(ctx, campaignID, 5, ranking(model.Support{UserID: "a", CoinsSpent: 5}))
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		_, _, ok, err := board.Page(ctx, campaignID, 0, 10)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("page past the end", func(t *testing.T) {
		board, _ := setupLeaderboard(t, time.Hour)
		_, err := board.Publish(ctx, campaignID, 5, ranking(model.Support{UserID: "a", CoinsSpent: 5}))
		require.NoError(t, err)

		list, total, ok, err := board.Page(ctx, campaignID, 10, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), total)
		assert.Empty(t, list)
	})

	t.Run("coins hash out of step with the ranking is a miss", func(t *testing.T) {
		board, mr := setupLeaderboard(t, time.Hour)
		_, err := board.Publish(ctx, campaignID, 8, ranking(
			model.Support{UserID: "a", CoinsSpent: 5},
			model.Support{UserID: "b", CoinsSpent: 3},
		))
		require.NoError(t, err)
		mr.HDel(coinsKey(campaignID), "b")

		_, _, ok, err := board.Page(ctx, campaignID, 0, 10)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		board, mr := setupLeaderboard(t, time.Hour)
		mr.Close()

		_, err := board.Publish(ctx, campaignID, 1, ranking(model.Support{UserID: "a", CoinsSpent: 1}))
		assert.Error(t, err)
		_, _, ok, err := board.Page(ctx, campaignID, 0, 10)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}
