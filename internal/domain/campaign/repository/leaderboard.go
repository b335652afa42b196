package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"crowdvote/internal/domain/campaign/model"

	"github.com/redis/go-redis/v9"
)

// Leaderboard 排行榜缓存。ok=false 表示缓存未命中，调用方应回源数据库
type Leaderboard interface {
	// Publish 以 version 写入一次完整排名，version 低于缓存中已有版本时不写入并返回 false
	Publish(ctx context.Context, campaignID string, version int64, ranked []model.Support) (bool, error)
	Page(ctx context.Context, campaignID string, offset, limit int) (supports []model.Support, total int64, ok bool, err error)
}

// redisLeaderboard 名次存 ZSET（score = position），金币存 HASH，版本号单独存一个 key。
// 折扣由调用方按名次计算
type redisLeaderboard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLeaderboard(rdb *redis.Client, ttl time.Duration) Leaderboard {
	return &redisLeaderboard{rdb: rdb, ttl: ttl}
}

func rankingKey(campaignID string) string {
	return fmt.Sprintf("campaign:%s:ranking", campaignID)
}

func coinsKey(campaignID string) string {
	return fmt.Sprintf("campaign:%s:coins", campaignID)
}

func versionKey(campaignID string) string {
	return fmt.Sprintf("campaign:%s:ranking_version", campaignID)
}

// publishScript KEYS: ranking, coins, version
// ARGV: version, ttl(ms), 然后每个助力者三项 user_id, position, coins
var publishScript = redis.NewScript(`
local current = redis.call('GET', KEYS[3])
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1], KEYS[2])
for i = 3, #ARGV, 3 do
	redis.call('ZADD', KEYS[1], ARGV[i + 1], ARGV[i])
	redis.call('HSET', KEYS[2], ARGV[i], ARGV[i + 2])
end
redis.call('SET', KEYS[3], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	for k = 1, 3 do
		redis.call('PEXPIRE', KEYS[k], ttl)
	end
end
return 1
`)

// Publish 整体替换某个活动的排行榜。
// 活动的金币总数只增不减，以它作为版本号，并发重排时较旧的快照不会覆盖较新的
func (l *redisLeaderboard) Publish(ctx context.Context, campaignID string, version int64, ranked []model.Support) (bool, error) {
	args := make([]interface{}, 0, 2+3*len(ranked))
	args = append(args, version, l.ttl.Milliseconds())
	for _, s := range ranked {
		args = append(args, s.UserID, s.Position, s.CoinsSpent)
	}

	keys := []string{rankingKey(campaignID), coinsKey(campaignID), versionKey(campaignID)}
	applied, err := publishScript.Run(ctx, l.rdb, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return applied == 1, nil
}

func (l *redisLeaderboard) Page(ctx context.Context, campaignID string, offset, limit int) ([]model.Support, int64, bool, error) {
	rKey, cKey := rankingKey(campaignID), coinsKey(campaignID)

	pipe := l.rdb.Pipeline()
	totalCmd := pipe.ZCard(ctx, rKey)
	rangeCmd := pipe.ZRangeWithScores(ctx, rKey, int64(offset), int64(offset+limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, 0, false, err
	}

	total := totalCmd.Val()
	if total == 0 {
		return nil, 0, false, nil
	}

	entries := rangeCmd.Val()
	if len(entries) == 0 {
		return []model.Support{}, total, true, nil
	}

	userIDs := make([]string, 0, len(entries))
	for _, z := range entries {
		userIDs = append(userIDs, z.Member.(string))
	}
	coins, err := l.rdb.HMGet(ctx, cKey, userIDs...).Result()
	if err != nil {
		return nil, 0, false, err
	}

	supports := make([]model.Support, 0, len(entries))
	for i, z := range entries {
		raw, ok := coins[i].(string)
		if !ok {
			// 两个 key 不一致，视为未命中
			return nil, 0, false, nil
		}
		spent, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, false, nil
		}
		supports = append(supports, model.Support{
			CampaignID: campaignID,
			UserID:     userIDs[i],
			CoinsSpent: spent,
			Position:   int(z.Score),
		})
	}
	return supports, total, true, nil
}
