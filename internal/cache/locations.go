// Package cache keeps the latest location report per recipient in Redis.
// A nil client turns every call into a miss, so Redis stays optional.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/shahdkhalaf/graduation-project/internal/model"
)

type entry struct {
	ID         int64   `json:"id"`
	FromUserID int64   `json:"from_user_id"`
	ToUserID   int64   `json:"to_user_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	TS         int64   `json:"ts"`
}

// setIfNewer only replaces the cached entry when the incoming one is ordered
// after it by (ts, id), so racing writers cannot regress the latest value.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local c = cjson.decode(cur)
  local n = cjson.decode(ARGV[1])
  if c.ts > n.ts or (c.ts == n.ts and c.id >= n.id) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

type Locations struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocations(client *redis.Client, ttl time.Duration) *Locations {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Locations{client: client, ttl: ttl}
}

func (c *Locations) Enabled() bool {
	return c != nil && c.client != nil
}

// Store records report as the latest for its recipient unless a newer one is cached.
func (c *Locations) Store(ctx context.Context, report model.LocationReport) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(entry{
		ID:         report.ID,
		FromUserID: report.FromUserID,
		ToUserID:   report.ToUserID,
		Latitude:   report.Latitude,
		Longitude:  report.Longitude,
		TS:         report.Timestamp.UTC().UnixMicro(),
	})
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, c.client, []string{latestKey(report.ToUserID)}, data, c.ttl.Milliseconds()).Err()
}

// Latest returns the cached latest report for toUserID; ok is false on a miss.
func (c *Locations) Latest(ctx context.Context, toUserID int64) (model.LocationReport, bool, error) {
	if !c.Enabled() {
		return model.LocationReport{}, false, nil
	}
	value, err := c.client.Get(ctx, latestKey(toUserID)).Result()
	if errors.Is(err, redis.Nil) {
		return model.LocationReport{}, false, nil
	}
	if err != nil {
		return model.LocationReport{}, false, err
	}
	var cached entry
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		return model.LocationReport{}, false, err
	}
	return model.LocationReport{
		ID:         cached.ID,
		FromUserID: cached.FromUserID,
		ToUserID:   cached.ToUserID,
		Latitude:   cached.Latitude,
		Longitude:  cached.Longitude,
		Timestamp:  time.UnixMicro(cached.TS).UTC(),
	}, true, nil
}

// Invalidate drops the cached entry so the next read goes to the database.
func (c *Locations) Invalidate(ctx context.Context, toUserID int64) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Del(ctx, latestKey(toUserID)).Err()
}

func latestKey(toUserID int64) string {
	return fmt.Sprintf("location:latest:%d", toUserID)
}
