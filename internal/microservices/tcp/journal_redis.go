package tcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"wmshub/internal/warehouse"
)

const DefaultRedisChannel = "wms:package_updates"

// RedisSink mirrors the latest state of every package into a hash and
// publishes each event on a channel for downstream services.
type RedisSink struct {
	client  *redis.Client
	channel string
	ttl     time.Duration // 0 keeps keys forever
}

// NewRedisSink dials Redis from a redis:// URL and verifies the connection.
func NewRedisSink(redisURL, password, channel string, ttl time.Duration) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSinkFromClient(rdb, channel, ttl), nil
}

func NewRedisSinkFromClient(client *redis.Client, channel string, ttl time.Duration) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel, ttl: ttl}
}

func (r *RedisSink) Name() string { return "redis" }

// PackageKey is the hash holding the mirrored record of one package.
func PackageKey(packageID string) string {
	return "wms:package:" + packageID
}

// Write applies a batch in one pipeline round trip.
func (r *RedisSink) Write(ctx context.Context, events []warehouse.Event) error {
	if len(events) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, ev := range events {
		key := PackageKey(ev.Package.PackageID)
		pipe.HSet(ctx, key, packageFields(ev))
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		msg, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event for %s: %w", ev.Package.PackageID, err)
		}
		pipe.Publish(ctx, r.channel, msg)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// packageFields flattens a package into HSET field/value pairs.
func packageFields(ev warehouse.Event) map[string]any {
	p := ev.Package
	return map[string]any{
		"package_id":        p.PackageID,
		"order_id":          p.OrderID,
		"external_order_id": p.ExternalOrderID,
		"client_id":         p.ClientID,
		"status":            string(p.Status),
		"zone":              p.Zone,
		"weight":            strconv.FormatFloat(p.Weight, 'f', -1, 64),
		"dimensions":        p.Dimensions,
		"special_handling":  strconv.FormatBool(p.SpecialHandling),
		"loaded_vehicle":    p.LoadedVehicle,
		"last_event":        string(ev.Kind),
		"last_updated":      p.LastUpdated.Format(time.RFC3339Nano),
	}
}

func (r *RedisSink) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
