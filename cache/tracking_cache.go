package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zap-shift-api/models"

	"github.com/go-redis/redis/v8"
)

const trackingTTL = 24 * time.Hour

// TrackingCache keeps parcels hot by tracking id so public tracking lookups
// skip the database. Lookups fall through on any miss or error.
type TrackingCache struct {
	client *redis.Client
}

func New(addr string) (*TrackingCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &TrackingCache{client: client}, nil
}

func (c *TrackingCache) Close() error {
	return c.client.Close()
}

func (c *TrackingCache) Put(ctx context.Context, parcel *models.Parcel) error {
	if parcel.TrackingID == nil {
		return nil
	}
	data, err := json.Marshal(parcel)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, trackingKey(*parcel.TrackingID), data, trackingTTL).Err()
}

// Get returns (nil, nil) on a cache miss
func (c *TrackingCache) Get(ctx context.Context, trackingID string) (*models.Parcel, error) {
	data, err := c.client.Get(ctx, trackingKey(trackingID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var parcel models.Parcel
	if err := json.Unmarshal(data, &parcel); err != nil {
		return nil, err
	}
	return &parcel, nil
}

func trackingKey(trackingID string) string {
	return "tracking:" + trackingID
}
