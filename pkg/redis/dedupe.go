package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petvoice/subscriptions/pkg/subscription"
)

const (
	stateProcessing = "processing"
	stateDone       = "done"
)

// EventDeduper is a subscription.EventDeduper shared by every replica.
//
// A claim is a SET NX with a short TTL so a crashed worker cannot block an
// event forever. Completing rewrites the key with a long TTL; releasing
// deletes it so the provider's retry is processed again.
type EventDeduper struct {
	client        redis.UniversalClient
	prefix        string
	processingTTL time.Duration
	doneTTL       time.Duration
}

// NewEventDeduper creates a deduper using the event settings from cfg.
func NewEventDeduper(client redis.UniversalClient, cfg Config) *EventDeduper {
	d := &EventDeduper{
		client:        client,
		prefix:        cfg.EventKeyPrefix,
		processingTTL: cfg.ProcessingTTL,
		doneTTL:       cfg.DoneTTL,
	}
	if d.processingTTL <= 0 {
		d.processingTTL = 2 * time.Minute
	}
	if d.doneTTL <= 0 {
		d.doneTTL = 30 * 24 * time.Hour
	}
	return d
}

func (d *EventDeduper) key(eventID string) string {
	return d.prefix + eventID
}

func (d *EventDeduper) Claim(ctx context.Context, eventID string) (subscription.ClaimResult, error) {
	if eventID == "" {
		return subscription.ClaimInFlight, ErrEmptyEventID
	}
	ok, err := d.client.SetNX(ctx, d.key(eventID), stateProcessing, d.processingTTL).Result()
	if err != nil {
		return subscription.ClaimInFlight, err
	}
	if ok {
		return subscription.ClaimAcquired, nil
	}

	state, err := d.client.Get(ctx, d.key(eventID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Released or expired between the two commands; try once more.
		ok, err = d.client.SetNX(ctx, d.key(eventID), stateProcessing, d.processingTTL).Result()
		if err != nil {
			return subscription.ClaimInFlight, err
		}
		if ok {
			return subscription.ClaimAcquired, nil
		}
		return subscription.ClaimInFlight, nil
	case err != nil:
		return subscription.ClaimInFlight, err
	case state == stateDone:
		return subscription.ClaimDuplicate, nil
	}
	return subscription.ClaimInFlight, nil
}

func (d *EventDeduper) Complete(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, d.key(eventID), stateDone, d.doneTTL).Err()
}

func (d *EventDeduper) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.key(eventID)).Err()
}
