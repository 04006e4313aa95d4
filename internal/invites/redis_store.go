package invites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bananalabs-oss/hatcher/internal/models"
	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	invite:{id}                       invite JSON, expires after TTL
//	invites:to:{receiver}             sorted set of invite ids scored by timestamp
//	invites:pair:{sender}:{receiver}  id of the pair's current invite
func inviteKey(id string) string {
	return fmt.Sprintf("invite:%s", id)
}

func receiverKey(receiverID string) string {
	return fmt.Sprintf("invites:to:%s", receiverID)
}

func pairKey(senderID, receiverID string) string {
	return fmt.Sprintf("invites:pair:%s:%s", senderID, receiverID)
}

// RedisStore keeps invites in Redis and lets key expiry drop stale ones.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// watchAttempts bounds optimistic retries when another writer touches a
// watched pair key between the read and the commit.
const watchAttempts = 64

// watch runs fn under WATCH on keys and retries while the transaction is
// aborted by a concurrent write.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < watchAttempts; i++ {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *RedisStore) Send(ctx context.Context, inv *models.Invite) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invite: %w", err)
	}

	pair := pairKey(inv.SenderID, inv.ReceiverID)
	to := receiverKey(inv.ReceiverID)

	err = s.watch(ctx, func(tx *redis.Tx) error {
		prev, err := tx.Get(ctx, pair).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read previous invite: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prev != "" {
				pipe.Del(ctx, inviteKey(prev))
				pipe.ZRem(ctx, to, prev)
			}
			pipe.Set(ctx, inviteKey(inv.ID), data, TTL)
			pipe.Set(ctx, pair, inv.ID, TTL)
			pipe.ZAdd(ctx, to, redis.Z{Score: float64(inv.Timestamp), Member: inv.ID})
			pipe.ZRemRangeByScore(ctx, to, "-inf", strconv.FormatInt(cutoff(time.Unix(inv.Timestamp, 0)), 10))
			pipe.Expire(ctx, to, TTL)
			return nil
		})
		return err
	}, pair)
	if err != nil {
		return fmt.Errorf("send invite: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, receiverID string, now time.Time) (*models.Invite, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, receiverKey(receiverID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(cutoff(now), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("check invites: %w", err)
	}

	for _, id := range ids {
		data, err := s.client.Get(ctx, inviteKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read invite %s: %w", id, err)
		}

		var inv models.Invite
		if err := json.Unmarshal(data, &inv); err != nil {
			return nil, fmt.Errorf("unmarshal invite %s: %w", id, err)
		}
		return &inv, nil
	}
	return nil, ErrNoInvite
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	data, err := s.client.Get(ctx, inviteKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read invite %s: %w", id, err)
	}

	var inv models.Invite
	if err := json.Unmarshal(data, &inv); err != nil {
		return fmt.Errorf("unmarshal invite %s: %w", id, err)
	}

	pair := pairKey(inv.SenderID, inv.ReceiverID)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, pair).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read pair for invite %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, inviteKey(id))
			pipe.ZRem(ctx, receiverKey(inv.ReceiverID), id)
			if current == id {
				pipe.Del(ctx, pair)
			}
			return nil
		})
		return err
	}, pair)
	if err != nil {
		return fmt.Errorf("clear invite: %w", err)
	}
	return nil
}
