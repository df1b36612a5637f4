// Package redis stores beat listings in Redis. Each listing is a JSON value
// and the listed beats are indexed by a sorted set scored by creation time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sigweihq/beatmarket/pkg/store"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// Store is a store.Store over a Redis client
type Store struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(rdb, cfg.Prefix), nil
}

// New wraps a client. Keys are namespaced under prefix, "beatmarket" if empty.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "beatmarket"
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

// Key helpers
func (s *Store) beatKey(id string) string {
	return fmt.Sprintf("%s:beat:%s", s.prefix, id)
}

func (s *Store) listedKey() string {
	return fmt.Sprintf("%s:listed", s.prefix)
}

func (s *Store) CreateBeat(ctx context.Context, beat *types.BeatListing) error {
	now := s.now().UTC()
	if beat.CreatedAt.IsZero() {
		beat.CreatedAt = now
	}
	beat.UpdatedAt = now
	if beat.Version == 0 {
		beat.Version = 1
	}

	data, err := json.Marshal(beat)
	if err != nil {
		return fmt.Errorf("failed to marshal beat: %w", err)
	}

	key := s.beatKey(beat.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return types.NewError(types.KindConflict, fmt.Sprintf("beat %s already exists", beat.ID), nil)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if beat.IsListed {
				pipe.ZAdd(ctx, s.listedKey(), s.listedMember(beat))
			}
			return nil
		})
		return err
	}, key)
	return s.txError(err, beat.ID, "create")
}

func (s *Store) FindBeat(ctx context.Context, id string) (*types.BeatListing, error) {
	data, err := s.rdb.Get(ctx, s.beatKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.NewError(types.KindNotFound, fmt.Sprintf("beat %s", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load beat %s: %w", id, err)
	}
	return decode(data)
}

func (s *Store) SaveBeat(ctx context.Context, beat *types.BeatListing) error {
	key := s.beatKey(beat.ID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := load(ctx, tx, key, beat.ID)
		if err != nil {
			return err
		}
		if current.Version != beat.Version {
			return types.NewError(types.KindConflict, fmt.Sprintf("beat %s is at version %d, not %d", beat.ID, current.Version, beat.Version), nil)
		}

		next := beat.Clone()
		next.Version++
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal beat: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if next.IsListed {
				pipe.ZAdd(ctx, s.listedKey(), s.listedMember(next))
			} else {
				pipe.ZRem(ctx, s.listedKey(), next.ID)
			}
			return nil
		})
		if err == nil {
			beat.Version = next.Version
			beat.CreatedAt = next.CreatedAt
			beat.UpdatedAt = next.UpdatedAt
		}
		return err
	}, key)
	return s.txError(err, beat.ID, "save")
}

func (s *Store) ListListed(ctx context.Context) ([]*types.BeatListing, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.listedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}
	if len(ids) == 0 {
		return []*types.BeatListing{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.beatKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget failed: %w", err)
	}

	beats := make([]*types.BeatListing, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		beat, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		if beat.IsListed {
			beats = append(beats, beat)
		}
	}
	return beats, nil
}

// MarkPurchased runs under WATCH on the beat key. A concurrent write to the
// key aborts the transaction and is reported as a conflict.
func (s *Store) MarkPurchased(ctx context.Context, id, owner, txHash string) (*types.BeatListing, error) {
	key := s.beatKey(id)
	var updated *types.BeatListing

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		beat, err := load(ctx, tx, key, id)
		if err != nil {
			return err
		}
		if !beat.IsListed || beat.PurchaseTxHash != nil {
			return types.NewError(types.KindConflict, fmt.Sprintf("beat %s is no longer for sale", id), nil)
		}

		beat.OwnerAddress = &owner
		beat.IsListed = false
		beat.PurchaseTxHash = &txHash
		beat.Version++
		beat.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(beat)
		if err != nil {
			return fmt.Errorf("failed to marshal beat: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZRem(ctx, s.listedKey(), id)
			return nil
		})
		if err == nil {
			updated = beat
		}
		return err
	}, key)
	if err := s.txError(err, id, "mark purchased"); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) listedMember(beat *types.BeatListing) redis.Z {
	return redis.Z{Score: float64(beat.CreatedAt.UnixMicro()), Member: beat.ID}
}

// txError maps an aborted WATCH transaction to a conflict and passes typed
// errors through.
func (s *Store) txError(err error, id, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return types.NewError(types.KindConflict, fmt.Sprintf("beat %s was modified concurrently", id), err)
	case types.KindOf(err) != "":
		return err
	}
	return fmt.Errorf("failed to %s beat %s: %w", op, id, err)
}

func load(ctx context.Context, tx *redis.Tx, key, id string) (*types.BeatListing, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.NewError(types.KindNotFound, fmt.Sprintf("beat %s", id), nil)
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func decode(data []byte) (*types.BeatListing, error) {
	var beat types.BeatListing
	if err := json.Unmarshal(data, &beat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal beat: %w", err)
	}
	return &beat, nil
}
