package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"whosaidit/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	roomKeyPrefix = "room:"
	roomIndexKey  = "rooms:index"

	// WATCH が衝突した場合のトランザクション再試行回数
	maxTxRetries = 20
)

// RedisRoomRepository stores each room as a JSON document with a 24h expiry.
// Conditional updates run as WATCH/MULTI/EXEC optimistic transactions.
type RedisRoomRepository struct {
	rdb    *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

func NewRedisRoomRepository(rdb *redis.Client, logger *zap.Logger) *RedisRoomRepository {
	return &RedisRoomRepository{rdb: rdb, logger: logger, ttl: RoomTTL}
}

func roomKey(code string) string {
	return roomKeyPrefix + code
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, roomKey(room.RoomCode), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("create room %s: %w", room.RoomCode, err)
	}
	if !ok {
		return ErrCodeTaken
	}
	// インデックスは期限切れキーの掃除にのみ使う
	created := room.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if err := r.rdb.ZAdd(ctx, roomIndexKey, &redis.Z{Score: float64(created.Unix()), Member: room.RoomCode}).Err(); err != nil {
		r.logger.Warn("Failed to index room", zap.String("roomCode", room.RoomCode), zap.Error(err))
	}
	return nil
}

func (r *RedisRoomRepository) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	data, err := r.rdb.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) ConditionalUpdate(ctx context.Context, code string, pred Predicate, mutate Mutation) (*models.Room, error) {
	key := roomKey(code)
	var updated *models.Room

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var room models.Room
		if err := json.Unmarshal(data, &room); err != nil {
			return fmt.Errorf("decode room %s: %w", code, err)
		}
		if !pred(&room) {
			return ErrPreconditionFailed
		}
		if err := mutate(&room); err != nil {
			return err
		}
		room.UpdatedAt = time.Now()
		out, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("encode room %s: %w", code, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		if err == nil {
			updated = &room
		}
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// 他のクライアントが先に書き込んだ。述語は最新の状態で再評価される
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("update room %s: %w", code, redis.TxFailedErr)
}

func (r *RedisRoomRepository) Delete(ctx context.Context, code string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, roomKey(code))
		pipe.ZRem(ctx, roomIndexKey, code)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

// PurgeExpired removes index entries whose room key has already expired.
// Redis drops the documents themselves through their TTL.
func (r *RedisRoomRepository) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.ttl).Unix()
	codes, err := r.rdb.ZRangeByScore(ctx, roomIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan room index: %w", err)
	}
	purged := 0
	for _, code := range codes {
		exists, err := r.rdb.Exists(ctx, roomKey(code)).Result()
		if err != nil {
			return purged, fmt.Errorf("check room %s: %w", code, err)
		}
		if exists > 0 {
			continue
		}
		if err := r.rdb.ZRem(ctx, roomIndexKey, code).Err(); err != nil {
			return purged, fmt.Errorf("unindex room %s: %w", code, err)
		}
		purged++
	}
	return purged, nil
}
