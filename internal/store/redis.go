package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/mautops/change-gin/internal/change"
)

// redisRecordStore 基于 Redis 的变更记录存储
// 每条记录一个 JSON 字符串键,另用有序集合按创建时间索引
type redisRecordStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRecordStore 创建 Redis 存储
func NewRedisRecordStore(client redis.UniversalClient, prefix string) RecordStore {
	if prefix == "" {
		prefix = "change"
	}
	return &redisRecordStore{client: client, prefix: prefix}
}

// RecordKey 变更记录键
func RecordKey(prefix, id string) string {
	return fmt.Sprintf("%s:record:%s", prefix, id)
}

// IndexKey 创建时间索引键
func IndexKey(prefix string) string {
	return prefix + ":index:created_at"
}

// Save 写入记录并更新索引,两者在同一个事务管道中提交
func (s *redisRecordStore) Save(ctx context.Context, rec *change.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, RecordKey(s.prefix, rec.ID), data, 0)
		pipe.ZAdd(ctx, IndexKey(s.prefix), &redis.Z{
			Score:  float64(rec.CreatedAt.UnixNano()),
			Member: rec.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save change to redis: %w", err)
	}
	return nil
}

// Load 读取记录
func (s *redisRecordStore) Load(ctx context.Context, id string) (*change.Record, error) {
	data, err := s.client.Get(ctx, RecordKey(s.prefix, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, change.ErrNotFound
		}
		return nil, err
	}
	return decodeRecord(data)
}

// List 按创建时间倒序读取全部记录后过滤
func (s *redisRecordStore) List(ctx context.Context, filter Filter) ([]*change.Summary, error) {
	ids, err := s.client.ZRevRange(ctx, IndexKey(s.prefix), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*change.Summary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = RecordKey(s.prefix, id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*change.Summary, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// 索引残留但记录不存在
			continue
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		summary := rec.Summarize()
		if filter.Match(summary) {
			out = append(out, summary)
		}
	}
	sortSummaries(out)
	return filter.Paginate(out), nil
}

// Exists 判断变更记录是否存在
func (s *redisRecordStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, RecordKey(s.prefix, id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
