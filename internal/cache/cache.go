// Package cache はRedisを使用したリードスルーキャッシュを提供する。
//
// 値はJSONシリアライズしてバイト列として格納する。キャッシュの障害は
// 読み取りパスを止めない。Get/Setの失敗はログに記録して握りつぶし、
// 呼び出し側は常にストレージへフォールバックできる。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL階層。一覧系はShort、slug単位の詳細はMedium、
// 変更頻度の低いマスタ系はLongを使用する。
const (
	// TTLShort はページネーション付き一覧読み取りの有効期限（5分）。
	TTLShort = 5 * time.Minute
	// TTLMedium はslug単位の詳細読み取りの有効期限（15分）。
	TTLMedium = 15 * time.Minute
	// TTLLong はカテゴリ一覧・アクティブソース一覧の有効期限（1時間）。
	TTLLong = time.Hour
)

// Service はキャッシュバックエンドのインターフェースを定義する。
type Service interface {
	// Get は指定キーの値を取得する。ミスの場合はnilを返す（エラーではない）。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set は指定キーに値をTTL付きで格納する。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove は指定キーを削除する。キーが存在しない場合もエラーにしない。
	Remove(ctx context.Context, key string) error

	// RemoveByPattern はパターンに一致するキーを一括削除する。
	// SCANベースの実装のため並行書き込みに対してアトミックではなく、
	// 収束のみを保証する。メンテナンス用途を想定している。
	RemoveByPattern(ctx context.Context, pattern string) error
}

// RedisCache はgo-redisを使用したServiceの実装。
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache はRedis接続を開き、疎通確認を行ってRedisCacheを生成する。
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close はRedis接続を閉じる。
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get は指定キーの値を取得する。ミスの場合はnilを返す。
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キャッシュの取得に失敗しました: %w", err)
	}
	return data, nil
}

// Set は指定キーに値をTTL付きで格納する。
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュの格納に失敗しました: %w", err)
	}
	return nil
}

// Remove は指定キーを削除する。
func (c *RedisCache) Remove(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("キャッシュの削除に失敗しました: %w", err)
	}
	return nil
}

// RemoveByPattern はパターンに一致するキーをSCANで走査して削除する。
// KEYSコマンドはRedisをブロックするため使用しない。
func (c *RedisCache) RemoveByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("キャッシュキーの走査に失敗しました: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("キャッシュの一括削除に失敗しました: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// GetOrSet はリードスルーのキャッシュアクセスを行う。
// ヒット時はデシリアライズした値を返し、ミス時はcomputeを実行して
// 結果をTTL付きで格納してから返す。キャッシュ障害はcompute結果の
// 返却を妨げない（ログのみ）。computeのエラーはそのまま伝播する。
func GetOrSet[T any](ctx context.Context, c Service, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.Get(ctx, key)
	if err != nil {
		slog.Warn("キャッシュの読み取りに失敗しました", "key", key, "error", err)
	}
	if data != nil {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		// デシリアライズ失敗は壊れたエントリとして扱い、再計算する
		slog.Warn("キャッシュエントリのデシリアライズに失敗しました", "key", key, "error", err)
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		slog.Warn("キャッシュ値のシリアライズに失敗しました", "key", key, "error", err)
		return value, nil
	}
	if err := c.Set(ctx, key, encoded, ttl); err != nil {
		slog.Warn("キャッシュへの格納に失敗しました", "key", key, "error", err)
	}

	return value, nil
}
