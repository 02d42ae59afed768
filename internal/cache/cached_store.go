package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/codxp/xptracker/internal/ledger"
	"github.com/codxp/xptracker/internal/logging"
	"github.com/codxp/xptracker/internal/store"
)

// Config содержит настройки Redis-кеша аккаунтов.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// CachedStore оборачивает любой AccountStore сквозным Redis-кешем:
// Load читает из кеша, промах идёт в хранилище и заполняет кеш;
// Create и Upsert инвалидируют ключ после записи. Счётчики hit/miss
// доступны через Metrics.
//
// Ошибки Redis никогда не роняют запрос — кеш деградирует до прямого
// обращения к хранилищу.
type CachedStore struct {
	inner  store.AccountStore
	client *redis.Client
	ttl    time.Duration

	hits   int64
	misses int64
}

// cachedAccount — JSON-представление аккаунта в кеше.
type cachedAccount struct {
	Username     string           `json:"username"`
	PasswordHash string           `json:"password_hash"`
	Tokens       map[string][]int `json:"tokens"`
	Profile      store.Profile    `json:"profile"`
}

// NewCachedStore подключается к Redis и возвращает обёртку над inner.
func NewCachedStore(cfg Config, inner store.AccountStore) (*CachedStore, error) {
	if cfg.TTL == 0 {
		cfg.TTL = 30 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Account cache initialized: %s (TTL %s)", cfg.RedisAddr, cfg.TTL)
	return &CachedStore{inner: inner, client: client, ttl: cfg.TTL}, nil
}

// Ключи нормализуются так же, как usernames в хранилищах.
func cacheKey(username string) string {
	return "xptracker:account:" + strings.ToLower(strings.TrimSpace(username))
}

// Load реализует AccountStore.
func (c *CachedStore) Load(ctx context.Context, username string) (*store.Account, error) {
	key := cacheKey(username)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var doc cachedAccount
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr == nil {
			atomic.AddInt64(&c.hits, 1)
			return &store.Account{
				Username:     doc.Username,
				PasswordHash: doc.PasswordHash,
				Tokens:       ledger.FromSlices(doc.Tokens),
				Profile:      doc.Profile,
			}, nil
		}
	}
	atomic.AddInt64(&c.misses, 1)

	acc, err := c.inner.Load(ctx, username)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, acc)
	return acc, nil
}

// Create реализует AccountStore.
func (c *CachedStore) Create(ctx context.Context, account *store.Account) error {
	if err := c.inner.Create(ctx, account); err != nil {
		return err
	}
	c.invalidate(ctx, account.Username)
	return nil
}

// Upsert реализует AccountStore.
func (c *CachedStore) Upsert(ctx context.Context, username string, mutate func(*store.Account)) (*store.Account, error) {
	acc, err := c.inner.Upsert(ctx, username, mutate)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, username)
	return acc, nil
}

// Close закрывает Redis-клиент и внутреннее хранилище.
func (c *CachedStore) Close() error {
	if err := c.client.Close(); err != nil {
		_ = c.inner.Close()
		return err
	}
	return c.inner.Close()
}

// Metrics возвращает счётчики hit/miss.
func (c *CachedStore) Metrics() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

func (c *CachedStore) fill(ctx context.Context, key string, acc *store.Account) {
	payload, err := json.Marshal(cachedAccount{
		Username:     acc.Username,
		PasswordHash: acc.PasswordHash,
		Tokens:       acc.Tokens.ToSlices(),
		Profile:      acc.Profile,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logging.Warn("cache fill failed for %s: %v", key, err)
	}
}

func (c *CachedStore) invalidate(ctx context.Context, username string) {
	if err := c.client.Del(ctx, cacheKey(username)).Err(); err != nil {
		logging.Warn("cache invalidation failed for %s: %v", username, err)
	}
}
