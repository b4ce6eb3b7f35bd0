package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
)

const catalogLRUSize = 16

// CardCatalog serves the active card templates of one type
type CardCatalog interface {
	FindActiveByType(ctx context.Context, cardType models.CardType) ([]CatalogCard, error)
	Invalidate(ctx context.Context) error
}

// CardCatalogImpl is a read-through cache over the card template repository.
// Redis is used when a client is configured, otherwise an in-process LRU.
type CardCatalogImpl struct {
	repo   repository.CardTemplateRepository
	rc     *redis.Client
	local  *lru.Cache
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

type catalogEntry struct {
	cards     []CatalogCard
	expiresAt time.Time
}

// NewCardCatalog creates a catalog; rc may be nil
func NewCardCatalog(repo repository.CardTemplateRepository, rc *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) CardCatalog {
	local, _ := lru.New(catalogLRUSize)
	if logger == nil {
		logger = slog.Default()
	}
	return &CardCatalogImpl{
		repo:   repo,
		rc:     rc,
		local:  local,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func catalogCacheKey(prefix string, cardType models.CardType) string {
	return fmt.Sprintf("%scatalog:%s", prefix, cardType)
}

func (c *CardCatalogImpl) FindActiveByType(ctx context.Context, cardType models.CardType) ([]CatalogCard, error) {
	key := catalogCacheKey(c.prefix, cardType)

	if cards, ok := c.readCache(ctx, key); ok {
		return cards, nil
	}

	templates, err := c.repo.ListActiveByType(ctx, cardType)
	if err != nil {
		return nil, err
	}

	cards := make([]CatalogCard, 0, len(templates))
	for _, t := range templates {
		cards = append(cards, CatalogCard{ID: t.ID, Label: t.Label, Weight: t.Weight})
	}

	c.writeCache(ctx, key, cards)
	return cards, nil
}

func (c *CardCatalogImpl) readCache(ctx context.Context, key string) ([]CatalogCard, bool) {
	if c.rc != nil {
		bs, err := c.rc.Get(ctx, key).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				c.logger.WarnContext(ctx, "catalog cache read failed", slog.String("key", key), slog.Any("error", err))
			}
			return nil, false
		}
		var cards []CatalogCard
		if err := json.Unmarshal(bs, &cards); err != nil {
			c.logger.WarnContext(ctx, "catalog cache entry is corrupt", slog.String("key", key), slog.Any("error", err))
			return nil, false
		}
		return cards, true
	}

	v, ok := c.local.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(catalogEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.local.Remove(key)
		return nil, false
	}
	return entry.cards, true
}

func (c *CardCatalogImpl) writeCache(ctx context.Context, key string, cards []CatalogCard) {
	if c.rc != nil {
		bs, err := json.Marshal(cards)
		if err != nil {
			return
		}
		if err := c.rc.Set(ctx, key, bs, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "catalog cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return
	}
	c.local.Add(key, catalogEntry{cards: cards, expiresAt: time.Now().Add(c.ttl)})
}

// Invalidate drops the cached lists of every card type
func (c *CardCatalogImpl) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, len(models.CardTypes))
	for _, t := range models.CardTypes {
		keys = append(keys, catalogCacheKey(c.prefix, t))
	}

	for _, k := range keys {
		c.local.Remove(k)
	}
	if c.rc != nil {
		if err := c.rc.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate catalog cache: %w", err)
		}
	}
	return nil
}
