package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/redis/go-redis/v9"
)

// generationTTL счётчик поколений должен жить дольше любых слотов
const generationTTL = 7 * 24 * time.Hour

// SlotCache кэш слотов в Redis. Ключ слотов включает поколение (учитель, дата),
// Invalidate увеличивает поколение, и слоты, посчитанные до него, больше не читаются.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{client: client, ttl: ttl}
}

var _ service.SlotCache = (*SlotCache)(nil)

func SlotCacheKey(teacherID int64, date string, gen int64, duration int) string {
	return fmt.Sprintf("slots:%d:%s:v%d:%d", teacherID, date, gen, duration)
}

func SlotGenerationKey(teacherID int64, date string) string {
	return fmt.Sprintf("slots:gen:%d:%s", teacherID, date)
}

func (c *SlotCache) generation(ctx context.Context, teacherID int64, date string) (int64, error) {
	gen, err := c.client.Get(ctx, SlotGenerationKey(teacherID, date)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get slot generation: %w", err)
	}
	return gen, nil
}

// Get возвращает слоты текущего поколения; false если их нет
func (c *SlotCache) Get(ctx context.Context, teacherID int64, date string, duration int) ([]model.Slot, int64, bool, error) {
	gen, err := c.generation(ctx, teacherID, date)
	if err != nil {
		return nil, 0, false, err
	}

	raw, err := c.client.Get(ctx, SlotCacheKey(teacherID, date, gen, duration)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, false, nil
		}
		return nil, gen, false, fmt.Errorf("get cached slots: %w", err)
	}

	var slots []model.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, gen, false, fmt.Errorf("decode cached slots: %w", err)
	}
	return slots, gen, true, nil
}

// Set ничего не пишет, если поколение уже сменилось
func (c *SlotCache) Set(ctx context.Context, teacherID int64, date string, duration int, gen int64, slots []model.Slot) error {
	current, err := c.generation(ctx, teacherID, date)
	if err != nil {
		return err
	}
	if current != gen {
		return nil
	}

	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	if err := c.client.Set(ctx, SlotCacheKey(teacherID, date, gen, duration), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache slots: %w", err)
	}
	return nil
}

// Invalidate начинает новое поколение и удаляет слоты предыдущего для всех длительностей
func (c *SlotCache) Invalidate(ctx context.Context, teacherID int64, date string) error {
	genKey := SlotGenerationKey(teacherID, date)

	gen, err := c.client.Incr(ctx, genKey).Result()
	if err != nil {
		return fmt.Errorf("bump slot generation: %w", err)
	}
	if err := c.client.Expire(ctx, genKey, generationTTL).Err(); err != nil {
		return fmt.Errorf("expire slot generation: %w", err)
	}

	keys := make([]string, 0, len(service.AllowedDurations))
	for _, d := range service.AllowedDurations {
		keys = append(keys, SlotCacheKey(teacherID, date, gen-1, d))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate slots: %w", err)
	}
	return nil
}
