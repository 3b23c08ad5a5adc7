package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"storefront/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InventoryKey is the Redis hash holding variant id -> quantity
const InventoryKey = "inventory:variants"

// reserveScript decrements every listed variant only when all of them have
// enough stock. Variants without a field are not tracked and are skipped.
var reserveScript = redis.NewScript(`
for i = 1, #ARGV, 2 do
  local have = redis.call('HGET', KEYS[1], ARGV[i])
  if have and tonumber(have) < tonumber(ARGV[i + 1]) then
    return ARGV[i]
  end
end
for i = 1, #ARGV, 2 do
  if redis.call('HEXISTS', KEYS[1], ARGV[i]) == 1 then
    redis.call('HINCRBY', KEYS[1], ARGV[i], -tonumber(ARGV[i + 1]))
  end
end
return ''
`)

var releaseScript = redis.NewScript(`
for i = 1, #ARGV, 2 do
  if redis.call('HEXISTS', KEYS[1], ARGV[i]) == 1 then
    redis.call('HINCRBY', KEYS[1], ARGV[i], tonumber(ARGV[i + 1]))
  end
end
return 1
`)

// InventoryCache is the live inventory snapshot source
type InventoryCache struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewInventoryCache creates a new InventoryCache
func NewInventoryCache(client redis.Cmdable, logger *zap.Logger) *InventoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryCache{client: client, logger: logger}
}

// ListInventory returns quantities for the requested variants. Missing or
// unparsable fields are left out of the snapshot.
func (c *InventoryCache) ListInventory(ctx context.Context, variantIDs []string) (domain.InventorySnapshot, error) {
	snapshot := domain.InventorySnapshot{}
	if len(variantIDs) == 0 {
		return snapshot, nil
	}

	values, err := c.client.HMGet(ctx, InventoryKey, variantIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	for i, raw := range values {
		if raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		qty, err := strconv.Atoi(s)
		if err != nil {
			c.logger.Warn("Ignoring unparsable inventory value",
				zap.String("variant_id", variantIDs[i]),
				zap.String("value", s),
			)
			continue
		}
		snapshot[variantIDs[i]] = qty
	}

	return snapshot, nil
}

// PrimeMissing seeds the cache from stored levels without touching variants
// that already have a live value. It returns how many fields were added.
func (c *InventoryCache) PrimeMissing(ctx context.Context, levels domain.InventorySnapshot) (int, error) {
	if len(levels) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pipe := c.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HSetNX(ctx, InventoryKey, id, levels[id])
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prime inventory: %w", err)
	}

	added := 0
	for _, cmd := range cmds {
		if cmd.Val() {
			added++
		}
	}
	c.logger.Info("Inventory cache primed", zap.Int("variants", len(ids)), zap.Int("added", added))
	return added, nil
}

// Reserve atomically takes stock for every variant in quantities. When any
// tracked variant has too little stock nothing is taken and ErrOutOfStock is
// returned.
func (c *InventoryCache) Reserve(ctx context.Context, quantities map[string]int) error {
	if len(quantities) == 0 {
		return nil
	}

	args := scriptArgs(quantities)
	short, err := reserveScript.Run(ctx, c.client, []string{InventoryKey}, args...).Text()
	if err != nil {
		return fmt.Errorf("failed to reserve inventory: %w", err)
	}
	if short != "" {
		return fmt.Errorf("variant %s: %w", short, domain.ErrOutOfStock)
	}
	return nil
}

// Release returns stock taken by Reserve. Untracked variants are skipped.
func (c *InventoryCache) Release(ctx context.Context, quantities map[string]int) error {
	if len(quantities) == 0 {
		return nil
	}

	args := scriptArgs(quantities)
	if err := releaseScript.Run(ctx, c.client, []string{InventoryKey}, args...).Err(); err != nil {
		return fmt.Errorf("failed to release inventory: %w", err)
	}
	return nil
}

// scriptArgs flattens quantities into id, qty pairs in a stable order
func scriptArgs(quantities map[string]int) []interface{} {
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	args := make([]interface{}, 0, len(ids)*2)
	for _, id := range ids {
		args = append(args, id, quantities[id])
	}
	return args
}
