package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BorisBinyaminov/eSIM/internal/pkg/cache"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/env"
)

// ErrNoPendingPurchase is returned when a confirmation arrives without a
// stored intent, or after the intent's TTL expired.
var ErrNoPendingPurchase = errors.New("no pending purchase")

// PendingPurchase is the ephemeral purchase intent between plan selection
// and quantity confirmation. It lives in Redis under a per-user key with a
// TTL, so abandoned selections evict themselves.
type PendingPurchase struct {
	PackageCode string `json:"package_code"`
	UnitPrice   int64  `json:"unit_price"`
	RetailPrice int64  `json:"retail_price"`
	Duration    int    `json:"duration"`
}

// Daily reports whether the selected package bills per day, which decides
// whether the confirmation quantity means days or profile count.
func (p PendingPurchase) Daily() bool {
	return p.Duration == 1
}

func purchaseKey(userID uint) string {
	return fmt.Sprintf("purchase:pending:%d", userID)
}

// TTL returns the configured pending-purchase lifetime.
func TTL() time.Duration {
	return env.GetEnvDuration("PURCHASE_INTENT_TTL", 10*time.Minute)
}

// SavePendingPurchase stores (or replaces) the user's purchase intent.
func SavePendingPurchase(ctx context.Context, userID uint, p PendingPurchase) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return cache.GetClient().Set(ctx, purchaseKey(userID), payload, TTL()).Err()
}

// TakePendingPurchase consumes the user's purchase intent atomically. The
// intent is single-use: a second confirmation finds nothing.
func TakePendingPurchase(ctx context.Context, userID uint) (*PendingPurchase, error) {
	payload, err := cache.GetClient().GetDel(ctx, purchaseKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoPendingPurchase
		}
		return nil, err
	}

	var p PendingPurchase
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ClearPendingPurchase drops the user's purchase intent, if any.
func ClearPendingPurchase(ctx context.Context, userID uint) error {
	return cache.GetClient().Del(ctx, purchaseKey(userID)).Err()
}
