package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/models"

	"github.com/redis/go-redis/v9"
)

const CartTTL = 30 * 24 * time.Hour // 30 jours

// RedisRepo stocke le panier en JSON sous la clé cart:<userID> et publie
// sur le canal du même nom pour la synchronisation temps réel.
type RedisRepo struct {
	client *redis.Client
}

func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

func (r *RedisRepo) Get(ctx context.Context, userID string) ([]models.CartItem, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // panier jamais créé
	}
	if err != nil {
		return nil, classify(err)
	}

	var items []models.CartItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Erreur décodage panier", err)
	}
	return items, nil
}

func (r *RedisRepo) Save(ctx context.Context, userID string, items []models.CartItem) error {
	jsonData, err := json.Marshal(items)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "Erreur sérialisation panier", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, cartKey(userID), jsonData, CartTTL)
	pipe.Publish(ctx, cartKey(userID), "updated") // sync temps réel
	if _, err := pipe.Exec(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, userID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, cartKey(userID))
	pipe.Publish(ctx, cartKey(userID), "cleared")
	if _, err := pipe.Exec(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstreamTimeout, "Délai Redis dépassé", err)
	}
	return apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur Redis", err)
}
