package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/marcelsud/deployhook/tenant"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

/* Redis implementation of tenant.Store
 * Existence is a plain key, the webhook secret lives in a hash
 */

const (
	appPrefix     = "deployhook:app"     // Key naming: deployhook:app:{tenant_id}
	webhookPrefix = "deployhook:webhook" // Hash naming: deployhook:webhook:{tenant_id}
	secretField   = "secret"
)

type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewStore creates a new Redis tenant store
func NewStore(addr, password string, db int, logger zerolog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Store{
		client: client,
		logger: logger,
	}, nil
}

// Exists checks if the tenant key is present
func (s *Store) Exists(ctx context.Context, id string) bool {
	n, err := s.client.Exists(ctx, appKey(id)).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant", id).Msg("redis unavailable, treating tenant as not found")
		return false
	}
	return n > 0
}

// Secret returns the tenant's webhook secret, if set
func (s *Store) Secret(ctx context.Context, id string) ([]byte, bool) {
	secret, err := s.client.HGet(ctx, webhookKey(id), secretField).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant", id).Msg("redis unavailable, treating secret as absent")
		return nil, false
	}
	if len(secret) == 0 {
		return nil, false
	}
	return secret, true
}

// List scans all tenant keys, sorted by id
func (s *Store) List(ctx context.Context) ([]tenant.Tenant, error) {
	var tenants []tenant.Tenant

	iter := s.client.Scan(ctx, 0, appPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), appPrefix+":")

		// an empty secret is not configured, same as Secret
		secret, err := s.client.HGet(ctx, webhookKey(id), secretField).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("checking secret of %s: %w", id, err)
		}

		t := tenant.Tenant{ID: id, HasSecret: secret != ""}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("validating tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning tenants: %w", err)
	}

	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].ID < tenants[j].ID
	})
	return tenants, nil
}

// Close closes the Redis connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}

func appKey(id string) string {
	return fmt.Sprintf("%s:%s", appPrefix, id)
}

func webhookKey(id string) string {
	return fmt.Sprintf("%s:%s", webhookPrefix, id)
}
