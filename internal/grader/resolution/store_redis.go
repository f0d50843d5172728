package resolution

import (
	"context"
	"fmt"

	"pddlgrader/internal/common/cache"
	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"
)

const defaultKeyPrefix = "grader:decisions"

// RedisStore keeps decision sets in two Redis sets per mode.
type RedisStore struct {
	cache       cache.SetCache
	acceptedKey string
	rejectedKey string
}

// NewRedisStore creates a Redis-backed store. Keys are <prefix>:mode<N>:accepted|rejected.
func NewRedisStore(c cache.SetCache, prefix string, mode model.Mode) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	base := fmt.Sprintf("%s:mode%d", prefix, int(mode))
	return &RedisStore{cache: c, acceptedKey: base + ":accepted", rejectedKey: base + ":rejected"}
}

func (s *RedisStore) Load(ctx context.Context) (Decisions, error) {
	if s.cache == nil {
		return Decisions{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	accepted, err := s.cache.SMembers(ctx, s.acceptedKey)
	if err != nil {
		return Decisions{}, appErr.Wrapf(err, appErr.DecisionStoreFailed, "load accepted plans failed")
	}
	rejected, err := s.cache.SMembers(ctx, s.rejectedKey)
	if err != nil {
		return Decisions{}, appErr.Wrapf(err, appErr.DecisionStoreFailed, "load rejected plans failed")
	}
	return Decisions{Accepted: accepted, Rejected: rejected}, nil
}

func (s *RedisStore) Save(ctx context.Context, d Decisions) error {
	if s.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if err := s.replace(ctx, s.acceptedKey, d.Accepted); err != nil {
		return appErr.Wrapf(err, appErr.DecisionStoreFailed, "store accepted plans failed")
	}
	if err := s.replace(ctx, s.rejectedKey, d.Rejected); err != nil {
		return appErr.Wrapf(err, appErr.DecisionStoreFailed, "store rejected plans failed")
	}
	return nil
}

func (s *RedisStore) replace(ctx context.Context, key string, members []string) error {
	if r, ok := s.cache.(cache.ReplaceSet); ok {
		return r.ReplaceSet(ctx, key, members)
	}
	if err := s.cache.Del(ctx, key); err != nil {
		return err
	}
	args := make([]interface{}, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}
	return s.cache.SAdd(ctx, key, args...)
}
