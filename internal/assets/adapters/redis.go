package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

// Key layout shared with the registry operator:
//
//	asset:{subject}:owner      string
//	asset:{subject}:history    integer counter
//	asset:{subject}:attesters  set of account ids
const keyPrefix = "asset:"

// RedisRegistry reads the asset registry projection the operator maintains in Redis.
type RedisRegistry struct {
	client redis.UniversalClient
}

func NewRedisRegistry(client redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func ownerKey(subject id.SubjectID) string     { return keyPrefix + string(subject) + ":owner" }
func historyKey(subject id.SubjectID) string   { return keyPrefix + string(subject) + ":history" }
func attestersKey(subject id.SubjectID) string { return keyPrefix + string(subject) + ":attesters" }

func (r *RedisRegistry) OwnerOf(ctx context.Context, subject id.SubjectID) (id.AccountID, error) {
	owner, err := r.client.Get(ctx, ownerKey(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get asset owner: %w", err)
	}
	return id.AccountID(owner), nil
}

func (r *RedisRegistry) HistoryLength(ctx context.Context, subject id.SubjectID) (uint64, error) {
	n, err := r.client.Get(ctx, historyKey(subject)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get asset history: %w", err)
	}
	return n, nil
}

func (r *RedisRegistry) IsAttesterAuthorized(ctx context.Context, subject id.SubjectID, attester id.AccountID) (bool, error) {
	ok, err := r.client.SIsMember(ctx, attestersKey(subject), string(attester)).Result()
	if err != nil {
		return false, fmt.Errorf("check asset attester: %w", err)
	}
	return ok, nil
}

// Register writes an asset projection. Used by the operator tooling and tests.
func (r *RedisRegistry) Register(ctx context.Context, subject id.SubjectID, owner id.AccountID, history uint64, attesters ...id.AccountID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ownerKey(subject), string(owner), 0)
		pipe.Set(ctx, historyKey(subject), history, 0)
		pipe.Del(ctx, attestersKey(subject))
		if len(attesters) > 0 {
			members := make([]any, len(attesters))
			for i, a := range attesters {
				members[i] = string(a)
			}
			pipe.SAdd(ctx, attestersKey(subject), members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("register asset: %w", err)
	}
	return nil
}
