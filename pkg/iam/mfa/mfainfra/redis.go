package mfainfra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/mfa"
)

const challengeKeyPrefix = "mfa:challenge:"

// RedisChallengeStore parks pending login challenges with a TTL. GETDEL
// makes consumption single-use without a transaction.
type RedisChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisChallengeStore(client *redis.Client, ttl time.Duration) mfa.ChallengeStore {
	return &RedisChallengeStore{client: client, ttl: ttl}
}

func (s *RedisChallengeStore) Create(ctx context.Context, challenge mfa.Challenge) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return errx.Wrap(err, "failed to marshal challenge", errx.TypeInternal)
	}
	if err := s.client.Set(ctx, challengeKeyPrefix+challenge.Token, data, s.ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to store challenge", errx.TypeExternal)
	}
	return nil
}

func (s *RedisChallengeStore) Consume(ctx context.Context, token string) (*mfa.Challenge, error) {
	data, err := s.client.GetDel(ctx, challengeKeyPrefix+token).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to consume challenge", errx.TypeExternal)
	}

	var challenge mfa.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, errx.Wrap(err, "failed to unmarshal challenge", errx.TypeInternal)
	}
	return &challenge, nil
}
