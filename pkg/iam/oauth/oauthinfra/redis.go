// Package oauthinfra provides storage for the OAuth broker: short-lived
// state and exchange codes in Redis, durable connections in PostgreSQL.
package oauthinfra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/oauth"
)

const (
	stateKeyPrefix    = "oauth:state:"
	exchangeKeyPrefix = "oauth:exchange:"
)

// RedisStateStore holds pending authorization requests keyed by hashed
// state. TTL enforces the flow deadline; GETDEL enforces single use.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) oauth.StateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) Create(ctx context.Context, req oauth.AuthorizationRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return errx.Wrap(err, "failed to marshal authorization request", errx.TypeInternal)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+req.StateHash, data, s.ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to store authorization request", errx.TypeExternal)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, stateHash string) (*oauth.AuthorizationRequest, error) {
	data, err := s.client.GetDel(ctx, stateKeyPrefix+stateHash).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to consume authorization request", errx.TypeExternal)
	}

	var req oauth.AuthorizationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errx.Wrap(err, "failed to unmarshal authorization request", errx.TypeInternal)
	}
	return &req, nil
}

// RedisExchangeCodeStore holds grant tickets behind hashed single-use
// exchange codes.
type RedisExchangeCodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisExchangeCodeStore(client *redis.Client, ttl time.Duration) oauth.ExchangeCodeStore {
	return &RedisExchangeCodeStore{client: client, ttl: ttl}
}

func (s *RedisExchangeCodeStore) Create(ctx context.Context, codeHash string, ticket oauth.GrantTicket) error {
	data, err := json.Marshal(ticket)
	if err != nil {
		return errx.Wrap(err, "failed to marshal grant ticket", errx.TypeInternal)
	}
	if err := s.client.Set(ctx, exchangeKeyPrefix+codeHash, data, s.ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to store grant ticket", errx.TypeExternal)
	}
	return nil
}

func (s *RedisExchangeCodeStore) Consume(ctx context.Context, codeHash string) (*oauth.GrantTicket, error) {
	data, err := s.client.GetDel(ctx, exchangeKeyPrefix+codeHash).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to consume grant ticket", errx.TypeExternal)
	}

	var ticket oauth.GrantTicket
	if err := json.Unmarshal(data, &ticket); err != nil {
		return nil, errx.Wrap(err, "failed to unmarshal grant ticket", errx.TypeInternal)
	}
	return &ticket, nil
}
