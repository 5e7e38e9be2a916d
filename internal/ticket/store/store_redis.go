package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cas/internal/ticket/models"
	"cas/pkg/platform/sentinel"
)

// KeyPrefix namespaces ticket hashes in Redis.
const KeyPrefix = "cas:ticket:"

// consumeScript performs lookup, validation and transition inside Redis so
// concurrent redemptions of one token serialize on the server.
//
// KEYS[1] ticket hash
// ARGV[1] service, ARGV[2] now (unix ms), ARGV[3] expected type
var consumeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'service', 'consumed', 'expires_at', 'username', 'type', 'created_at')
if not v[1] then
	return {'not_found'}
end
if v[5] ~= ARGV[3] then
	return {'not_found'}
end
if tonumber(ARGV[2]) >= tonumber(v[3]) then
	return {'expired'}
end
if v[2] == '1' then
	return {'used'}
end
if v[1] ~= ARGV[1] then
	return {'mismatch'}
end
redis.call('HSET', KEYS[1], 'consumed', '1')
return {'ok', v[4], v[6], v[3]}
`)

// RedisTicketStore keeps tickets as Redis hashes that expire with the ticket.
// Suitable when several server instances share ticket state.
type RedisTicketStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed ticket store.
func NewRedis(client *redis.Client) *RedisTicketStore {
	return &RedisTicketStore{client: client}
}

func (s *RedisTicketStore) Create(ctx context.Context, ticket *models.Ticket) error {
	key := KeyPrefix + ticket.Token
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"service", ticket.Service,
			"consumed", boolFlag(ticket.Consumed),
			"expires_at", strconv.FormatInt(ticket.ExpiresAt.UnixMilli(), 10),
			"created_at", strconv.FormatInt(ticket.CreatedAt.UnixMilli(), 10),
			"username", ticket.Username,
			"type", string(ticket.Type),
		)
		pipe.PExpireAt(ctx, key, ticket.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store ticket: %w", err)
	}
	return nil
}

// Consume runs the consume script. Only success mutates the ticket.
func (s *RedisTicketStore) Consume(ctx context.Context, token, service string, typ models.Type, now time.Time) (*models.Ticket, error) {
	res, err := consumeScript.Run(ctx, s.client,
		[]string{KeyPrefix + token},
		service, strconv.FormatInt(now.UnixMilli(), 10), string(typ),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("consume ticket: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("consume ticket: empty script reply: %w", sentinel.ErrInvalidState)
	}

	switch res[0] {
	case "ok":
	case "not_found":
		return nil, notFound()
	case "expired":
		return nil, translateConsumeError(models.ErrExpired)
	case "used":
		return nil, translateConsumeError(models.ErrConsumed)
	case "mismatch":
		return nil, translateConsumeError(models.ErrServiceMismatch)
	default:
		return nil, fmt.Errorf("consume ticket: unexpected reply %q: %w", res[0], sentinel.ErrInvalidState)
	}
	if len(res) < 4 {
		return nil, fmt.Errorf("consume ticket: short script reply: %w", sentinel.ErrInvalidState)
	}

	createdMs, _ := strconv.ParseInt(res[2], 10, 64)
	expiresMs, _ := strconv.ParseInt(res[3], 10, 64)
	return &models.Ticket{
		Token:     token,
		Type:      typ,
		Username:  res[1],
		Service:   service,
		CreatedAt: time.UnixMilli(createdMs),
		ExpiresAt: time.UnixMilli(expiresMs),
		Consumed:  true,
	}, nil
}

// DeleteExpired is a no-op: Redis evicts ticket keys at their expiry.
func (s *RedisTicketStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
