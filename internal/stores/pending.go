package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure other than a missing or
// mismatched record.
var ErrRedisUnavailable = errors.New("pending signup redis unavailable")

const (
	defaultPendingPrefix = "aps"
	// DefaultRetention is how long a record outlives its OTP.
	DefaultRetention = time.Hour
)

// upsertPendingLua replaces the record but keeps the first createdAt.
// KEYS[1] = record key
// ARGV[1] = otp hash
// ARGV[2] = encoded record
// ARGV[3] = createdAt to use when none is stored
// ARGV[4] = ttl in milliseconds
var upsertPendingLua = redis.NewScript(`
local created = redis.call('HGET', KEYS[1], 'createdAt')
if not created then
  created = ARGV[3]
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'otpHash', ARGV[1], 'record', ARGV[2], 'createdAt', created)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return created
`)

// consumePendingLua deletes the record only if its OTP hash still equals
// ARGV[1].
// Returns {record, createdAt} or error "not_found" / "mismatch".
var consumePendingLua = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'otpHash')
if not stored then
  return {err='not_found'}
end
if stored ~= ARGV[1] then
  return {err='mismatch'}
end
local data = redis.call('HMGET', KEYS[1], 'record', 'createdAt')
redis.call('DEL', KEYS[1])
return data
`)

// pendingRecord is the JSON form of the mutable part of a PendingSignup.
type pendingRecord struct {
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	PasswordHash  string    `json:"passwordHash"`
	Role          string    `json:"role"`
	TermsAccepted bool      `json:"termsAccepted"`
	OTPHash       string    `json:"otpHash"`
	OTPExpiresAt  time.Time `json:"otpExpiresAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PendingSignups is a stayAuth.PendingSignupStore on Redis.
type PendingSignups struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

var _ stayAuth.PendingSignupStore = (*PendingSignups)(nil)

func NewPendingSignups(redisClient redis.UniversalClient, prefix string, retention time.Duration) *PendingSignups {
	if prefix == "" {
		prefix = defaultPendingPrefix
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PendingSignups{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

func (s *PendingSignups) key(email string) string {
	return s.prefix + ":" + stayAuth.NormalizeEmail(email)
}

func (s *PendingSignups) UpsertPending(ctx context.Context, p stayAuth.PendingSignup) error {
	p.Email = stayAuth.NormalizeEmail(p.Email)
	data, err := json.Marshal(pendingRecord{
		Email:         p.Email,
		Name:          p.Name,
		Phone:         p.Phone,
		PasswordHash:  p.PasswordHash,
		Role:          string(p.Role),
		TermsAccepted: p.TermsAccepted,
		OTPHash:       p.OTPHash,
		OTPExpiresAt:  p.OTPExpiresAt,
		UpdatedAt:     p.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode pending signup: %w", err)
	}

	created := p.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	ttl := max(p.OTPExpiresAt.Sub(s.now()), 0) + s.retention

	err = upsertPendingLua.Run(ctx, s.redis,
		[]string{s.key(p.Email)},
		p.OTPHash,
		string(data),
		created.UTC().Format(time.RFC3339Nano),
		ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *PendingSignups) GetPending(ctx context.Context, email string) (stayAuth.PendingSignup, error) {
	vals, err := s.redis.HMGet(ctx, s.key(email), "record", "createdAt").Result()
	if err != nil {
		return stayAuth.PendingSignup{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodePending(vals)
}

func (s *PendingSignups) DeletePending(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *PendingSignups) ConsumePending(ctx context.Context, email, otpHash string) (stayAuth.PendingSignup, error) {
	res, err := consumePendingLua.Run(ctx, s.redis, []string{s.key(email)}, otpHash).Result()
	if err != nil {
		switch err.Error() {
		case "not_found", "mismatch":
			return stayAuth.PendingSignup{}, stayAuth.ErrPendingNotFound
		default:
			return stayAuth.PendingSignup{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	vals, ok := res.([]any)
	if !ok {
		return stayAuth.PendingSignup{}, fmt.Errorf("%w: unexpected lua result %T", ErrRedisUnavailable, res)
	}
	p, err := decodePending(vals)
	if err != nil {
		return stayAuth.PendingSignup{}, err
	}
	p.OTPVerified = true
	return p, nil
}

// decodePending reads the {record, createdAt} pair returned by HMGET or
// the consume script. A nil record means the key does not exist.
func decodePending(vals []any) (stayAuth.PendingSignup, error) {
	if len(vals) != 2 || vals[0] == nil {
		return stayAuth.PendingSignup{}, stayAuth.ErrPendingNotFound
	}
	raw, ok := vals[0].(string)
	if !ok {
		return stayAuth.PendingSignup{}, fmt.Errorf("%w: unexpected record type %T", ErrRedisUnavailable, vals[0])
	}

	var rec pendingRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return stayAuth.PendingSignup{}, fmt.Errorf("decode pending signup: %w", err)
	}

	p := stayAuth.PendingSignup{
		Email:         rec.Email,
		Name:          rec.Name,
		Phone:         rec.Phone,
		PasswordHash:  rec.PasswordHash,
		Role:          stayAuth.Role(rec.Role),
		TermsAccepted: rec.TermsAccepted,
		OTPHash:       rec.OTPHash,
		OTPExpiresAt:  rec.OTPExpiresAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if created, ok := vals[1].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			p.CreatedAt = t
		}
	}
	return p, nil
}
