package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is the server side state behind a session cookie
type Session struct {
	ID            string     `json:"id"`
	UserID        uint       `json:"user_id"`
	Role          string     `json:"role"`
	IP            string     `json:"ip"`
	UserAgent     string     `json:"user_agent"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
	OTPVerifiedAt *time.Time `json:"otp_verified_at,omitempty"`
}

// StepUpValid reports whether an OTP was verified within window of now
func (s *Session) StepUpValid(now time.Time, window time.Duration) bool {
	return s.OTPVerifiedAt != nil && now.Sub(*s.OTPVerifiedAt) <= window
}

// ClientMeta describes the client creating a session
type ClientMeta struct {
	IP        string
	UserAgent string
}

// UserSessionService stores sessions in Redis with a sliding TTL
type UserSessionService struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	secret string
	now    func() time.Time
}

// NewUserSessionService creates a session store
func NewUserSessionService(rdb redis.Cmdable, secret string, ttl time.Duration) *UserSessionService {
	return &UserSessionService{rdb: rdb, ttl: ttl, secret: secret, now: time.Now}
}

// TTL is the session lifetime
func (s *UserSessionService) TTL() time.Duration { return s.ttl }

func sessionKey(id string) string { return "session:" + id }

func userSessionsKey(uid uint) string { return "user:sessions:" + strconv.FormatUint(uint64(uid), 10) }

// Create starts a session and returns it with its signed token
func (s *UserSessionService) Create(ctx context.Context, user *domain.User, meta ClientMeta, otpVerified bool) (*Session, string, error) {
	now := s.now().UTC()
	sess := &Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Role:       user.Role,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if otpVerified {
		sess.OTPVerifiedAt = &now
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, "", err
	}
	if err := s.rdb.SAdd(ctx, userSessionsKey(user.ID), sess.ID).Err(); err != nil {
		return nil, "", fmt.Errorf("index session: %w", err)
	}
	token, err := utils.GenerateJWT(user.ID, sess.ID, s.secret, s.ttl)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}
	return sess, token, nil
}

func (s *UserSessionService) save(ctx context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get loads a live session
func (s *UserSessionService) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session expired: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Authenticate validates a token and returns its live session
func (s *UserSessionService) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := utils.ParseJWT(token, s.secret)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUnauthorized)
	}
	sess, err := s.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != claims.UserID {
		return nil, fmt.Errorf("session user mismatch: %w", ErrUnauthorized)
	}
	return sess, nil
}

// patchSession sets string fields on a stored session in one step, so concurrent
// writers never overwrite each other's fields. ARGV[1] is the new TTL in ms, 0 keeps the current one.
var patchSession = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return 0 end
local sess = cjson.decode(raw)
for i = 2, #ARGV, 2 do sess[ARGV[i]] = ARGV[i + 1] end
local ttl = tonumber(ARGV[1])
if ttl <= 0 then ttl = redis.call("PTTL", KEYS[1]) end
if ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(sess), "PX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(sess))
end
return 1
`)

func (s *UserSessionService) patch(ctx context.Context, id string, ttl time.Duration, fields ...string) error {
	args := make([]any, 0, len(fields)+1)
	args = append(args, ttl.Milliseconds())
	for _, f := range fields {
		args = append(args, f)
	}
	n, err := patchSession.Run(ctx, s.rdb, []string{sessionKey(id)}, args...).Int()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session expired: %w", ErrUnauthorized)
	}
	return nil
}

// Touch records activity and extends the session
func (s *UserSessionService) Touch(ctx context.Context, sess *Session) error {
	now := s.now().UTC()
	if err := s.patch(ctx, sess.ID, s.ttl, "last_seen_at", now.Format(time.RFC3339Nano)); err != nil {
		return err
	}
	sess.LastSeenAt = now
	return nil
}

// MarkOTPVerified records a successful step-up verification
func (s *UserSessionService) MarkOTPVerified(ctx context.Context, id string) (*Session, error) {
	now := s.now().UTC()
	if err := s.patch(ctx, id, 0, "otp_verified_at", now.Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetRole rewrites the cached role on every session of a user
func (s *UserSessionService) SetRole(ctx context.Context, uid uint, role string) error {
	sessions, err := s.List(ctx, uid)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if err := s.patch(ctx, sess.ID, 0, "role", role); err != nil && !errors.Is(err, ErrUnauthorized) {
			return err
		}
	}
	return nil
}

// Revoke ends one session
func (s *UserSessionService) Revoke(ctx context.Context, sess *Session) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(sess.ID))
	pipe.SRem(ctx, userSessionsKey(sess.UserID), sess.ID)
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeAll ends every session of a user and returns how many were live
func (s *UserSessionService) RevokeAll(ctx context.Context, uid uint) (int, error) {
	ids, err := s.rdb.SMembers(ctx, userSessionsKey(uid)).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	live := 0
	if len(ids) > 0 {
		n, err := s.rdb.Del(ctx, keys...).Result()
		if err != nil {
			return 0, err
		}
		live = int(n)
	}
	return live, s.rdb.Del(ctx, userSessionsKey(uid)).Err()
}

// List returns live sessions of a user, newest first, pruning expired ids
func (s *UserSessionService) List(ctx context.Context, uid uint) ([]Session, error) {
	ids, err := s.rdb.SMembers(ctx, userSessionsKey(uid)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrUnauthorized) {
			s.rdb.SRem(ctx, userSessionsKey(uid), id) // Expired, drop from the index
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
