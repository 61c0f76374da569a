package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radicle-dev/workstreams-api/internal/domain"
	"github.com/radicle-dev/workstreams-api/internal/siwe"
)

// Custom errors
var (
	ErrMissingExpiration = errors.New("sign-in message has no expiration time")
	ErrMessageExpired    = errors.New("sign-in message has already expired")
	ErrNotYetValid       = errors.New("sign-in message is not yet valid")
	ErrUnauthenticated   = errors.New("no session token presented")
	ErrSessionNotFound   = errors.New("session not found")
)

// Clock supplies the current time; injected so expiry and not-before checks
// are deterministic under test.
type Clock func() time.Time

// Store is a key-value namespace as seen by the services. Satisfied by
// *kv.Namespace.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const saltLength = 32

type AuthService struct {
	sessions Store
	now      Clock
}

func NewAuthService(sessions Store, clock Clock) *AuthService {
	if clock == nil {
		clock = time.Now
	}
	return &AuthService{
		sessions: sessions,
		now:      clock,
	}
}

// Create verifies a signed sign-in message and mints an opaque session token.
//
// The token is SHA-256 over the serialized record followed by 32 bytes of
// fresh random salt, rendered as uppercase hex. The salt makes tokens
// unguessable and unlinkable across repeated sign-ins of the same address;
// the input order (record, then salt) is fixed so the format is reproducible.
// The record's store TTL equals the message's remaining lifetime, so the
// session vanishes exactly when the signed message expires.
func (s *AuthService) Create(ctx context.Context, rawMessage, rawSignature string) (string, *domain.SessionRecord, error) {
	message, err := siwe.ParseMessage(rawMessage)
	if err != nil {
		return "", nil, err
	}
	if err := message.Verify(rawSignature); err != nil {
		return "", nil, err
	}

	now := s.now()

	// A message without an expiration would produce a session that never
	// dies; reject it outright instead of defaulting to unbounded.
	if message.ExpirationTime == nil {
		return "", nil, ErrMissingExpiration
	}
	ttl := message.ExpirationTime.Sub(now)
	if ttl <= 0 {
		return "", nil, ErrMessageExpired
	}
	if message.NotBefore != nil && message.NotBefore.After(now) {
		return "", nil, ErrNotYetValid
	}

	record := domain.SessionRecord{
		Resources:      message.Resources,
		IssuedAt:       message.IssuedAt,
		ExpirationTime: message.ExpirationTime,
		NotBefore:      message.NotBefore,
		Address:        message.Address,
	}

	serialized, err := json.Marshal(record)
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize session record: %w", err)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", nil, fmt.Errorf("failed to generate token salt: %w", err)
	}

	hasher := sha256.New()
	hasher.Write(serialized)
	hasher.Write(salt)
	token := fmt.Sprintf("%X", hasher.Sum(nil))

	if err := s.sessions.Put(ctx, token, serialized, ttl); err != nil {
		return "", nil, err
	}

	return token, &record, nil
}

// Session loads the record behind a token. An empty token fails before any
// store lookup. A store miss is ErrSessionNotFound whether the session
// expired or never existed; the two are deliberately indistinguishable.
func (s *AuthService) Session(ctx context.Context, token string) (*domain.SessionRecord, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	value, found, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	var record domain.SessionRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	return &record, nil
}

// Authorize reports whether the session behind token may act on resources
// owned by owner. Exact address equality is the sole policy; the resource
// list carried in the record is informational only.
func (s *AuthService) Authorize(ctx context.Context, token string, owner common.Address) (bool, error) {
	record, err := s.Session(ctx, token)
	if err != nil {
		return false, err
	}
	return record.Address == owner, nil
}
