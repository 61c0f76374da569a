package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SessionRecord is the value stored under a session token. It is built once,
// from a verified sign-in message, and never mutated afterwards; the store's
// per-key TTL is the only thing that ends its life.
type SessionRecord struct {
	Resources      []string       `json:"resources"`
	IssuedAt       time.Time      `json:"issued_at"`
	ExpirationTime *time.Time     `json:"expiration_time,omitempty"`
	NotBefore      *time.Time     `json:"not_before,omitempty"`
	Address        common.Address `json:"address"`
}
