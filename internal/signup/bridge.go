// Package signup bridges an anonymous RFID scan to a web form through a
// short-lived opaque token held in a key-value store.
package signup

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Key prefixes for the two directions of the mapping.
const (
	tokenPrefix   = "entry:token:"
	reversePrefix = "entry:rfid:"
)

// KV is the key-value surface the bridge needs. store.Redis satisfies
// it. Get returns "" for a missing key rather than an error.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Bridge issues, resolves and consumes signup tokens. Both directions
// of the token<->tag mapping carry the same TTL, refreshed on reuse.
//
// The pair is not written atomically: a crash between the two SETs can
// leave a token that resolves but is never reused. The orphan expires
// with its TTL and the next scan mints a fresh pair.
type Bridge struct {
	kv  KV
	ttl time.Duration
}

// NewBridge creates a bridge with the given token lifetime.
func NewBridge(kv KV, ttl time.Duration) *Bridge {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Bridge{kv: kv, ttl: ttl}
}

// IssueOrReuse returns the live token for a tag, refreshing its TTL, or
// mints a new one. Reuse keeps a previously distributed form link valid
// across repeated scans of the same tag.
func (b *Bridge) IssueOrReuse(ctx context.Context, tag string) (string, error) {
	existing, err := b.kv.Get(ctx, reversePrefix+tag)
	if err != nil {
		return "", err
	}
	if existing != "" {
		if err := b.kv.Expire(ctx, tokenPrefix+existing, b.ttl); err != nil {
			return "", err
		}
		if err := b.kv.Expire(ctx, reversePrefix+tag, b.ttl); err != nil {
			return "", err
		}
		return existing, nil
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := b.kv.SetEx(ctx, tokenPrefix+token, tag, b.ttl); err != nil {
		return "", err
	}
	if err := b.kv.SetEx(ctx, reversePrefix+tag, token, b.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve maps a token back to its tag. Returns "" when the token is
// expired or was never issued.
func (b *Bridge) Resolve(ctx context.Context, token string) (string, error) {
	return b.kv.Get(ctx, tokenPrefix+token)
}

// Consume deletes both directions of the mapping after the form
// submission has been applied. Cleanup only; not transactional with the
// user upsert.
func (b *Bridge) Consume(ctx context.Context, token, tag string) error {
	return b.kv.Del(ctx, tokenPrefix+token, reversePrefix+tag)
}

// FormURL builds the frontend form link for a token.
func FormURL(base, token string) string {
	return fmt.Sprintf("%s/entry-form?token=%s", strings.TrimRight(base, "/"), token)
}

func newToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
