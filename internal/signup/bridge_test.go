package signup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV is an in-memory KV with TTL bookkeeping.
type fakeKV struct {
	data map[string]string
	ttls map[string]time.Duration
	fail bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	if f.fail {
		return "", errors.New("kv down")
	}
	return f.data[key], nil
}

func (f *fakeKV) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.fail {
		return errors.New("kv down")
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if f.fail {
		return errors.New("kv down")
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	if f.fail {
		return errors.New("kv down")
	}
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return nil
}

func TestIssueAndResolve(t *testing.T) {
	kv := newFakeKV()
	b := NewBridge(kv, 10*time.Minute)
	ctx := context.Background()

	token, err := b.IssueOrReuse(ctx, "TAG1")
	require.NoError(t, err)
	assert.Len(t, token, 40, "token is 20 random bytes hex encoded")

	tag, err := b.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "TAG1", tag)
}

func TestIssueReusesLiveToken(t *testing.T) {
	kv := newFakeKV()
	b := NewBridge(kv, 10*time.Minute)
	ctx := context.Background()

	first, err := b.IssueOrReuse(ctx, "TAG1")
	require.NoError(t, err)

	// Pretend time passed by shrinking the recorded TTLs.
	kv.ttls[tokenPrefix+first] = time.Minute
	kv.ttls[reversePrefix+"TAG1"] = time.Minute

	second, err := b.IssueOrReuse(ctx, "TAG1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "repeated scans reuse the live token")
	assert.Equal(t, 10*time.Minute, kv.ttls[tokenPrefix+first], "reuse refreshes the token TTL")
	assert.Equal(t, 10*time.Minute, kv.ttls[reversePrefix+"TAG1"], "reuse refreshes the reverse TTL")
}

func TestDistinctTagsGetDistinctTokens(t *testing.T) {
	kv := newFakeKV()
	b := NewBridge(kv, 10*time.Minute)
	ctx := context.Background()

	t1, err := b.IssueOrReuse(ctx, "TAG1")
	require.NoError(t, err)
	t2, err := b.IssueOrReuse(ctx, "TAG2")
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestConsumeInvalidatesBothDirections(t *testing.T) {
	kv := newFakeKV()
	b := NewBridge(kv, 10*time.Minute)
	ctx := context.Background()

	token, err := b.IssueOrReuse(ctx, "TAG1")
	require.NoError(t, err)

	require.NoError(t, b.Consume(ctx, token, "TAG1"))

	tag, err := b.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, tag, "consumed token no longer resolves")

	fresh, err := b.IssueOrReuse(ctx, "TAG1")
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh, "next scan mints a new token")
}

func TestResolveUnknownToken(t *testing.T) {
	b := NewBridge(newFakeKV(), 10*time.Minute)
	tag, err := b.Resolve(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, tag)
}

func TestIssueFailsWhenKVDown(t *testing.T) {
	kv := newFakeKV()
	kv.fail = true
	b := NewBridge(kv, 10*time.Minute)

	_, err := b.IssueOrReuse(context.Background(), "TAG1")
	require.Error(t, err)
}

func TestFormURL(t *testing.T) {
	assert.Equal(t, "https://portal.example.edu/entry-form?token=abc",
		FormURL("https://portal.example.edu/", "abc"))
	assert.Equal(t, "https://portal.example.edu/entry-form?token=abc",
		FormURL("https://portal.example.edu", "abc"))
}
