package auth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fastParams = Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func newHasher(t *testing.T) *Argon2Hasher {
	t.Helper()
	h, err := NewArgon2Hasher(fastParams, logging.NopLogger{})
	require.NoError(t, err)
	return h
}

func TestNewArgon2Hasher_RejectsBadParams(t *testing.T) {
	for _, p := range []Argon2Params{
		{Time: 0, MemoryKiB: 1024, Threads: 1},
		{Time: 1, MemoryKiB: 1024, Threads: 0},
		{Time: 1, MemoryKiB: 4, Threads: 1},
	} {
		_, err := NewArgon2Hasher(p, logging.NopLogger{})
		assert.Error(t, err, "%+v", p)
	}
}

func TestHash_Format(t *testing.T) {
	h := newHasher(t)

	encoded, err := h.Hash("hunter2")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"), encoded)
	assert.Len(t, strings.Split(encoded, "$"), 6)
	assert.NotContains(t, encoded, "hunter2")
}

func TestHash_SaltedPerCall(t *testing.T) {
	h := newHasher(t)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify(context.Background(), "same", a))
	assert.True(t, h.Verify(context.Background(), "same", b))
}

func TestVerify_RoundTrip(t *testing.T) {
	h := newHasher(t)
	ctx := context.Background()

	for _, pw := range []string{"p", "correct horse battery staple", "пароль", strings.Repeat("x", 200)} {
		encoded, err := h.Hash(pw)
		require.NoError(t, err)
		assert.True(t, h.Verify(ctx, pw, encoded), pw)
		assert.False(t, h.Verify(ctx, pw+"!", encoded), pw)
	}
}

func TestVerify_HashFromOtherParamsStillVerifies(t *testing.T) {
	old, err := NewArgon2Hasher(Argon2Params{Time: 2, MemoryKiB: 512, Threads: 2, SaltLen: 8, KeyLen: 16}, logging.NopLogger{})
	require.NoError(t, err)
	encoded, err := old.Hash("secret")
	require.NoError(t, err)

	h := newHasher(t)
	assert.True(t, h.Verify(context.Background(), "secret", encoded))
	assert.True(t, h.NeedsRehash(encoded))
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	h := newHasher(t)
	ctx := context.Background()

	raw, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	encoded := string(raw)

	assert.True(t, h.Verify(ctx, "legacy-pass", encoded))
	assert.False(t, h.Verify(ctx, "legacy-pass2", encoded))
	assert.True(t, h.NeedsRehash(encoded))

	// $2a$ and $2y$ share the same algorithm
	for _, prefix := range []string{"$2a$", "$2y$"} {
		variant := prefix + strings.TrimPrefix(encoded, encoded[:4])
		assert.True(t, h.Verify(ctx, "legacy-pass", variant), prefix)
	}
}

func TestVerify_MalformedNeverMatchesAndIsLogged(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewArgon2Hasher(fastParams, logging.NewJSON(&buf, "debug", "test"))
	require.NoError(t, err)

	good, err := h.Hash("pw")
	require.NoError(t, err)
	parts := strings.Split(good, "$")

	cases := map[string]string{
		"empty":           "",
		"plain text":      "pw",
		"unknown scheme":  "$md5$abc",
		"truncated":       strings.Join(parts[:5], "$"),
		"bad version":     strings.Replace(good, "v=19", "v=16", 1),
		"bad params":      strings.Replace(good, "m=1024,t=1,p=1", "m=x,t=1,p=1", 1),
		"zero time":       strings.Replace(good, "t=1", "t=0", 1),
		"bad salt":        strings.Join(append(parts[:4:4], "!!!", parts[5]), "$"),
		"bad key":         strings.Join(append(parts[:5:5], "***"), "$"),
		"truncated bcrypt": "$2b$10$short",
	}
	for name, encoded := range cases {
		assert.False(t, h.Verify(context.Background(), "pw", encoded), name)
		assert.True(t, h.NeedsRehash(encoded), name)
	}

	out := buf.String()
	assert.Contains(t, out, "malformed")
	assert.NotContains(t, out, parts[5])
}

func TestNeedsRehash_CurrentParams(t *testing.T) {
	h := newHasher(t)

	encoded, err := h.Hash("pw")
	require.NoError(t, err)
	assert.False(t, h.NeedsRehash(encoded))
}

func TestDummy_VerifiesNothingUseful(t *testing.T) {
	h := newHasher(t)

	assert.NotEmpty(t, h.Dummy())
	assert.False(t, h.NeedsRehash(h.Dummy()))
	assert.False(t, h.Verify(context.Background(), "", h.Dummy()))
	assert.False(t, h.Verify(context.Background(), "password", h.Dummy()))
}

func TestVerify_Concurrent(t *testing.T) {
	h := newHasher(t)
	encoded, err := h.Hash("shared")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.Verify(context.Background(), "shared", encoded)
		}()
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, i)
	}
}
