package security

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/realqkqk123fr/temp-backend/internal/token"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
)

type memoryStore struct {
	byEmail    map[string]*Identity
	byUsername map[string]*Identity
	err        error
	calls      []string
}

func newMemoryStore(ids ...*Identity) *memoryStore {
	s := &memoryStore{
		byEmail:    make(map[string]*Identity),
		byUsername: make(map[string]*Identity),
	}
	for _, id := range ids {
		s.byEmail[id.Email] = id
		s.byUsername[id.Username] = id
	}
	return s
}

func (s *memoryStore) FindIdentityByEmail(_ context.Context, email string) (*Identity, error) {
	s.calls = append(s.calls, "email:"+email)
	if s.err != nil {
		return nil, s.err
	}
	return s.byEmail[email], nil
}

func (s *memoryStore) FindIdentityByUsername(_ context.Context, username string) (*Identity, error) {
	s.calls = append(s.calls, "username:"+username)
	if s.err != nil {
		return nil, s.err
	}
	return s.byUsername[username], nil
}

func int64Ptr(v int64) *int64 { return &v }

func newTokens(t *testing.T, now func() time.Time) *token.Service {
	t.Helper()
	opts := []token.Option{}
	if now != nil {
		opts = append(opts, token.WithNowFunc(now))
	}
	svc, err := token.NewService(token.Config{
		Secret:     base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")),
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, opts...)
	require.NoError(t, err)
	return svc
}

func bearer(t *testing.T, svc *token.Service, username, email string) string {
	t.Helper()
	raw, err := svc.Issue(token.Subject{Username: username, Email: email}, token.CategoryAccess)
	require.NoError(t, err)
	return "Bearer " + raw
}

func TestContext(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)

	id := &Identity{Username: "alice"}
	got, ok := FromContext(WithIdentity(ctx, id))
	require.True(t, ok)
	assert.Same(t, id, got)

	_, ok = FromContext(WithIdentity(ctx, nil))
	assert.False(t, ok)
}

func TestIdentity_Persisted(t *testing.T) {
	var nilID *Identity
	assert.False(t, nilID.Persisted())
	assert.Equal(t, "", nilID.Name())
	assert.False(t, (&Identity{Username: "ghost"}).Persisted())
	assert.True(t, (&Identity{ID: int64Ptr(1), Username: "alice"}).Persisted())
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi", ok: true},
		{header: "bearer abc", want: "abc", ok: true},
		{header: "Bearer    abc  ", want: "abc", ok: true},
		{header: "Bearer ", ok: false},
		{header: "Basic dXNlcjpwYXNz", ok: false},
		{header: "abc.def.ghi", ok: false},
		{header: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChain_Order(t *testing.T) {
	alice := &Identity{ID: int64Ptr(1), Username: "alice", Email: "alice@example.com"}
	bob := &Identity{ID: int64Ptr(2), Username: "bob", Email: "bob@example.com"}

	t.Run("email wins over username", func(t *testing.T) {
		store := newMemoryStore(alice, bob)
		id, err := DefaultChain(store).Resolve(context.Background(), &token.Claims{
			Username: "bob",
			Email:    "alice@example.com",
		})
		require.NoError(t, err)
		assert.Same(t, alice, id)
		assert.Equal(t, []string{"email:alice@example.com"}, store.calls)
	})

	t.Run("falls back to username", func(t *testing.T) {
		store := newMemoryStore(bob)
		id, err := DefaultChain(store).Resolve(context.Background(), &token.Claims{
			Username: "bob",
			Email:    "renamed@example.com",
		})
		require.NoError(t, err)
		assert.Same(t, bob, id)
	})

	t.Run("synthesizes when both miss", func(t *testing.T) {
		store := newMemoryStore()
		id, err := DefaultChain(store).Resolve(context.Background(), &token.Claims{
			Subject: "ghost",
			Email:   "ghost@example.com",
		})
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Nil(t, id.ID)
		assert.Equal(t, "ghost", id.Username)
		assert.Equal(t, "ghost@example.com", id.Email)
	})

	t.Run("store error stops the chain", func(t *testing.T) {
		store := newMemoryStore()
		store.err = errors.New("connection refused")
		id, err := DefaultChain(store).Resolve(context.Background(), &token.Claims{Username: "x", Email: "x@example.com"})
		assert.Error(t, err)
		assert.Nil(t, id)
	})

	t.Run("empty chain", func(t *testing.T) {
		id, err := Chain{}.Resolve(context.Background(), &token.Claims{})
		assert.NoError(t, err)
		assert.Nil(t, id)
	})
}

func TestStrictBearerPolicy(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tokens := newTokens(t, clock)
	alice := &Identity{ID: int64Ptr(7), Username: "alice", Email: "alice@example.com"}
	policy := NewStrictBearerPolicy(tokens, DefaultChain(newMemoryStore(alice)))
	header := bearer(t, tokens, "alice", "alice@example.com")

	t.Run("valid", func(t *testing.T) {
		id, err := policy.Authenticate(context.Background(), header)
		require.NoError(t, err)
		assert.Same(t, alice, id)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := policy.Authenticate(context.Background(), "")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := policy.Authenticate(context.Background(), "Bearer nope")
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemoryStore()
		store.err = errors.New("db down")
		p := NewStrictBearerPolicy(tokens, DefaultChain(store))
		_, err := p.Authenticate(context.Background(), header)
		assert.ErrorIs(t, err, ErrUnresolvedIdentity)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		p := NewStrictBearerPolicy(tokens, Chain{ByEmail(newMemoryStore())})
		_, err := p.Authenticate(context.Background(), header)
		assert.ErrorIs(t, err, ErrUnresolvedIdentity)
	})

	t.Run("expired", func(t *testing.T) {
		later := now.Add(2 * time.Hour)
		expiredTokens := newTokens(t, func() time.Time { return later })
		p := NewStrictBearerPolicy(expiredTokens, DefaultChain(newMemoryStore(alice)))
		_, err := p.Authenticate(context.Background(), header)
		assert.ErrorIs(t, err, token.ErrTokenExpired)
	})
}

func TestLenientBearerPolicy(t *testing.T) {
	tokens := newTokens(t, nil)
	core, logs := observer.New(zapcore.DebugLevel)
	policy := NewLenientBearerPolicy(tokens, DefaultChain(newMemoryStore()), logger.New(zap.New(core)))

	id := policy.Authenticate(context.Background(), bearer(t, tokens, "carol", "carol@example.com"))
	require.NotNil(t, id)
	assert.Equal(t, "carol", id.Name())

	assert.Nil(t, policy.Authenticate(context.Background(), ""))
	assert.Nil(t, policy.Authenticate(context.Background(), "Bearer garbage"))

	assert.Equal(t, 1, logs.FilterMessage("bearer token rejected, continuing anonymous").Len())
	assert.Equal(t, 1, logs.FilterMessage("no bearer token presented").Len())
}

func TestWhitelist(t *testing.T) {
	w := NewWhitelist(DefaultWhitelist...)

	allowed := []string{
		"/api/auth/login",
		"/api/auth/register",
		"/docs",
		"/docs/index.html",
		"/v3/api-docs/swagger-config",
		"/ws",
		"/ws/info",
		"/ws/123/abcd/websocket",
		"/topic/news",
		"/queue/messages",
		"/app/chat.sendMessage",
		"/health",
		"/metrics",
		"/api/auth/login/",
	}
	for _, p := range allowed {
		assert.True(t, w.Allows(p), "expected %s to be whitelisted", p)
	}

	denied := []string{
		"/",
		"/api/mypage",
		"/api/auth/logout",
		"/api/auth/login/extra",
		"/wsx",
		"/api/recipe/1/nutrition",
		"/ws/../api/mypage",
	}
	for _, p := range denied {
		assert.False(t, w.Allows(p), "expected %s to require auth", p)
	}
}

func TestWhitelist_SingleStar(t *testing.T) {
	w := NewWhitelist("/api/recipe/*/public", "/files/*.png")

	assert.True(t, w.Allows("/api/recipe/42/public"))
	assert.False(t, w.Allows("/api/recipe/42/7/public"))
	assert.True(t, w.Allows("/files/a.png"))
	assert.False(t, w.Allows("/files/a.jpg"))

	var nilList *Whitelist
	assert.False(t, nilList.Allows("/health"))
}
