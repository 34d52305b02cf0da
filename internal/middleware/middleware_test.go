package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/internal/token"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "missing header", header: "", keep: false},
		{name: "client id kept", header: "existing-request-id-123", keep: true},
		{name: "trace style id kept", header: "svc.web:0001_a", keep: true},
		{name: "spaces rejected", header: "hello world", keep: false},
		{name: "too long rejected", header: strings.Repeat("a", 129), keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID())
			r.GET("/test", func(c *gin.Context) {
				assert.Equal(t, GetRequestID(c), RequestIDFromContext(c.Request.Context()))
				c.String(http.StatusOK, GetRequestID(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			require.NotEmpty(t, got)
			assert.Equal(t, got, w.Body.String())
			if tt.keep {
				assert.Equal(t, tt.header, got)
			} else {
				assert.NotEqual(t, tt.header, got)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	newRouter := func(origins []string) *gin.Engine {
		r := gin.New()
		r.Use(CORS(DefaultCORSConfig(origins)))
		r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		return r
	}

	t.Run("allowed origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		newRouter([]string{"http://localhost:3000"}).ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Authorization")
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Set-Cookie")
	})

	t.Run("unknown origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://evil.example")
		newRouter([]string{"http://localhost:3000"}).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard echoes origin with credentials", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://app.example")
		newRouter([]string{"*"}).ServeHTTP(w, req)

		assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		newRouter([]string{"http://localhost:3000"}).ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status %d for preflight, got %d", http.StatusNoContent, w.Code)
		}
	})
}

type identityStore struct {
	byEmail map[string]*security.Identity
}

func (s *identityStore) FindIdentityByEmail(_ context.Context, email string) (*security.Identity, error) {
	return s.byEmail[email], nil
}

func (s *identityStore) FindIdentityByUsername(_ context.Context, username string) (*security.Identity, error) {
	for _, id := range s.byEmail {
		if id.Username == username {
			return id, nil
		}
	}
	return nil, nil
}

type authFixture struct {
	router  *gin.Engine
	tokens  *token.Service
	clock   *time.Time
	codes   []string
	visited bool
	seen    *security.Identity
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	f := &authFixture{clock: &now}

	tokens, err := token.NewService(token.Config{
		Secret:     base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")),
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, token.WithNowFunc(func() time.Time { return *f.clock }))
	require.NoError(t, err)
	f.tokens = tokens

	id := int64(11)
	store := &identityStore{byEmail: map[string]*security.Identity{
		"alice@example.com": {ID: &id, Username: "alice", Email: "alice@example.com"},
	}}
	policy := security.NewStrictBearerPolicy(tokens, security.DefaultChain(store))

	f.router = gin.New()
	f.router.Use(Auth(policy, security.NewWhitelist(security.DefaultWhitelist...), logger.Nop(), func(code string) {
		f.codes = append(f.codes, code)
	}))
	handler := func(c *gin.Context) {
		f.visited = true
		f.seen, _ = GetIdentity(c)
		c.Status(http.StatusOK)
	}
	f.router.GET("/api/mypage", handler)
	f.router.POST("/api/auth/login", handler)
	f.router.GET("/ws/*any", handler)
	return f
}

func (f *authFixture) do(method, path, authorization string) *httptest.ResponseRecorder {
	f.visited, f.seen = false, nil
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func (f *authFixture) bearer(t *testing.T, username, email string) string {
	t.Helper()
	raw, err := f.tokens.Issue(token.Subject{Username: username, Email: email}, token.CategoryAccess)
	require.NoError(t, err)
	return "Bearer " + raw
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *response.ErrorData {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error
}

func TestAuth_WhitelistBypass(t *testing.T) {
	f := newAuthFixture(t)

	for _, path := range []string{"/api/auth/login", "/ws/info"} {
		method := http.MethodGet
		if path == "/api/auth/login" {
			method = http.MethodPost
		}
		w := f.do(method, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.True(t, f.visited, path)
		assert.Nil(t, f.seen, path)
	}

	// garbage credentials on a whitelisted path are ignored too
	w := f.do(http.MethodPost, "/api/auth/login", "Bearer junk")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_Rejections(t *testing.T) {
	f := newAuthFixture(t)

	tests := []struct {
		name   string
		header func() string
		code   string
	}{
		{name: "missing header", header: func() string { return "" }, code: response.CodeMissingToken},
		{name: "not bearer", header: func() string { return "Basic abc" }, code: response.CodeMissingToken},
		{name: "malformed", header: func() string { return "Bearer a.b.c" }, code: response.CodeInvalidToken},
		{
			name: "tampered",
			header: func() string {
				return f.bearer(t, "alice", "alice@example.com") + "AA"
			},
			code: response.CodeInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodGet, "/api/mypage", tt.header())
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, f.visited)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
	assert.Len(t, f.codes, len(tests))
}

func TestAuth_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	header := f.bearer(t, "alice", "alice@example.com")

	*f.clock = f.clock.Add(31 * time.Minute)
	w := f.do(http.MethodGet, "/api/mypage", header)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, f.visited)
	assert.Equal(t, response.CodeTokenExpired, decodeError(t, w).Code)
}

func TestAuth_BindsPersistedIdentity(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(http.MethodGet, "/api/mypage", f.bearer(t, "alice", "alice@example.com"))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.seen)
	require.NotNil(t, f.seen.ID)
	assert.Equal(t, int64(11), *f.seen.ID)
	assert.Equal(t, "alice", f.seen.Username)
}

func TestAuth_SynthesizesUnknownIdentity(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(http.MethodGet, "/api/mypage", f.bearer(t, "ghost", "ghost@example.com"))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.seen)
	assert.Nil(t, f.seen.ID)
	assert.Equal(t, "ghost", f.seen.Username)
	assert.Equal(t, "ghost@example.com", f.seen.Email)
}

func TestAuth_NoLeakBetweenRequests(t *testing.T) {
	f := newAuthFixture(t)

	f.do(http.MethodGet, "/api/mypage", f.bearer(t, "alice", "alice@example.com"))
	require.NotNil(t, f.seen)

	w := f.do(http.MethodGet, "/api/mypage", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, f.seen)
}

type memoryRedis struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: make(map[string][]byte)}
}

func toBytes(v interface{}) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return []byte(fmt.Sprint(b))
	}
}

func (m *memoryRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return goredis.NewStringResult("", m.fail)
	}
	v, ok := m.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (m *memoryRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *goredis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = toBytes(value)
	return goredis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *goredis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	m.data[key] = toBytes(value)
	return goredis.NewBoolResult(true, nil)
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func TestIdempotency(t *testing.T) {
	store := newMemoryRedis()
	calls := 0
	status := http.StatusOK

	r := gin.New()
	r.POST("/api/recipe/generate", Idempotency(IdempotencyConfig{Store: store}), func(c *gin.Context) {
		calls++
		c.JSON(status, gin.H{"call": calls})
	})

	send := func(key, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/recipe/generate", strings.NewReader(body))
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("no key passes through", func(t *testing.T) {
		send("", "a")
		send("", "a")
		assert.Equal(t, 2, calls)
	})

	t.Run("replays completed response", func(t *testing.T) {
		calls = 0
		first := send("k1", "payload")
		second := send("k1", "payload")

		assert.Equal(t, 1, calls)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	})

	t.Run("different body with same key", func(t *testing.T) {
		w := send("k1", "other payload")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("in flight", func(t *testing.T) {
		send("k2", "x")
		var record idempotencyRecord
		require.NoError(t, json.Unmarshal(store.data[idempotencyStoreKey("", "k2")], &record))
		record.Status = statusProcessing
		store.data[idempotencyStoreKey("", "k2")], _ = json.Marshal(record)

		w := send("k2", "x")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("server errors release the key", func(t *testing.T) {
		calls = 0
		status = http.StatusInternalServerError
		send("k3", "body")
		status = http.StatusOK
		w := send("k3", "body")

		assert.Equal(t, 2, calls)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("store failure fails open", func(t *testing.T) {
		calls = 0
		store.fail = fmt.Errorf("connection refused")
		defer func() { store.fail = nil }()

		w := send("k4", "body")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, calls)
	})
}

func TestIdempotency_KeysScopedPerCaller(t *testing.T) {
	store := newMemoryRedis()
	calls := 0

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if name := c.GetHeader("X-Test-User"); name != "" {
			c.Set(IdentityKey, &security.Identity{Username: name})
		}
	})
	r.POST("/api/recipe/generate", Idempotency(IdempotencyConfig{Store: store}), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"call": calls, "user": c.GetHeader("X-Test-User")})
	})

	send := func(user, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/recipe/generate", strings.NewReader(body))
		req.Header.Set(IdempotencyKeyHeader, "same-key")
		req.Header.Set("X-Test-User", user)
		r.ServeHTTP(w, req)
		return w
	}

	alice := send("alice", `{"recipe":"soup"}`)
	bob := send("bob", `{"recipe":"salad"}`)

	require.Equal(t, http.StatusOK, alice.Code)
	require.Equal(t, http.StatusOK, bob.Code)
	assert.Empty(t, bob.Header().Get("Idempotent-Replayed"))
	assert.Contains(t, bob.Body.String(), `"user":"bob"`)
	assert.Equal(t, 2, calls)
	assert.Contains(t, store.data, idempotencyStoreKey("alice", "same-key"))
	assert.Contains(t, store.data, idempotencyStoreKey("bob", "same-key"))

	replayed := send("alice", `{"recipe":"soup"}`)
	assert.Equal(t, "true", replayed.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_BodyLimit(t *testing.T) {
	store := newMemoryRedis()
	calls := 0

	r := gin.New()
	r.POST("/api/recipe/generate", Idempotency(IdempotencyConfig{Store: store, MaxBodyBytes: 16}), func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/recipe/generate", strings.NewReader(strings.Repeat("x", 17)))
	req.Header.Set(IdempotencyKeyHeader, "big")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, calls)
	assert.Empty(t, store.data)
}
