package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

const (
	// IdempotencyKeyHeader lets clients retry an expensive POST safely
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// IdempotencyKeyPrefix namespaces records in redis
	IdempotencyKeyPrefix = "idempotency:"

	DefaultIdempotencyTTL = 5 * time.Minute
	DefaultProcessingTTL  = 2 * time.Minute
	// DefaultMaxBodyBytes leaves room for a 10MB image plus multipart framing
	DefaultMaxBodyBytes = 12 << 20
)

type idempotencyStatus string

const (
	statusProcessing idempotencyStatus = "processing"
	statusCompleted  idempotencyStatus = "completed"
)

type idempotencyRecord struct {
	Status       idempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ContentType  string            `json:"content_type"`
	ResponseBody []byte            `json:"response_body"`
	CreatedAt    time.Time         `json:"created_at"`
}

// IdempotencyStore is satisfied by pkg/redis.Client
type IdempotencyStore interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	Store IdempotencyStore
	// TTL of completed records
	TTL time.Duration
	// ProcessingTTL bounds how long an in-flight marker blocks retries
	ProcessingTTL time.Duration
	// MaxBodyBytes caps the body buffered for hashing and replay
	MaxBodyBytes int64
	Log          *logger.Logger
}

// Idempotency replays the stored response when a request with the same
// X-Idempotency-Key and body arrives again from the same caller. Keys are
// scoped per caller. Requests without the header pass through. Store
// failures fail open.
func Idempotency(config IdempotencyConfig) gin.HandlerFunc {
	if config.TTL <= 0 {
		config.TTL = DefaultIdempotencyTTL
	}
	if config.ProcessingTTL <= 0 {
		config.ProcessingTTL = DefaultProcessingTTL
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.Log == nil {
		config.Log = logger.Nop()
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" || config.Store == nil {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					response.Abort(c, http.StatusRequestEntityTooLarge, response.CodeInvalidRequest, "request body too large")
					return
				}
				response.Abort(c, http.StatusBadRequest, response.CodeInvalidRequest, "could not read request body")
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		ctx := c.Request.Context()
		storeKey := idempotencyStoreKey(callerName(c), key)
		hash := requestHash(c, body)

		existing, err := loadRecord(ctx, config.Store, storeKey)
		if err != nil && !errors.Is(err, goredis.Nil) {
			config.Log.Warn("idempotency lookup failed, continuing", zap.Error(err))
			c.Next()
			return
		}
		if existing == nil {
			record := &idempotencyRecord{Status: statusProcessing, RequestHash: hash, CreatedAt: time.Now()}
			acquired, err := storeRecordNX(ctx, config.Store, storeKey, record, config.ProcessingTTL)
			if err != nil {
				config.Log.Warn("idempotency reserve failed, continuing", zap.Error(err))
				c.Next()
				return
			}
			if acquired {
				runAndRecord(c, config, storeKey, record)
				return
			}
			// lost the race, treat like a replay
			existing, _ = loadRecord(ctx, config.Store, storeKey)
			if existing == nil {
				c.Next()
				return
			}
		}

		replay(c, existing, hash)
	}
}

func runAndRecord(c *gin.Context, config IdempotencyConfig, storeKey string, record *idempotencyRecord) {
	rw := &capturingWriter{ResponseWriter: c.Writer}
	c.Writer = rw

	c.Next()

	ctx := context.WithoutCancel(c.Request.Context())
	status := rw.Status()
	if status >= http.StatusInternalServerError {
		// let the client retry after a server failure
		if err := config.Store.Del(ctx, storeKey).Err(); err != nil {
			config.Log.Warn("idempotency release failed", zap.Error(err))
		}
		return
	}

	record.Status = statusCompleted
	record.ResponseCode = status
	record.ContentType = rw.Header().Get("Content-Type")
	record.ResponseBody = rw.body.Bytes()
	if err := storeRecord(ctx, config.Store, storeKey, record, config.TTL); err != nil {
		config.Log.Warn("idempotency save failed", zap.Error(err))
	}
}

func replay(c *gin.Context, record *idempotencyRecord, hash string) {
	switch {
	case record.RequestHash != hash:
		response.Abort(c, http.StatusUnprocessableEntity, response.CodeDuplicateRequest, "Idempotency key already used with a different request")
	case record.Status == statusProcessing:
		response.Abort(c, http.StatusConflict, response.CodeDuplicateRequest, "A request with this idempotency key is still being processed")
	default:
		contentType := record.ContentType
		if contentType == "" {
			contentType = "application/json; charset=utf-8"
		}
		c.Header("Idempotent-Replayed", "true")
		c.Data(record.ResponseCode, contentType, record.ResponseBody)
		c.Abort()
	}
}

// idempotencyStoreKey namespaces key by caller so two users picking the same
// key never see each other's records
func idempotencyStoreKey(caller, key string) string {
	if caller == "" {
		caller = "-"
	}
	return IdempotencyKeyPrefix + caller + ":" + key
}

func callerName(c *gin.Context) string {
	if id, ok := GetIdentity(c); ok {
		return id.Name()
	}
	return ""
}

func requestHash(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte(c.Request.URL.Path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func loadRecord(ctx context.Context, store IdempotencyStore, key string) (*idempotencyRecord, error) {
	raw, err := store.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var record idempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func storeRecordNX(ctx context.Context, store IdempotencyStore, key string, record *idempotencyRecord, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, data, ttl).Result()
}

func storeRecord(ctx context.Context, store IdempotencyStore, key string, record *idempotencyRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, data, ttl).Err()
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
