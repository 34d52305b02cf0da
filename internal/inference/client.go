// Package inference is the HTTP client of the external AI service that
// generates recipes, estimates nutrition and answers chat messages.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/pkg/config"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/retry"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

// maxErrorBody bounds how much of a failed response is kept for logs
const maxErrorBody = 2048

var (
	// ErrUpstream marks a non-2xx answer from the inference service
	ErrUpstream = errors.New("inference service returned an error")
	// ErrUnavailable marks transport failures and timeouts
	ErrUnavailable = errors.New("inference service unavailable")
)

// UpstreamError carries the status of a non-2xx answer
type UpstreamError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", ErrUpstream, e.Endpoint, e.Status)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// IsNotFound reports whether err is a 404 from the inference service
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusNotFound
}

// Observer is notified after every call, successful or not
type Observer func(endpoint string, err error, elapsed time.Duration)

// Client defines the calls made to the inference service
type Client interface {
	GenerateRecipe(ctx context.Context, req *GenerateRequest) (*Recipe, error)
	SubstituteIngredient(ctx context.Context, req *SubstituteRequest) (*Recipe, error)
	GetRecipe(ctx context.Context, recipeID int64) (*Recipe, error)
	GetNutrition(ctx context.Context, recipeID int64) (*Nutrition, error)
	Chat(ctx context.Context, req *ChatRequest) (*ChatReply, error)
	SendUserInfo(ctx context.Context, info *UserInfo) error
}

// Option configures the client
type Option func(*client)

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

// WithRetryConfig overrides the backoff of GET calls
func WithRetryConfig(rc retry.Config) Option {
	return func(c *client) { c.retry = rc }
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(c *client) { c.log = log }
}

// WithObserver registers a call observer, used for metrics
func WithObserver(o Observer) Option {
	return func(c *client) { c.observe = o }
}

type client struct {
	cfg     config.InferenceConfig
	http    *http.Client
	retry   retry.Config
	log     *logger.Logger
	observe Observer
}

// NewClient creates a new inference client
func NewClient(cfg config.InferenceConfig, opts ...Option) Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = cfg.Timeout
	}

	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries

	c := &client{
		cfg:   cfg,
		retry: rc,
		log:   logger.Nop(),
		http: &http.Client{
			Transport: otelhttp.NewTransport(&http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   20,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: time.Second,
			}),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) GenerateRecipe(ctx context.Context, req *GenerateRequest) (*Recipe, error) {
	ctx, span := telemetry.StartSpan(ctx, "inference.recipe.generate")
	defer span.End()
	span.SetAttributes(attribute.String("username", req.Username))

	form := newForm()
	form.field("instructions", req.Instructions)
	form.field("username", req.Username)
	if req.SessionID != "" {
		form.field("sessionId", req.SessionID)
	}
	if req.Image != nil {
		form.file("image", req.Image)
	}

	var out Recipe
	if err := c.postForm(ctx, c.cfg.RecipeGeneratePath, c.cfg.GenerateTimeout, form, &out); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &out, nil
}

func (c *client) SubstituteIngredient(ctx context.Context, req *SubstituteRequest) (*Recipe, error) {
	ctx, span := telemetry.StartSpan(ctx, "inference.recipe.substitute")
	defer span.End()

	var out Recipe
	if err := c.postJSON(ctx, c.cfg.SubstitutePath, c.cfg.GenerateTimeout, req, &out); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &out, nil
}

func (c *client) GetRecipe(ctx context.Context, recipeID int64) (*Recipe, error) {
	ctx, span := telemetry.StartSpan(ctx, "inference.recipe.get")
	defer span.End()
	span.SetAttributes(attribute.Int64("recipe_id", recipeID))

	var out Recipe
	if err := c.get(ctx, c.cfg.RecipePath+"/"+strconv.FormatInt(recipeID, 10), &out); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &out, nil
}

func (c *client) GetNutrition(ctx context.Context, recipeID int64) (*Nutrition, error) {
	ctx, span := telemetry.StartSpan(ctx, "inference.nutrition.get")
	defer span.End()
	span.SetAttributes(attribute.Int64("recipe_id", recipeID))

	var out Nutrition
	if err := c.get(ctx, c.cfg.NutritionPath+"/"+strconv.FormatInt(recipeID, 10), &out); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &out, nil
}

func (c *client) Chat(ctx context.Context, req *ChatRequest) (*ChatReply, error) {
	ctx, span := telemetry.StartSpan(ctx, "inference.chat")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", req.SessionID))

	form := newForm()
	form.field("message", req.Message)
	form.field("username", req.Username)
	if req.SessionID != "" {
		form.field("sessionId", req.SessionID)
	}
	if req.Image != nil {
		form.file("image", req.Image)
	}

	var out ChatReply
	if err := c.postForm(ctx, c.cfg.ChatPath, c.cfg.GenerateTimeout, form, &out); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &out, nil
}

func (c *client) SendUserInfo(ctx context.Context, info *UserInfo) error {
	ctx, span := telemetry.StartSpan(ctx, "inference.chat.user_info")
	defer span.End()

	if err := c.postJSON(ctx, c.cfg.UserInfoPath, c.cfg.Timeout, info, nil); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

func (c *client) get(ctx context.Context, path string, out any) error {
	r := retry.New(c.retry).OnRetry(func(attempt int, err error, wait time.Duration) {
		c.log.Warn("retrying inference call",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})

	return r.Do(ctx, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, c.cfg.Timeout, nil, "", out)
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Status < http.StatusInternalServerError {
			return retry.Permanent(err)
		}
		return err
	})
}

func (c *client) postJSON(ctx context.Context, path string, timeout time.Duration, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, timeout, body, "application/json", out)
}

func (c *client) postForm(ctx context.Context, path string, timeout time.Duration, f *form, out any) error {
	body, contentType, err := f.close()
	if err != nil {
		return fmt.Errorf("encode %s form: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, timeout, body, contentType, out)
}

func (c *client) do(ctx context.Context, method, path string, timeout time.Duration, body []byte, contentType string, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(path, err, time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("inference call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return &UpstreamError{Endpoint: path, Status: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrUpstream, path, err)
	}
	return nil
}

type form struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *form {
	f := &form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) {
	if f.err == nil {
		f.err = f.w.WriteField(name, value)
	}
}

func (f *form) file(name string, img *Image) {
	if f.err != nil {
		return
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, img.Filename))
	ct := img.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = part.Write(img.Data)
}

func (f *form) close() ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return f.buf.Bytes(), f.w.FormDataContentType(), nil
}
