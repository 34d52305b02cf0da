package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/middleware"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/internal/service"
	"github.com/realqkqk123fr/temp-backend/internal/token"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memUsers is an in-memory UserRepository
type memUsers struct {
	mu    sync.Mutex
	users map[int64]*domain.User
	next  int64
}

func newMemUsers(users ...*domain.User) *memUsers {
	r := &memUsers{users: make(map[int64]*domain.User)}
	for _, u := range users {
		r.next++
		u.ID = r.next
		r.users[u.ID] = u
	}
	return r
}

func (r *memUsers) find(match func(*domain.User) bool) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r *memUsers) Create(_ context.Context, u *domain.User) error {
	if r.find(func(x *domain.User) bool { return x.Email == u.Email }) != nil {
		return domain.ErrEmailExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	u.ID = r.next
	r.users[u.ID] = u
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id }), nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username }), nil
}

func (r *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, _ := r.GetByEmail(ctx, email)
	return u != nil, nil
}

func (r *memUsers) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

// MockRecipeService is a mock implementation of RecipeService for testing
type MockRecipeService struct {
	GenerateFunc   func(ctx context.Context, id *security.Identity, in *service.GenerateInput) (*dto.RecipeResponse, error)
	SubstituteFunc func(ctx context.Context, id *security.Identity, req *dto.SubstituteIngredientRequest) (*dto.RecipeResponse, error)
	UploadFunc     func(ctx context.Context, id *security.Identity, in *service.GenerateInput) (*dto.UploadResponse, error)
	AssistanceFunc func(ctx context.Context, id *security.Identity, recipeID int64) (*dto.RecipeResponse, error)
	ListFunc       func(ctx context.Context, id *security.Identity) ([]*dto.RecipeResponse, error)
}

func (m *MockRecipeService) Generate(ctx context.Context, id *security.Identity, in *service.GenerateInput) (*dto.RecipeResponse, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, id, in)
	}
	return &dto.RecipeResponse{}, nil
}

func (m *MockRecipeService) Substitute(ctx context.Context, id *security.Identity, req *dto.SubstituteIngredientRequest) (*dto.RecipeResponse, error) {
	if m.SubstituteFunc != nil {
		return m.SubstituteFunc(ctx, id, req)
	}
	return &dto.RecipeResponse{}, nil
}

func (m *MockRecipeService) Upload(ctx context.Context, id *security.Identity, in *service.GenerateInput) (*dto.UploadResponse, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, id, in)
	}
	return &dto.UploadResponse{Success: true}, nil
}

func (m *MockRecipeService) Assistance(ctx context.Context, id *security.Identity, recipeID int64) (*dto.RecipeResponse, error) {
	if m.AssistanceFunc != nil {
		return m.AssistanceFunc(ctx, id, recipeID)
	}
	return &dto.RecipeResponse{ID: recipeID}, nil
}

func (m *MockRecipeService) List(ctx context.Context, id *security.Identity) ([]*dto.RecipeResponse, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, id)
	}
	return nil, nil
}

// MockNutritionService is a mock implementation of NutritionService for testing
type MockNutritionService struct {
	GetFunc func(ctx context.Context, id *security.Identity, recipeID int64) (*dto.NutritionResponse, error)
}

func (m *MockNutritionService) Get(ctx context.Context, id *security.Identity, recipeID int64) (*dto.NutritionResponse, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, recipeID)
	}
	return &dto.NutritionResponse{RecipeID: recipeID}, nil
}

// MockSatisfactionService is a mock implementation of SatisfactionService for testing
type MockSatisfactionService struct {
	RateFunc func(ctx context.Context, id *security.Identity, recipeID int64, req *dto.SatisfactionRequest) (*dto.SatisfactionResponse, error)
}

func (m *MockSatisfactionService) Rate(ctx context.Context, id *security.Identity, recipeID int64, req *dto.SatisfactionRequest) (*dto.SatisfactionResponse, error) {
	if m.RateFunc != nil {
		return m.RateFunc(ctx, id, recipeID, req)
	}
	return &dto.SatisfactionResponse{RecipeID: recipeID, Rate: req.Rate, Comment: req.Comment}, nil
}

// MockChatService is a mock implementation of ChatService for testing
type MockChatService struct {
	PushUserInfoFunc func(ctx context.Context, id *security.Identity) (*dto.UserInfoResponse, error)
	messages         []*dto.ChatMessage
	senders          []string
}

func (m *MockChatService) PushUserInfo(ctx context.Context, id *security.Identity) (*dto.UserInfoResponse, error) {
	if m.PushUserInfoFunc != nil {
		return m.PushUserInfoFunc(ctx, id)
	}
	return &dto.UserInfoResponse{}, nil
}

func (m *MockChatService) HandleMessage(ctx context.Context, msg *dto.ChatMessage) {
	id, _ := security.FromContext(ctx)
	m.messages = append(m.messages, msg)
	m.senders = append(m.senders, id.Name())
}

type testApp struct {
	engine       *gin.Engine
	tokens       *token.Service
	users        *memUsers
	recipes      *MockRecipeService
	nutrition    *MockNutritionService
	satisfaction *MockSatisfactionService
	chat         *MockChatService
	logins       []string
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestApp(t *testing.T, now func() time.Time) *testApp {
	t.Helper()

	opts := []token.Option{}
	if now != nil {
		opts = append(opts, token.WithNowFunc(now))
	}
	tokens, err := token.NewService(token.Config{
		Secret:     base64.StdEncoding.EncodeToString([]byte(testSecret)),
		AccessTTL:  time.Hour,
		RefreshTTL: 14 * 24 * time.Hour,
	}, opts...)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)

	app := &testApp{
		tokens: tokens,
		users: newMemUsers(&domain.User{
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: string(hash),
		}),
		recipes:      &MockRecipeService{},
		nutrition:    &MockNutritionService{},
		satisfaction: &MockSatisfactionService{},
		chat:         &MockChatService{},
	}

	userService := service.NewUserService(app.users, nil, nil, bcrypt.MinCost)
	authService := service.NewAuthService(app.users, service.NewPasswordVerifier(app.users), tokens, nil)

	policy := security.NewStrictBearerPolicy(tokens, security.DefaultChain(service.NewIdentityStore(app.users)))

	app.engine = gin.New()
	app.engine.Use(middleware.Auth(policy, security.NewWhitelist(security.DefaultWhitelist...), nil, nil))
	RegisterRoutes(app.engine, &Handlers{
		Health:    NewHealthHandler(nil),
		Auth:      NewAuthHandler(authService, userService, nil, func(r string) { app.logins = append(app.logins, r) }),
		Mypage:    NewMypageHandler(userService),
		Recipe:    NewRecipeHandler(app.recipes),
		Nutrition: NewNutritionHandler(app.nutrition, app.satisfaction),
		Chat:      NewChatHandler(app.chat),
	}, "")

	return app
}

func (a *testApp) bearer(t *testing.T, username, email string) string {
	t.Helper()
	raw, err := a.tokens.Issue(token.Subject{Username: username, Email: email}, token.CategoryAccess)
	require.NoError(t, err)
	return "Bearer " + raw
}

func (a *testApp) do(method, path string, body any, authorization string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data any) response.Response {
	t.Helper()
	var env struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Response
}
